package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/eegflow/scriptcast/internal/store"
)

// Scheduler fires pipeline runs for each configured source on the
// configured schedule. A redis lock keeps replicas from double-running.
type Scheduler struct {
	Store    *store.Store
	Runner   Runner
	Rdb      *redis.Client
	Schedule string
	Sources  []string
	Stop     chan struct{}
	Logger   *log.Logger
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(10 * time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	for _, source := range s.Sources {
		last, err := s.Store.LatestRunTime(ctx, source)
		if err != nil {
			s.Logger.Printf("cannot read last run for %s: %v", source, err)
			continue
		}
		if !isDue(s.Schedule, last) {
			continue
		}
		if s.Rdb != nil {
			lockKey := "scriptcast:sched:lock:" + source
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
			if !ok {
				continue
			}
		}
		go func(source string) {
			s.Logger.Printf("starting scheduled %s run", source)
			if _, err := s.Runner.RunOnce(ctx, source); err != nil {
				s.Logger.Printf("scheduled %s run failed: %v", source, err)
			}
		}(source)
	}
}

// isDue reports whether a source on the given schedule should run now.
// Supports "@daily", "@hourly", and standard cron expressions; an invalid
// expression falls back to daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
