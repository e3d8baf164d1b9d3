package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/eegflow/scriptcast/config"
	"github.com/eegflow/scriptcast/internal/pipeline"
	"github.com/eegflow/scriptcast/internal/store"
	"github.com/eegflow/scriptcast/internal/telemetry"
	"github.com/eegflow/scriptcast/provider"
	"github.com/eegflow/scriptcast/provider/lmstudio"
	"github.com/eegflow/scriptcast/provider/voicevox"
)

// Run wires the ops server: health and metrics endpoints, admin auth, run
// inspection and triggering, and the background scheduler.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}
	secret := []byte(cfg.Server.JWTSecret)

	ctx := context.Background()
	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		baseLogger.Printf("migrate: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Storage.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	var chat provider.Chat = lmstudio.New(cfg.LMStudio)
	var speech provider.Speech = voicevox.New(cfg.Voicevox)
	pipe := pipeline.New(cfg, chat, speech, st, rdb, metrics, cfg.General.WorkDir)

	api := e.Group("/api")
	auth := &AuthHandler{Secret: secret, PasswordHash: cfg.Server.AdminPasswordHash}
	auth.Register(api.Group("/auth"))
	rh := &RunsHandler{Store: st, Runner: pipe, Logger: baseLogger}
	rh.Register(api.Group("/runs"), secret)

	sched := &Scheduler{
		Store:    st,
		Runner:   pipe,
		Rdb:      rdb,
		Schedule: cfg.Pipeline.Schedule,
		Sources:  cfg.Pipeline.Sources,
		Stop:     make(chan struct{}),
	}
	sched.Start()

	if addr == "" {
		addr = cfg.Server.Address
	}
	if addr == "" {
		addr = ":8787"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
