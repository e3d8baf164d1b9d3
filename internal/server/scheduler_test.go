package server

import (
	"testing"
	"time"
)

func TestIsDueDaily(t *testing.T) {
	if !isDue("@daily", nil) {
		t.Error("never-run source should be due")
	}
	recent := time.Now().Add(-time.Hour)
	if isDue("@daily", &recent) {
		t.Error("source run an hour ago should not be due daily")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("@daily", &old) {
		t.Error("source run 25h ago should be due daily")
	}
}

func TestIsDueHourly(t *testing.T) {
	recent := time.Now().Add(-10 * time.Minute)
	if isDue("@hourly", &recent) {
		t.Error("source run 10m ago should not be due hourly")
	}
	old := time.Now().Add(-2 * time.Hour)
	if !isDue("@hourly", &old) {
		t.Error("source run 2h ago should be due hourly")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	// Every minute: anything older than a minute is due.
	old := time.Now().Add(-5 * time.Minute)
	if !isDue("* * * * *", &old) {
		t.Error("expected every-minute cron due after 5 minutes")
	}
	if !isDue("* * * * *", nil) {
		t.Error("never-run source should be due")
	}
}

func TestIsDueInvalidExpressionFallsBackToDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	if isDue("not a cron", &recent) {
		t.Error("invalid cron with recent run should not be due")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("not a cron", &old) {
		t.Error("invalid cron with old run should fall back to daily")
	}
}
