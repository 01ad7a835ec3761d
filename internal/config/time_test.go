package config

import (
	"testing"
	"time"
)

func TestTimerDuration(t *testing.T) {
	timer := Timer{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}
	want := 24*time.Hour + 2*time.Hour + 3*time.Minute + 4*time.Second

	if got := timer.Duration(); got != want {
		t.Fatalf("Duration returned %s, want %s", got, want)
	}
}

func TestCalculateRefreshInterval(t *testing.T) {
	t.Run("zero timer falls back to default", func(t *testing.T) {
		if got := calculateRefreshInterval(Config{}); got != defaultRefreshInterval {
			t.Fatalf("calculateRefreshInterval returned %s, want %s", got, defaultRefreshInterval)
		}
	})

	t.Run("enforces minimum interval", func(t *testing.T) {
		var cfg Config
		cfg.Refresh.RefreshTimer = Timer{Seconds: 5}
		if got := calculateRefreshInterval(cfg); got != minRefreshInterval {
			t.Fatalf("calculateRefreshInterval returned %s, want %s", got, minRefreshInterval)
		}
	})

	t.Run("returns configured duration", func(t *testing.T) {
		var cfg Config
		cfg.Refresh.RefreshTimer = Timer{Hours: 6}
		if got := calculateRefreshInterval(cfg); got != 6*time.Hour {
			t.Fatalf("calculateRefreshInterval returned %s, want 6h", got)
		}
	})
}

func TestRefreshIntervalUpdates(t *testing.T) {
	origInterval := GetRefreshInterval()
	origListeners := refreshIntervalListeners

	t.Cleanup(func() {
		refreshInterval.Store(origInterval)
		refreshIntervalListeners = origListeners
	})

	refreshInterval.Store(time.Hour)
	refreshIntervalListeners = nil

	ch := RefreshIntervalUpdates()
	first := <-ch
	if first != time.Hour {
		t.Fatalf("initial update = %s, want 1h", first)
	}

	setRefreshInterval(6 * time.Hour)

	select {
	case next := <-ch:
		if next != 6*time.Hour {
			t.Fatalf("next update = %s, want 6h", next)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for interval update")
	}

	// Verify no duplicate notification when same interval is set.
	setRefreshInterval(6 * time.Hour)
	select {
	case <-ch:
		t.Fatal("unexpected update when interval unchanged")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestApplyConfigUpdateRecalculatesInterval(t *testing.T) {
	origCfg := GetConfig()
	origInterval := GetRefreshInterval()
	origListeners := refreshIntervalListeners

	t.Cleanup(func() {
		configValue.Store(origCfg)
		refreshInterval.Store(origInterval)
		refreshIntervalListeners = origListeners
	})

	refreshIntervalListeners = nil

	var cfg Config
	cfg.Refresh.RefreshTimer = Timer{Hours: 12}
	applyConfigUpdate(cfg, "test")

	if got := GetRefreshInterval(); got != 12*time.Hour {
		t.Fatalf("GetRefreshInterval returned %s, want 12h", got)
	}
}
