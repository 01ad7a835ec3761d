package config

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultRefreshInterval = 24 * time.Hour
	minRefreshInterval     = time.Minute
)

var (
	refreshInterval          atomic.Value
	refreshIntervalListeners []chan time.Duration
	listenersMu              sync.Mutex
)

func init() {
	refreshInterval.Store(defaultRefreshInterval)
}

// Duration converts the timer fields into a single duration.
func (t Timer) Duration() time.Duration {
	return time.Duration(t.Days)*24*time.Hour +
		time.Duration(t.Hours)*time.Hour +
		time.Duration(t.Minutes)*time.Minute +
		time.Duration(t.Seconds)*time.Second
}

// IsZero reports whether no field of the timer is set.
func (t Timer) IsZero() bool {
	return t.Days == 0 && t.Hours == 0 && t.Minutes == 0 && t.Seconds == 0
}

// applyIntervals recomputes every derived interval from the current config.
// Called under configMu by applyConfigUpdate.
func applyIntervals() {
	cfg := GetConfig()
	setRefreshInterval(calculateRefreshInterval(cfg))
}

func calculateRefreshInterval(cfg Config) time.Duration {
	timer := cfg.Refresh.RefreshTimer
	if timer.IsZero() {
		return defaultRefreshInterval
	}

	interval := timer.Duration()
	if interval < minRefreshInterval {
		// Ledger mirrors publish daily; anything under a minute only hammers them.
		interval = minRefreshInterval
	}
	return interval
}

func GetRefreshInterval() time.Duration {
	return refreshInterval.Load().(time.Duration)
}

// RefreshIntervalUpdates returns a channel that carries the current refresh
// interval immediately and every later change exactly once.
func RefreshIntervalUpdates() <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	listenersMu.Lock()
	refreshIntervalListeners = append(refreshIntervalListeners, ch)
	listenersMu.Unlock()

	ch <- GetRefreshInterval()
	return ch
}

func setRefreshInterval(interval time.Duration) {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}

	if GetRefreshInterval() == interval {
		return
	}
	refreshInterval.Store(interval)

	listenersMu.Lock()
	defer listenersMu.Unlock()
	for _, ch := range refreshIntervalListeners {
		select {
		case ch <- interval:
		default:
		}
	}
}
