package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"jackdaw/internal/config"
	"jackdaw/internal/support"
)

const refreshFallbackTicker = 24 * time.Hour

// StartRoutine runs the refresh loop until ctx is canceled. When redis is
// configured the loop only runs while this instance holds the refresh
// leadership, so a fleet downloads each ledger once.
func StartRoutine(ctx context.Context, job *Job) {
	if ctx == nil {
		ctx = context.Background()
	}

	var intervalValue atomic.Value
	initialInterval := config.GetRefreshInterval()
	if initialInterval <= 0 {
		initialInterval = refreshFallbackTicker
	}
	intervalValue.Store(initialInterval)

	updateSignal := make(chan struct{}, 1)
	updates := config.RefreshIntervalUpdates()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case newInterval := <-updates:
				if newInterval <= 0 {
					newInterval = refreshFallbackTicker
				}
				intervalValue.Store(newInterval)
				select {
				case updateSignal <- struct{}{}:
				default:
				}
			}
		}
	}()

	if !support.RedisConfigured() {
		job.loop(ctx, &intervalValue, updateSignal)
		return
	}

	err := support.RunWithLeader(ctx, support.LeaderKey("refresh"), support.DefaultLeadershipTTL, func(leaderCtx context.Context) {
		job.loop(leaderCtx, &intervalValue, updateSignal)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Ledger refresh routine stopped", "error", err)
	}
}

func (j *Job) loop(ctx context.Context, intervalValue *atomic.Value, updateSignal <-chan struct{}) {
	currentInterval := intervalValue.Load().(time.Duration)
	if currentInterval <= 0 {
		currentInterval = refreshFallbackTicker
	}

	ticker := time.NewTicker(currentInterval)
	defer ticker.Stop()

	j.runAndLog(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runAndLog(ctx, "scheduled")
		case reason := <-j.trigger:
			j.runAndLog(ctx, reason)
		case <-updateSignal:
			newInterval := intervalValue.Load().(time.Duration)
			if newInterval <= 0 {
				newInterval = refreshFallbackTicker
			}
			if newInterval == currentInterval {
				continue
			}
			drainTicker(ticker)
			currentInterval = newInterval
			ticker.Reset(currentInterval)
		}
	}
}

func (j *Job) runAndLog(ctx context.Context, reason string) {
	started := time.Now()

	outcomes, err := j.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("Ledger refresh canceled", "reason", reason, "duration", time.Since(started))
	case err != nil:
		log.Error("Ledger refresh failed", "reason", reason, "error", err)
	default:
		log.Info("Ledger refresh completed",
			"reason", reason,
			"sources", len(outcomes),
			"duration", time.Since(started),
		)
	}
}

func drainTicker(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
		default:
			return
		}
	}
}
