package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineLimit fails when more than limit goroutines are running, which
// usually means handlers are leaking.
func GoroutineLimit(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit is %d", n, limit)
		}
		return nil
	}
}

// RecentGCPause fails when a GC pause that ended within lookback took longer
// than limit. Older pauses are ignored so a single slow collection does not
// keep the check failing forever.
func RecentGCPause(limit, lookback time.Duration) CheckFunc {
	return recentGCPause(limit, lookback, time.Now, debug.ReadGCStats)
}

func recentGCPause(limit, lookback time.Duration, now func() time.Time, read func(*debug.GCStats)) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		read(&stats)

		since := now().Add(-lookback)
		// Pause and PauseEnd are both most recent first.
		for i, pause := range stats.Pause {
			if i >= len(stats.PauseEnd) || stats.PauseEnd[i].Before(since) {
				break
			}
			if pause > limit {
				return errors.Errorf("GC pause of %s at %s, limit is %s",
					pause, stats.PauseEnd[i].Format(time.RFC3339), limit)
			}
		}
		return nil
	}
}

// PoolSaturation fails when the share of acquired connections reported by
// stat reaches ratio. stat returns the acquired and the maximum connection
// counts of a pool.
func PoolSaturation(ratio float64, stat func() (acquired, total int32)) CheckFunc {
	return func(context.Context) error {
		acquired, total := stat()
		if total <= 0 {
			return nil
		}
		if used := float64(acquired) / float64(total); used >= ratio {
			return errors.Errorf("%d of %d pool connections acquired", acquired, total)
		}
		return nil
	}
}
