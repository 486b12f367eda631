package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime/debug"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func get(t *testing.T, h *Health, path string) (int, statusBody) {
	t.Helper()

	r := chi.NewRouter()
	h.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLivez_ChecksStartHealthy(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failing("connection refused"))

	code, body := get(t, h, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
}

func TestLivez_FailureThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failing("connection refused"))

	runN(h.liveness[0], failureThreshold-1)
	code, _ := get(t, h, "/livez")
	assert.Equal(t, http.StatusOK, code, "below threshold must stay healthy")

	runN(h.liveness[0], 1)
	code, body := get(t, h, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestLivez_Recovers(t *testing.T) {
	fail := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	})

	runN(h.liveness[0], failureThreshold)
	code, _ := get(t, h, "/livez")
	require.Equal(t, http.StatusServiceUnavailable, code)

	fail = false
	runN(h.liveness[0], successThreshold)
	code, _ = get(t, h, "/livez")
	assert.Equal(t, http.StatusOK, code)
}

func TestReadyz_RequiresManualReadiness(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing)

	code, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, body = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	code, _ = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyz_ListsOnlyFailingChecks(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("postgres", time.Second, passing)
	h.AddReadinessCheck("cache", time.Second, failing("timeout"))

	for _, c := range h.readiness {
		runN(c, failureThreshold)
	}

	code, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"cache": "timeout"}, body.Checks)
	assert.False(t, h.IsReady())
}

func TestStartRunsChecksUntilStopped(t *testing.T) {
	calls := make(chan struct{}, 16)
	h := New()
	h.AddLivenessCheck("tick", time.Second, func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("check did not run")
	}
	h.Stop()
	h.Stop()
}

func TestGoroutineLimit(t *testing.T) {
	assert.NoError(t, GoroutineLimit(100000)(context.Background()))
	assert.Error(t, GoroutineLimit(0)(context.Background()))
}

func TestRecentGCPause(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stats := func(pauses ...time.Duration) func(*debug.GCStats) {
		return func(s *debug.GCStats) {
			s.Pause = pauses
			s.PauseEnd = make([]time.Time, len(pauses))
			for i := range pauses {
				s.PauseEnd[i] = now.Add(-time.Duration(i) * 30 * time.Second)
			}
		}
	}
	clock := func() time.Time { return now }

	t.Run("Fast", func(t *testing.T) {
		check := recentGCPause(time.Second, time.Minute, clock, stats(time.Millisecond, 2*time.Millisecond))
		assert.NoError(t, check(context.Background()))
	})
	t.Run("RecentSlowPause", func(t *testing.T) {
		check := recentGCPause(time.Second, time.Minute, clock, stats(time.Millisecond, 2*time.Second))
		assert.ErrorContains(t, check(context.Background()), "GC pause of 2s")
	})
	t.Run("OldSlowPauseIgnored", func(t *testing.T) {
		// Third pause ended 60s ago, fourth 90s ago.
		check := recentGCPause(time.Second, 45*time.Second, clock,
			stats(time.Millisecond, time.Millisecond, 5*time.Second, 5*time.Second))
		assert.NoError(t, check(context.Background()))
	})
	t.Run("Runtime", func(t *testing.T) {
		assert.NoError(t, RecentGCPause(time.Hour, time.Minute)(context.Background()))
	})
}

func TestPoolSaturation(t *testing.T) {
	stat := func(acquired, total int32) func() (int32, int32) {
		return func() (int32, int32) { return acquired, total }
	}
	ctx := context.Background()

	assert.NoError(t, PoolSaturation(1, stat(3, 4))(ctx))
	assert.NoError(t, PoolSaturation(1, stat(0, 0))(ctx))
	assert.ErrorContains(t, PoolSaturation(1, stat(4, 4))(ctx), "4 of 4 pool connections acquired")
	assert.Error(t, PoolSaturation(0.5, stat(2, 4))(ctx))
}
