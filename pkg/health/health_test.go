package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, fn http.HandlerFunc) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func runN(ctx context.Context, c *check, n int) {
	for range n {
		c.run(ctx)
	}
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passing())
	h.AddLivenessCheck("sessions", time.Second, passing())

	code, body := serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
}

func TestLiveEndpoint_NoChecks(t *testing.T) {
	code, body := serve(t, New().LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Checks)
}

func TestThresholds(t *testing.T) {
	ctx := context.Background()

	t.Run("BelowThreshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("flaky", time.Second, failing("temporary"))
		runN(ctx, h.checks[0], failureThreshold-1)

		code, _ := serve(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
	})
	t.Run("AtThreshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("redis", time.Second, failing("connection refused"))
		runN(ctx, h.checks[0], failureThreshold)

		code, body := serve(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "connection refused", body.Checks["redis"])
	})
	t.Run("Recovery", func(t *testing.T) {
		var mu sync.Mutex
		fail := true
		h := New()
		h.AddLivenessCheck("backend", time.Second, func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			if fail {
				return errors.New("down")
			}
			return nil
		})
		c := h.checks[0]
		runN(ctx, c, failureThreshold)
		require.False(t, c.healthy.Load())

		mu.Lock()
		fail = false
		mu.Unlock()
		c.run(ctx)
		assert.True(t, c.healthy.Load())
		assert.NoError(t, c.err())
	})
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("ledger", time.Second, passing())

	code, body := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])

	h.SetReady(true)
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, h.IsReady())
}

func TestReadyEndpoint_IgnoresLiveness(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddLivenessCheck("goroutines", time.Second, failing("too many"))
	h.AddReadinessCheck("ledger", time.Second, failing("redis down"))
	h.AddReadinessCheck("backend", time.Second, passing())
	for _, c := range h.checks {
		runN(context.Background(), c, failureThreshold)
	}

	code, body := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"ledger": "redis down"}, body.Checks)
	assert.False(t, h.IsReady())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddReadinessCheck("ledger", 50*time.Millisecond, failing("redis down"))
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("a", time.Second, passing())
	h.AddReadinessCheck("b", time.Second, passing())
	h.SetReady(true)
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				w := httptest.NewRecorder()
				h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
				h.IsReady()
			}
		}()
	}
	wg.Wait()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(pinger{})(context.Background()))

	err := PingCheck(pinger{err: errors.New("dial tcp: refused")})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestBreakerCheck(t *testing.T) {
	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "backend",
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	check := BreakerCheck(cb)
	require.NoError(t, check(context.Background()))

	_, _ = cb.Execute(func() (int, error) { return 0, errors.New("boom") })
	err := check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend")
}
