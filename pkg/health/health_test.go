package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func probe(t *testing.T, endpoint http.HandlerFunc) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w.Code, w.Body.String()
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	for _, tt := range []struct {
		name   string
		runs   int
		opts   []Option
		status int
		body   string
	}{
		{
			name:   "StartsHealthy",
			status: http.StatusOK,
			body:   `{"status":"ok"}`,
		},
		{
			name:   "BelowThreshold",
			runs:   2,
			status: http.StatusOK,
			body:   `{"status":"ok"}`,
		},
		{
			name:   "AtThreshold",
			runs:   3,
			status: http.StatusServiceUnavailable,
			body:   `{"status":"unhealthy","checks":{"postgres":"connection refused"}}`,
		},
		{
			name:   "CustomThreshold",
			runs:   1,
			opts:   []Option{WithFailureThreshold(1)},
			status: http.StatusServiceUnavailable,
			body:   `{"status":"unhealthy","checks":{"postgres":"connection refused"}}`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLivenessCheck("postgres", time.Second, failing("connection refused"), tt.opts...)
			runN(h.liveness[0], tt.runs)

			status, body := probe(t, h.LiveEndpoint)
			assert.Equal(t, tt.status, status)
			assert.JSONEq(t, tt.body, body)
		})
	}
}

func TestCheck_Recovery(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	fn := func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}

	h := New()
	h.AddLivenessCheck("flaky", time.Second, fn, WithSuccessThreshold(2))
	c := h.liveness[0]

	runN(c, 3)
	require.False(t, c.healthy.Load())

	fail.Store(false)
	runN(c, 1)
	assert.False(t, c.healthy.Load(), "one success is below the threshold")
	runN(c, 1)
	assert.True(t, c.healthy.Load())

	// A failure in between resets the success streak.
	fail.Store(true)
	runN(c, 3)
	fail.Store(false)
	runN(c, 1)
	fail.Store(true)
	runN(c, 1)
	fail.Store(false)
	runN(c, 1)
	assert.False(t, c.healthy.Load())
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing)

	status, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, body)
	assert.False(t, h.IsReady())

	h.SetReady(true)
	status, body = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)
	assert.True(t, h.IsReady())

	h.AddReadinessCheck("cache", time.Second, failing("cold"), WithFailureThreshold(1))
	runN(h.readiness[1], 1)
	status, body = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"cache":"cold"}}`, body)
	assert.False(t, h.IsReady())
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.AddLivenessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithFailureThreshold(1))
	runN(h.liveness[0], 1)

	status, body := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.AddReadinessCheck("counter", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	h.Stop()
	h.Stop()
	time.Sleep(20 * time.Millisecond)
	stopped := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, PingCheck(pinger{})(ctx))
	err := PingCheck(pinger{err: errors.New("refused")})(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	require.NoError(t, GoroutineCountCheck(1_000_000)(ctx))
	assert.Error(t, GoroutineCountCheck(0)(ctx))
}
