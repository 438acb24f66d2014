package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// fixedClock returns a clock pinned to the start of a minute and a func to
// move it forward.
func fixedClock() (func() time.Time, func(time.Duration)) {
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func serve(h http.Handler, remoteAddr string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = remoteAddr
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	now, _ := fixedClock()
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute, Now: now})(okHandler())

	for i := range 5 {
		w := serve(h, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(4-i), w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_Exceeded(t *testing.T) {
	now, _ := fixedClock()
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute, Now: now})(okHandler())

	serve(h, "10.0.0.1:1")
	serve(h, "10.0.0.1:1")
	w := serve(h, "10.0.0.1:1")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	var (
		code    int
		message string
	)
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Int()
		case "message":
			message, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}))
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate limit exceeded", message)
}

func TestRateLimit_WindowSlides(t *testing.T) {
	now, advance := fixedClock()
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute, Now: now})(okHandler())

	serve(h, "10.0.0.1:1")
	serve(h, "10.0.0.1:1")
	require.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.1:1").Code)

	// Half way into the next window the previous one still weighs 1 request.
	advance(90 * time.Second)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.1:1").Code)

	// Two full windows later the key starts fresh.
	advance(2 * time.Minute)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1").Code)
}

func TestRateLimit_KeyIsolation(t *testing.T) {
	now, _ := fixedClock()

	t.Run("RemoteAddr", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute, Now: now})(okHandler())
		assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1234").Code)
		assert.Equal(t, http.StatusOK, serve(h, "10.0.0.2:1234").Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.1:5678").Code)
	})
	t.Run("XForwardedFor", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute, Now: now})(okHandler())
		xff := func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18") }
		assert.Equal(t, http.StatusOK, serve(h, "192.168.1.1:1", xff).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(h, "192.168.1.2:1", xff).Code)
	})
	t.Run("CustomKey", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{
			Max:     1,
			Window:  time.Minute,
			Now:     now,
			KeyFunc: func(r *http.Request) string { return r.Header.Get("api_key") },
		})(okHandler())
		key := func(k string) func(*http.Request) {
			return func(r *http.Request) { r.Header.Set("api_key", k) }
		}
		assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1", key("a")).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.1:1", key("a")).Code)
		assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1", key("b")).Code)
	})
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(RateLimitConfig{})(okHandler())
	for range 10 {
		w := serve(h, "10.0.0.1:1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestLimiter_Sweep(t *testing.T) {
	start := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(10, time.Minute)
	l.Allow("a", start)
	l.Allow("b", start.Add(90*time.Second))
	require.Equal(t, 2, l.len())

	l.Sweep(start.Add(2 * time.Minute))
	assert.Equal(t, 1, l.len())
	l.Sweep(start.Add(10 * time.Minute))
	assert.Equal(t, 0, l.len())
}
