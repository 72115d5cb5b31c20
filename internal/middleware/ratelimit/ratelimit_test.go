package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	rl.now = clock.now
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth request inside the window should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other clients must not share the window")
	}

	clock.advance(time.Minute)
	if !rl.Allow("10.0.0.1") {
		t.Error("window should reset after a minute")
	}

	if got := rl.GetMetrics(); got.TotalHits != 1 || got.ClientCount != 2 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestLimiter_WindowDoesNotSlide(t *testing.T) {
	rl, clock := newTestLimiter(t, 2)

	rl.Allow("ip")
	clock.advance(40 * time.Second)
	rl.Allow("ip")
	clock.advance(30 * time.Second)

	// 70s after the first request the window has reset even though the
	// previous request was only 30s ago.
	if !rl.Allow("ip") {
		t.Error("expected window reset")
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	rl, clock := newTestLimiter(t, 1)

	if got := rl.RetryAfter("unknown"); got != 0 {
		t.Errorf("RetryAfter for unknown client = %d", got)
	}
	rl.Allow("ip")
	clock.advance(15500 * time.Millisecond)
	if got := rl.RetryAfter("ip"); got != 45 {
		t.Errorf("RetryAfter = %d, want 45", got)
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl, clock := newTestLimiter(t, 10)

	rl.Allow("old")
	clock.advance(11 * time.Minute)
	rl.Allow("fresh")

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Errorf("ActiveClients = %d, want 1", rl.ActiveClients())
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	ip := func(*http.Request) string { return "198.51.100.1" }
	h := rl.Middleware(ip, nil, http.MethodPost)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/deprivation/imports", nil))
		return rec
	}

	if rec := do(http.MethodPost); rec.Code != http.StatusAccepted {
		t.Fatalf("first POST status = %d", rec.Code)
	}
	rec := do(http.MethodPost)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	for i := 0; i < 5; i++ {
		if rec := do(http.MethodGet); rec.Code != http.StatusAccepted {
			t.Fatalf("GET should not be limited, got %d", rec.Code)
		}
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
}
