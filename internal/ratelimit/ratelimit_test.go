package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllow_EnforcesLimitPerKey(t *testing.T) {
	l := NewLimiter(Config{Limit: 3, Window: time.Minute})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("owner1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("owner1") {
		t.Error("request over the limit should be denied")
	}

	// Keys are independent.
	if !l.Allow("owner2") {
		t.Error("fresh key should be allowed")
	}
}

func TestAllow_WindowResets(t *testing.T) {
	l := NewLimiter(Config{Limit: 1, Window: 20 * time.Millisecond})
	defer l.Stop()

	if !l.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("second request in window should be denied")
	}

	time.Sleep(30 * time.Millisecond)
	if !l.Allow("k") {
		t.Error("request after window expiry should be allowed")
	}
}

func TestNewLimiter_DefaultsInvalidConfig(t *testing.T) {
	l := NewLimiter(Config{Limit: 0, Window: 0})
	defer l.Stop()

	if !l.Allow("k") {
		t.Error("limiter with defaulted config should allow requests")
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	l := NewLimiter(Config{Limit: 1, Window: 5 * time.Millisecond, CleanupInterval: time.Hour})
	defer l.Stop()

	l.Allow("stale")
	if got := l.ActiveKeys(); got != 1 {
		t.Fatalf("ActiveKeys() = %d, want 1", got)
	}

	time.Sleep(15 * time.Millisecond)
	l.cleanupStaleEntries()
	if got := l.ActiveKeys(); got != 0 {
		t.Errorf("ActiveKeys() after cleanup = %d, want 0", got)
	}
}

func TestMiddleware(t *testing.T) {
	l := NewLimiter(Config{Limit: 1, Window: time.Minute})
	defer l.Stop()

	handler := l.Middleware(func(r *http.Request) string { return r.RemoteAddr }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("limited response should carry Retry-After")
	}
}
