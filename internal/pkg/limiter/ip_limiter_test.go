package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestLimiter(t *testing.T, r rate.Limit, b int) *IPRateLimiter {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return NewIPRateLimiter(ctx, "test", r, b)
}

func TestMiddlewareLimitsPerIP(t *testing.T) {
	l := newTestLimiter(t, rate.Limit(0.001), 2)

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/chats", nil)
		r.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := call("198.51.100.7:4000"); code != http.StatusNoContent {
			t.Fatalf("request %d rejected with %d", i, code)
		}
	}

	if code := call("198.51.100.7:4001"); code != http.StatusTooManyRequests {
		t.Errorf("third request got %d, want 429", code)
	}

	if code := call("198.51.100.8:4000"); code != http.StatusNoContent {
		t.Errorf("another IP was limited: %d", code)
	}
}

func TestSweepRemovesRefilledBuckets(t *testing.T) {
	l := newTestLimiter(t, rate.Limit(1), 1)

	l.GetLimiter("198.51.100.7").Allow()
	l.GetLimiter("198.51.100.8")

	removed, remaining := l.sweep(time.Now())
	if removed != 1 || remaining != 1 {
		t.Errorf("sweep removed %d, kept %d", removed, remaining)
	}

	removed, remaining = l.sweep(time.Now().Add(2 * time.Second))
	if removed != 1 || remaining != 0 {
		t.Errorf("second sweep removed %d, kept %d", removed, remaining)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	r.RemoteAddr = "203.0.113.9:1234"
	if got := ClientIP(r); got != "203.0.113.9" {
		t.Errorf("ClientIP = %q", got)
	}

	r.RemoteAddr = "203.0.113.9"
	if got := ClientIP(r); got != "203.0.113.9" {
		t.Errorf("ClientIP without port = %q", got)
	}

	r.RemoteAddr = ""
	if got := ClientIP(r); got != "unknown_ip" {
		t.Errorf("ClientIP empty = %q", got)
	}
}
