package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/visionpos/vision-pos/internal/tenancy"
)

func TestRateLimiterRefills(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("expected burst of two to pass")
	}
	if rl.Allow("a") {
		t.Fatal("expected third request to be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("keys must not share a bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Fatal("expected a token after one second")
	}

	rl.Evict(now.Add(time.Minute))
	if len(rl.buckets) != 0 {
		t.Fatalf("expected idle buckets evicted, got %d", len(rl.buckets))
	}
}

func TestRateLimitKeysByStaff(t *testing.T) {
	limiter := NewRateLimiter(0, 1)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(staffID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
		if staffID != "" {
			req = req.WithContext(tenancy.WithStaffID(req.Context(), staffID))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("staff-1"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := send("staff-1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("staff-2"); code != http.StatusOK {
		t.Fatalf("expected other staff to pass, got %d", code)
	}
	if code := send(""); code != http.StatusOK {
		t.Fatalf("expected anonymous caller to use its own bucket, got %d", code)
	}
}
