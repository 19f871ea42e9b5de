package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/refund-explainer/internal/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("Expected generated ID in context and header, got %q / %q", seen, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" {
		t.Errorf("Expected caller ID to be propagated, got %q", seen)
	}
}

func TestLogger_WritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf)

	var fromCtx bool
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.FromContext(r.Context())
		reqLog.Info().Msg("inside handler")
		fromCtx = true
		w.WriteHeader(http.StatusTeapot)
	}), RequestID, Logger(log))

	req := httptest.NewRequest(http.MethodPost, "/api/explain-refund-change", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !fromCtx {
		t.Fatal("Handler was not called")
	}
	out := buf.String()
	for _, want := range []string{"HTTP request", "inside handler", "req-1", "/api/explain-refund-change", "418"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %q, got %s", want, out)
		}
	}
}

func TestCORS(t *testing.T) {
	h := CORS("https://example.test")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/life-events", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.test" {
		t.Errorf("Expected configured origin, got %q", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/life-events", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected pass-through, got %d", rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(logger.NewWithWriter(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Errorf("Expected JSON error body, got %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "Panic recovered") {
		t.Errorf("Expected panic to be logged, got %s", buf.String())
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	defer limiter.Stop()
	now := time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	h := RateLimit(limiter)(okHandler())
	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	codes := []int{do("10.0.0.1:1000"), do("10.0.0.1:1001"), do("10.0.0.1:1002")}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("Request %d: expected %d, got %d", i, want[i], codes[i])
		}
	}

	if code := do("10.0.0.2:1000"); code != http.StatusOK {
		t.Errorf("Expected separate budget per client, got %d", code)
	}

	now = now.Add(time.Second)
	if code := do("10.0.0.1:1003"); code != http.StatusOK {
		t.Errorf("Expected token to refill after a second, got %d", code)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	defer limiter.Stop()
	now := time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(2 * time.Hour)
	limiter.Allow("b")
	limiter.cleanup()

	if len(limiter.clients) != 1 {
		t.Errorf("Expected idle client to be evicted, %d remain", len(limiter.clients))
	}
	limiter.Stop()
}
