package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if !rl.allow("a", now) || !rl.allow("a", now) {
		t.Fatal("expected first two requests to pass")
	}
	if rl.allow("a", now) {
		t.Fatal("expected third request in the same instant to be limited")
	}
	if !rl.allow("b", now) {
		t.Fatal("expected a different client to have its own budget")
	}
	if !rl.allow("a", now.Add(31*time.Second)) {
		t.Fatal("expected a token to refill after half a minute")
	}
}

func TestRequestIDEchoedAndGenerated(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if seen != "abc-123" || rw.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("expected inbound id to be kept, got %q", seen)
	}

	rw2 := httptest.NewRecorder()
	h.ServeHTTP(rw2, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "abc-123" {
		t.Fatalf("expected a generated id, got %q", seen)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := Chain(okHandler(), WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://book.example"},
		AllowedMethods: []string{"GET", "POST"},
		ExposedHeaders: []string{RequestIDHeader},
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/public/slots", nil)
	req.Header.Set("Origin", "https://book.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rw.Code)
	}
	if rw.Header().Get("Access-Control-Allow-Origin") != "https://book.example" {
		t.Fatalf("unexpected allow-origin %q", rw.Header().Get("Access-Control-Allow-Origin"))
	}
	if rw.Header().Get("Access-Control-Expose-Headers") != RequestIDHeader {
		t.Fatalf("unexpected expose headers %q", rw.Header().Get("Access-Control-Expose-Headers"))
	}
}

func TestChainSkipsNilMiddleware(t *testing.T) {
	h := Chain(okHandler(), nil, WithBodyLimit(10))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
}

func TestCORSWildcardWithCredentialsEchoesOrigin(t *testing.T) {
	h := Chain(okHandler(), WithCORS(CORSPolicy{AllowedOrigins: []string{" * "}, AllowCredentials: true}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/calendar", nil)
	req.Header.Set("Origin", "https://other.example")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if rw.Header().Get("Access-Control-Allow-Origin") != "https://other.example" || rw.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("unexpected headers %v", rw.Header())
	}
}
