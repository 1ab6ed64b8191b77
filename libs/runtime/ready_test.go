package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadyz(t *testing.T) {
	mux := NewBaseMuxWithReady(
		ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }},
		ReadyCheck{Name: "kafka", Check: func(context.Context) error { return errors.New("down") }},
		ReadyCheck{Name: "skipped"},
	)

	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rw.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rw.Code)
	}
	if body := rw.Body.String(); !strings.Contains(body, "kafka: down") || strings.Contains(body, "db") {
		t.Fatalf("unexpected body %q", body)
	}

	rwHealth := httptest.NewRecorder()
	mux.ServeHTTP(rwHealth, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rwHealth.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", rwHealth.Code)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug {
		t.Fatal("expected debug")
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Fatal("expected info fallback")
	}
}
