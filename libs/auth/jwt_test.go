package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHS256RoundTrip(t *testing.T) {
	now := time.Now()
	claims := Claims{
		Sub:  "user-1",
		Role: "owner",
		Iat:  now.Unix(),
		Exp:  now.Add(1 * time.Hour).Unix(),
	}
	secret := "test-secret"

	token, err := SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	parsed, err := ParseAndVerifyHS256(token, secret, now)
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.Role != claims.Role {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := ParseAndVerifyHS256(token, "wrong-secret", now); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
	if _, err := ParseAndVerifyHS256(token, secret, now.Add(2*time.Hour)); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestAPIKey(t *testing.T) {
	hash, err := HashAPIKey("trigger-key")
	if err != nil {
		t.Fatalf("HashAPIKey failed: %v", err)
	}
	if err := VerifyAPIKey(hash, "trigger-key"); err != nil {
		t.Fatalf("VerifyAPIKey should succeed: %v", err)
	}
	if err := VerifyAPIKey(hash, "other"); err == nil {
		t.Fatal("VerifyAPIKey should fail for wrong key")
	}
}

func TestGuardRequire(t *testing.T) {
	secret := "test-secret"
	hash, err := HashAPIKey("machine")
	if err != nil {
		t.Fatalf("HashAPIKey failed: %v", err)
	}
	g := Guard{Secret: secret, APIKeyHash: hash}
	h := g.Require(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "owner", "admin")

	do := func(setup func(*http.Request)) int {
		req := httptest.NewRequest(http.MethodPost, "http://example.com", nil)
		setup(req)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		return rw.Code
	}

	if code := do(func(*http.Request) {}); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", code)
	}

	member, _ := SignHS256(Claims{Sub: "u", Role: "member"}, secret)
	if code := do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+member) }); code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", code)
	}

	owner, _ := SignHS256(Claims{Sub: "u", Role: "owner"}, secret)
	if code := do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+owner) }); code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", code)
	}

	if code := do(func(r *http.Request) { r.Header.Set(APIKeyHeader, "machine") }); code != http.StatusOK {
		t.Fatalf("expected 200 for api key, got %d", code)
	}
	if code := do(func(r *http.Request) { r.Header.Set(APIKeyHeader, "nope") }); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad api key, got %d", code)
	}
}
