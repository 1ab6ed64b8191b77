package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"
)

type ctxKey int

const ctxKeyClaims ctxKey = iota

const APIKeyHeader = "X-Api-Key"

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return c, ok
}

// Guard authorizes requests by HS256 bearer token with one of the given roles,
// or, when APIKeyHash is set, by a matching X-Api-Key.
type Guard struct {
	Secret     string
	APIKeyHash string
	Now        func() time.Time
}

func (g Guard) Require(next http.Handler, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" && g.APIKeyHash != "" {
			if err := VerifyAPIKey(g.APIKeyHash, key); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		authz := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		now := time.Now
		if g.Now != nil {
			now = g.Now
		}
		claims, err := ParseAndVerifyHS256(strings.TrimSpace(token), g.Secret, now())
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClaims, claims)))
	})
}
