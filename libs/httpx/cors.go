package httpx

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// when origin is not allowed. A wildcard echoes the origin when credentials
// are allowed, since browsers reject "*" in that case.
func (p CORSPolicy) allowOrigin(origin string) string {
	if slices.Contains(p.AllowedOrigins, "*") {
		if p.AllowCredentials {
			return origin
		}
		return "*"
	}
	if slices.ContainsFunc(p.AllowedOrigins, func(o string) bool { return strings.EqualFold(o, origin) }) {
		return origin
	}
	return ""
}

// WithCORS answers preflight requests and decorates responses for allowed
// origins. It is a no-op when no origin is allowed.
func WithCORS(cfg CORSPolicy) Middleware {
	cfg.AllowedOrigins = compact(cfg.AllowedOrigins)
	if len(cfg.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	static := http.Header{}
	if cfg.AllowCredentials {
		static.Set("Access-Control-Allow-Credentials", "true")
	}
	for name, values := range map[string][]string{
		"Access-Control-Allow-Methods":  cfg.AllowedMethods,
		"Access-Control-Allow-Headers":  cfg.AllowedHeaders,
		"Access-Control-Expose-Headers": cfg.ExposedHeaders,
	} {
		if v := compact(values); len(v) > 0 {
			static.Set(name, strings.Join(v, ", "))
		}
	}
	if secs := int(cfg.MaxAge.Seconds()); secs > 0 {
		static.Set("Access-Control-Max-Age", strconv.Itoa(secs))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := ""
			if origin != "" {
				allowed = cfg.allowOrigin(origin)
			}
			if allowed == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			for name, v := range static {
				h[name] = v
			}
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
