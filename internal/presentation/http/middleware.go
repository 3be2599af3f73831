package httppresentation

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability/logctx"
)

const (
	corsAllowMethods = "GET, POST, PUT, DELETE"
	corsAllowHeaders = "Content-Type, Authorization"
)

// WithCORS sets the cross-origin headers on every response and answers
// preflight requests itself.
func WithCORS(allowOrigin string) func(http.Handler) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowOrigin)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Limiter decides whether the client identified by key may proceed.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

// WithRateLimit rejects requests over the client's budget with 429. A nil
// limiter lets everything through.
func WithRateLimit(limiter Limiter, keyFn func(*http.Request) string, tel observability.Observability) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if keyFn == nil {
		keyFn = ClientKey
	}
	if tel == nil {
		tel = observability.Nop()
	}
	limited := tel.Metrics().Counter(observability.MHTTPRateLimited)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := limiter.Allow(keyFn(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			route := routeFromContext(r.Context())
			limited.Add(1, observability.L("route", route))
			logctx.FromOr(r.Context(), tel.Logger()).Warn("http_rate_limited",
				observability.F("route", route),
				observability.F("retry_after_ms", retry.Milliseconds()),
			)

			secs := int((retry + time.Second - 1) / time.Second)
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeFailure(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		})
	}
}

// ClientKey identifies the caller by the first X-Forwarded-For hop, falling
// back to the remote host.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
