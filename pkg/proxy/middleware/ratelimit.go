package middleware

import (
	"fmt"
	"net"
	"net/http"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/limits/ratelimit"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/types"
)

// RateLimit rejects requests exceeding the per-client admission rate with
// a 429 in OpenAI error format. Clients are keyed by Authorization header
// when present, falling back to the remote IP. A nil limiter disables the
// middleware.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := limiter.Allow(clientKey(r))
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))

			if !result.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(result.RetryAfter.Seconds())+1))
				errResp := types.NewRateLimitError("Rate limit exceeded. Please slow down.")
				_ = writeJSON(w, errResp.Error.HTTPStatusCode(), errResp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey derives the rate limit key for a request.
func clientKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return auth
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
