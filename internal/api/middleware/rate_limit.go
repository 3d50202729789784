package middleware

import (
	"net"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/kristinmlloyd/VibeCheck/internal/api/response"
)

// maxClients bounds the number of per-client limiters kept in memory.
const maxClients = 4096

// RateLimit allows each client address rps sustained requests per second
// with the given burst. rps <= 0 disables limiting.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiters, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		panic(err)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			lim, ok := limiters.Get(key)
			if !ok {
				lim = rate.NewLimiter(rate.Limit(rps), burst)
				limiters.Add(key, lim)
			}
			if !lim.Allow() {
				w.Header().Set("Retry-After", "1")
				response.RespondTooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
