package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	goredis "github.com/redis/go-redis/v9"

	"github.com/links2go/links2go/internal/config"
	"github.com/links2go/links2go/pkg/response"
)

// rateLimitScript counts requests in a fixed window. The window's TTL is set
// together with the first increment, so count and expiry can't diverge.
var rateLimitScript = goredis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return current
`)

// RateLimiter enforces a per-IP request budget over a fixed window, shared
// across instances through Redis.
type RateLimiter struct {
	client *goredis.Client
	window time.Duration
	max    int
}

func NewRateLimiter(client *goredis.Client, cfg config.RateLimit) *RateLimiter {
	return &RateLimiter{
		client: client,
		window: cfg.Window,
		max:    cfg.Max,
	}
}

// Middleware rejects requests over the budget with 429 and a Retry-After
// header. Limiter storage failures fail open: throttling trouble must never
// take down the redirect path.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.max <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := "ratelimit:" + clientIP(r)

		count, err := rateLimitScript.Run(r.Context(), l.client,
			[]string{key}, l.window.Milliseconds()).Int64()
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(l.max) {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, response.RateLimitedResponse)
			return
		}

		next.ServeHTTP(w, r)
	})
}
