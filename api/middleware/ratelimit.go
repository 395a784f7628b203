package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/use-agent/sieve/config"
	"github.com/use-agent/sieve/models"
	"golang.org/x/time/rate"
)

// limiterIdle is how long an identity's bucket survives without requests.
const limiterIdle = time.Hour

// RateLimit returns per-identity token-bucket middleware. The identity is the
// API key set by Auth, or the client IP. Idle buckets expire through go-cache.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	var mu sync.Mutex
	limiters := gocache.New(limiterIdle, 5*time.Minute)

	limiterFor := func(identity string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		var l *rate.Limiter
		if v, ok := limiters.Get(identity); ok {
			l = v.(*rate.Limiter)
		} else {
			l = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
		}
		// refresh the idle expiry on every request
		limiters.SetDefault(identity, l)
		return l
	}

	return func(c *gin.Context) {
		identity := c.GetString(APIKeyContextKey)
		if identity == "" {
			identity = c.ClientIP()
		}
		if !limiterFor(identity).Allow() {
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited, "rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
