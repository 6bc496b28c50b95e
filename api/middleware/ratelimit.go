package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tokscrape/config"
	"github.com/use-agent/tokscrape/models"
	"golang.org/x/time/rate"
)

const (
	sweepInterval = 5 * time.Minute
	idleTimeout   = time.Hour
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets holds one token bucket per caller identity.
type buckets struct {
	mu      sync.Mutex
	entries map[string]*bucket
	limit   rate.Limit
	burst   int
}

func newBuckets(cfg config.RateLimitConfig) *buckets {
	return &buckets{
		entries: make(map[string]*bucket),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
	}
}

// reserve takes a token for identity. When none is available it returns
// false and how long the caller should wait.
func (b *buckets) reserve(identity string, now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	e, ok := b.entries[identity]
	if !ok {
		e = &bucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.entries[identity] = e
	}
	e.lastSeen = now
	b.mu.Unlock()

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// sweep drops identities not seen since cutoff.
func (b *buckets) sweep(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, e := range b.entries {
		if e.lastSeen.Before(cutoff) {
			delete(b.entries, id)
			n++
		}
	}
	return n
}

func (b *buckets) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *buckets) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.sweep(now.Add(-idleTimeout))
		}
	}
}

// RateLimit returns per-identity (API key or client IP) token-bucket rate
// limiting. Identities idle for an hour are evicted until ctx is done.
// Rejected requests get 429 with a Retry-After header in whole seconds.
func RateLimit(ctx context.Context, cfg config.RateLimitConfig) gin.HandlerFunc {
	b := newBuckets(cfg)
	go b.sweepLoop(ctx)

	return func(c *gin.Context) {
		identity := c.GetString("api_key")
		if identity == "" {
			identity = c.ClientIP()
		}

		ok, wait := b.reserve(identity, time.Now())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}
		c.Next()
	}
}
