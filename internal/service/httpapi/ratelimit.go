package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

const (
	visitorTTL             = 3 * time.Minute
	visitorCleanupInterval = time.Minute
)

// visitor хранит лимитер клиента и время последнего запроса.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter — token bucket на каждого клиента (по IP).
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter возвращает nil при rps <= 0: лимит выключен.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow расходует токен клиента key.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = l.now()
	return v.limiter.AllowN(v.lastSeen, 1)
}

// Cleanup удаляет клиентов, не приходивших дольше visitorTTL.
func (l *RateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, key)
		}
	}
}

// Run периодически чистит таблицу клиентов до отмены ctx.
func (l *RateLimiter) Run(ctx context.Context) {
	if l == nil {
		return
	}
	ticker := time.NewTicker(visitorCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func rateLimit(l *RateLimiter, m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if !l.Allow(c.ClientIP()) {
			m.RecordRateLimited()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": http.StatusText(http.StatusTooManyRequests),
			})
			return
		}
		c.Next()
	}
}
