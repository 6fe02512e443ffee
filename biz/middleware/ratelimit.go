package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"
)

// IPRateLimiter keeps a token bucket per client IP. Entries expire after
// the configured window to bound memory.
type IPRateLimiter struct {
	ips      map[string]*rate.Limiter
	mu       sync.Mutex
	requests int
	window   time.Duration
}

// NewIPRateLimiter allows `requests` requests per IP within `window`.
func NewIPRateLimiter(requests int, window time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		ips:      make(map[string]*rate.Limiter),
		requests: requests,
		window:   window,
	}
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limiter, ok := i.ips[ip]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(float64(i.requests)/i.window.Seconds()), i.requests)
	i.ips[ip] = limiter

	go func() {
		time.Sleep(i.window)
		i.mu.Lock()
		delete(i.ips, ip)
		i.mu.Unlock()
	}()

	return limiter
}

// Middleware rejects requests exceeding the per-IP budget.
func (i *IPRateLimiter) Middleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		limiter := i.getLimiter(c.ClientIP())
		if !limiter.Allow() {
			hlog.CtxWarnf(ctx, "rate limit exceeded for %s", c.ClientIP())
			c.JSON(consts.StatusTooManyRequests, map[string]any{
				"code": consts.StatusTooManyRequests,
				"msg":  "too many requests, slow down",
			})
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}
