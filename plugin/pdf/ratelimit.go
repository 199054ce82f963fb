package pdf

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter throttles remote fetches per host.
type hostLimiter struct {
	mu     sync.Mutex
	limit  rate.Limit
	burst  int
	limits map[string]*rate.Limiter
}

// newHostLimiter returns nil when perSecond <= 0, which disables throttling.
func newHostLimiter(perSecond float64, burst int) *hostLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &hostLimiter{
		limit:  rate.Limit(perSecond),
		burst:  burst,
		limits: make(map[string]*rate.Limiter),
	}
}

func (l *hostLimiter) get(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limits[host]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limits[host] = limiter
	return limiter
}

// Wait blocks until a request to host is allowed or ctx is done.
func (l *hostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil {
		return nil
	}
	return l.get(host).Wait(ctx)
}
