package transport

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// throttle gates outbound request rate per source with a token bucket.
// Waiters queue in arrival order inside rate.Limiter, so the configured
// inter-request spacing holds even under concurrent workers and no
// worker starves the rest. Independent of retry backoff.
type throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newThrottle(rps float64, burst int) *throttle {
	if burst < 1 {
		burst = 1
	}
	return &throttle{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (t *throttle) limiter(source string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[source]
	if !ok {
		l = rate.NewLimiter(t.rps, t.burst)
		t.limiters[source] = l
	}
	return l
}

func (t *throttle) Wait(ctx context.Context, source string) error {
	return t.limiter(source).Wait(ctx)
}
