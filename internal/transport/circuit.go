package transport

import (
	"sync"
	"time"

	"github.com/user/importcars-service/internal/monitoring"
)

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// breaker isolates one (source, endpoint-class) pair from repeated
// doomed requests. Closed counts consecutive failures; after the
// threshold it opens for a cooldown; half-open allows exactly one probe,
// whose outcome decides closed or open again.
type breaker struct {
	mu sync.Mutex

	key       string
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	metrics   *monitoring.Metrics

	state    circuitState
	failures int
	openedAt time.Time
	probing  bool
}

func newBreaker(key string, threshold int, cooldown time.Duration, m *monitoring.Metrics) *breaker {
	return &breaker{
		key:       key,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		metrics:   m,
	}
}

// Allow reports whether a request may be attempted now. In half-open it
// admits only the single probe.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.transition(circuitHalfOpen)
		b.probing = true
		return true
	default: // half-open
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// Success resets the breaker: the first success in half-open closes it.
func (b *breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state != circuitClosed {
		b.transition(circuitClosed)
	}
}

// Failure escalates the consecutive-failure count. A failed half-open
// probe reopens immediately.
func (b *breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitHalfOpen:
		b.probing = false
		b.openedAt = b.now()
		b.transition(circuitOpen)
	case circuitClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.openedAt = b.now()
			b.transition(circuitOpen)
		}
	}
}

func (b *breaker) transition(next circuitState) {
	b.state = next
	b.metrics.IncCircuitTransition(b.key, next.String())
}

// breakerSet holds one breaker per (source, endpoint-class) key.
type breakerSet struct {
	mu        sync.Mutex
	breakers  map[string]*breaker
	threshold int
	cooldown  time.Duration
	metrics   *monitoring.Metrics
}

func newBreakerSet(threshold int, cooldown time.Duration, m *monitoring.Metrics) *breakerSet {
	return &breakerSet{
		breakers:  make(map[string]*breaker),
		threshold: threshold,
		cooldown:  cooldown,
		metrics:   m,
	}
}

func (s *breakerSet) get(key string) *breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[key]
	if !ok {
		b = newBreaker(key, s.threshold, s.cooldown, s.metrics)
		s.breakers[key] = b
	}
	return b
}
