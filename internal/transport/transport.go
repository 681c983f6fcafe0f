package transport

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/domain"
	"github.com/user/importcars-service/internal/monitoring"
	"github.com/user/importcars-service/internal/profile"
)

// Invalidator is the slice of the profile store the transport needs when
// a response proves the current profile is burned.
type Invalidator interface {
	Invalidate(source string)
}

type Options struct {
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	JitterFactor    float64 // fraction of the delay, applied as ±
	ThrottleRPS     float64
	ThrottleBurst   int
	CircuitFailures int
	CircuitCooldown time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:     4,
		BackoffBase:     500 * time.Millisecond,
		BackoffMax:      10 * time.Second,
		JitterFactor:    0.2,
		ThrottleRPS:     1,
		ThrottleBurst:   2,
		CircuitFailures: 5,
		CircuitCooldown: time.Minute,
	}
}

// Transport executes requests through the fingerprinted executor with
// per-source throttling, bounded exponential backoff on transient
// failures and circuit breaking per (source, endpoint-class).
type Transport struct {
	exec        Executor
	invalidator Invalidator
	opts        Options
	breakers    *breakerSet
	throttle    *throttle
	metrics     *monitoring.Metrics
	logger      *zap.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func New(exec Executor, inv Invalidator, opts Options, m *monitoring.Metrics, logger *zap.Logger) *Transport {
	return &Transport{
		exec:        exec,
		invalidator: inv,
		opts:        opts,
		breakers:    newBreakerSet(opts.CircuitFailures, opts.CircuitCooldown, m),
		throttle:    newThrottle(opts.ThrottleRPS, opts.ThrottleBurst),
		metrics:     m,
		logger:      logger,
		sleep:       sleepCtx,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute runs the request until it succeeds, fails terminally or the
// attempt ceiling is reached. Transient failures back off and retry;
// anti-bot rejections invalidate the profile and propagate once;
// malformed payloads surface immediately as page-level failures.
func (t *Transport) Execute(ctx context.Context, p *profile.AccessProfile, spec RequestSpec) (*Response, error) {
	key := spec.Source + "/" + spec.Endpoint
	br := t.breakers.get(key)

	var lastErr error
	for attempt := 1; attempt <= t.opts.MaxAttempts; attempt++ {
		if err := t.throttle.Wait(ctx, spec.Source); err != nil {
			return nil, err
		}
		if !br.Allow() {
			return nil, &domain.TransportError{
				Kind:     domain.TransportTransient,
				Source:   spec.Source,
				Endpoint: spec.Endpoint,
				Err:      domain.ErrCircuitOpen,
			}
		}

		start := time.Now()
		resp, err := t.exec.Send(ctx, p, spec)
		t.metrics.ObserveRequestDuration(spec.Source, spec.Endpoint, time.Since(start).Seconds())

		terr := t.classify(spec, resp, err)
		if terr == nil {
			br.Success()
			return resp, nil
		}

		switch terr.Kind {
		case domain.TransportAntiBotRejected:
			br.Failure()
			t.invalidator.Invalidate(spec.Source)
			t.logger.Warn("request rejected by anti-bot protection",
				zap.String("source", spec.Source),
				zap.String("endpoint", spec.Endpoint),
				zap.Int("status", terr.StatusCode))
			return nil, terr

		case domain.TransportMalformed:
			// The origin answered, just not with usable content. The
			// breaker must record that, otherwise a malformed half-open
			// probe would leave it latched between states.
			br.Success()
			t.logger.Warn("malformed response payload",
				zap.String("source", spec.Source),
				zap.String("endpoint", spec.Endpoint))
			return nil, terr

		default:
			br.Failure()
			lastErr = terr
			if attempt == t.opts.MaxAttempts {
				break
			}
			t.metrics.IncRequestRetries(spec.Source)
			delay := t.backoffDelay(attempt)
			t.logger.Warn("transient failure, backing off",
				zap.String("source", spec.Source),
				zap.String("endpoint", spec.Endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(terr))
			if err := t.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	return nil, &domain.OrchestrationError{
		Kind:   domain.OrchestrationRetriesExhausted,
		Source: spec.Source,
		Err:    lastErr,
	}
}

// backoffDelay computes the wait before retrying attempt n+1:
// base * 2^(n-1) ± jitter, bounded by the configured max.
func (t *Transport) backoffDelay(attempt int) time.Duration {
	d := t.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= t.opts.BackoffMax {
			d = t.opts.BackoffMax
			break
		}
	}
	if t.opts.JitterFactor > 0 {
		t.rndMu.Lock()
		f := (t.rnd.Float64()*2 - 1) * t.opts.JitterFactor
		t.rndMu.Unlock()
		d += time.Duration(float64(d) * f)
	}
	if d > t.opts.BackoffMax {
		d = t.opts.BackoffMax
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Response-body substrings that mark a bot challenge rather than real
// content. Source-specific refinements live in RequestSpec.Classify.
var challengeMarkers = [][]byte{
	[]byte("cf-chl"),
	[]byte("challenge-platform"),
	[]byte("captcha"),
	[]byte("datadome"),
	[]byte("geo.captcha-delivery.com"),
	[]byte("akamai"),
}

func (t *Transport) classify(spec RequestSpec, resp *Response, err error) *domain.TransportError {
	wrap := func(kind domain.TransportErrorKind, status int, cause error) *domain.TransportError {
		return &domain.TransportError{
			Kind:       kind,
			Source:     spec.Source,
			Endpoint:   spec.Endpoint,
			StatusCode: status,
			Err:        cause,
		}
	}

	if err != nil {
		// Timeouts, resets and DNS failures all land here.
		return wrap(domain.TransportTransient, 0, err)
	}

	if hasChallengeMarker(resp.Body) {
		return wrap(domain.TransportAntiBotRejected, resp.StatusCode, nil)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return wrap(domain.TransportAntiBotRejected, resp.StatusCode, nil)
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= 500:
		return wrap(domain.TransportTransient, resp.StatusCode, nil)
	case resp.StatusCode >= 400:
		return wrap(domain.TransportMalformed, resp.StatusCode, nil)
	}

	if spec.Classify != nil {
		if cerr := spec.Classify(resp); cerr != nil {
			var te *domain.TransportError
			if errors.As(cerr, &te) {
				return te
			}
			return wrap(domain.TransportMalformed, resp.StatusCode, cerr)
		}
	}
	return nil
}

func hasChallengeMarker(body []byte) bool {
	for _, marker := range challengeMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
