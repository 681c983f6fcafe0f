package profile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/user/importcars-service/internal/domain"
)

// Cache persists profiles across restarts. Implementations may be absent;
// the store works purely in memory without one.
type Cache interface {
	Load(ctx context.Context, source string) (*AccessProfile, error)
	Save(ctx context.Context, p *AccessProfile) error
	Delete(ctx context.Context, source string) error
}

// Store owns the per-source access profiles. It hands out valid
// snapshots and transparently re-bootstraps when a profile is missing,
// expired or revoked. Concurrent callers for the same source share a
// single in-flight bootstrap.
type Store struct {
	boot   Bootstrapper
	cache  Cache
	logger *zap.Logger

	mu       sync.Mutex
	profiles map[string]*AccessProfile

	group singleflight.Group

	now func() time.Time
}

func NewStore(boot Bootstrapper, cache Cache, logger *zap.Logger) *Store {
	return &Store{
		boot:     boot,
		cache:    cache,
		logger:   logger,
		profiles: make(map[string]*AccessProfile),
		now:      time.Now,
	}
}

// Get returns a currently valid profile for the source, bootstrapping if
// necessary. A revoked profile is never handed out. Bootstrap failures
// are retried once, then surfaced as a BootstrapError that is fatal for
// the source's current job.
func (s *Store) Get(ctx context.Context, source string) (*AccessProfile, error) {
	if p := s.current(source); p.UsableAt(s.now()) {
		return p, nil
	}

	v, err, _ := s.group.Do(source, func() (any, error) {
		// Another caller may have finished a bootstrap between the
		// check above and entering the flight.
		if p := s.current(source); p.UsableAt(s.now()) {
			return p, nil
		}
		if p := s.fromCache(ctx, source); p.UsableAt(s.now()) {
			s.put(p)
			return p, nil
		}
		return s.bootstrap(ctx, source)
	})
	if err != nil {
		return nil, err
	}
	return v.(*AccessProfile), nil
}

// Invalidate marks the held profile revoked, forcing the next Get to
// re-bootstrap. Called by the transport when a response indicates the
// profile was rejected.
func (s *Store) Invalidate(source string) {
	s.mu.Lock()
	if p, ok := s.profiles[source]; ok {
		revoked := *p
		revoked.Status = StatusRevoked
		s.profiles[source] = &revoked
	}
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Delete(context.Background(), source); err != nil {
			s.logger.Warn("failed to drop cached profile", zap.String("source", source), zap.Error(err))
		}
	}
	s.logger.Info("profile invalidated", zap.String("source", source))
}

func (s *Store) current(source string) *AccessProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[source]
}

func (s *Store) put(p *AccessProfile) {
	s.mu.Lock()
	s.profiles[p.Source] = p
	s.mu.Unlock()
}

func (s *Store) fromCache(ctx context.Context, source string) *AccessProfile {
	if s.cache == nil {
		return nil
	}
	p, err := s.cache.Load(ctx, source)
	if err != nil {
		s.logger.Warn("failed to load cached profile", zap.String("source", source), zap.Error(err))
		return nil
	}
	return p
}

// bootstrap invokes the external bootstrapper, retrying at most once.
func (s *Store) bootstrap(ctx context.Context, source string) (*AccessProfile, error) {
	p, err := s.boot.Bootstrap(ctx, source)
	if err != nil {
		s.logger.Warn("bootstrap failed, retrying once", zap.String("source", source), zap.Error(err))
		p, err = s.boot.Bootstrap(ctx, source)
	}
	if err != nil {
		s.logger.Error("bootstrap failed", zap.String("source", source), zap.Error(err))
		return nil, &domain.BootstrapError{Source: source, Err: err}
	}

	if p.Status == "" {
		p.Status = StatusValid
	}
	if p.CapturedAt.IsZero() {
		p.CapturedAt = s.now()
	}
	s.put(p)

	if s.cache != nil {
		if err := s.cache.Save(ctx, p); err != nil {
			s.logger.Warn("failed to cache profile", zap.String("source", source), zap.Error(err))
		}
	}

	s.logger.Info("profile bootstrapped",
		zap.String("source", source),
		zap.Time("expires_at", p.ExpiresAt))
	return p, nil
}
