package profile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/domain"
)

type countingBootstrapper struct {
	calls    atomic.Int64
	failures atomic.Int64 // fail this many leading calls
	ttl      time.Duration
	now      func() time.Time
}

func (b *countingBootstrapper) Bootstrap(ctx context.Context, source string) (*AccessProfile, error) {
	n := b.calls.Add(1)
	if n <= b.failures.Load() {
		return nil, errors.New("challenge page never settled")
	}
	return &AccessProfile{
		Source:        source,
		Cookies:       map[string]string{"datadome": "tok"},
		FingerprintID: "chrome-126-win64",
		CapturedAt:    b.now(),
		ExpiresAt:     b.now().Add(b.ttl),
		Status:        StatusValid,
	}, nil
}

func newTestStore(t *testing.T, boot Bootstrapper) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(boot, nil, zap.NewNop())
	s.now = func() time.Time { return now }
	return s, &now
}

func TestStoreGetBootstrapsOnce(t *testing.T) {
	boot := &countingBootstrapper{ttl: 12 * time.Hour}
	s, now := newTestStore(t, boot)
	boot.now = func() time.Time { return *now }

	p, err := s.Get(context.Background(), domain.SourceMobileDe)
	require.NoError(t, err)
	require.Equal(t, domain.SourceMobileDe, p.Source)
	require.Equal(t, int64(1), boot.calls.Load())

	// Subsequent calls reuse the held profile.
	p2, err := s.Get(context.Background(), domain.SourceMobileDe)
	require.NoError(t, err)
	require.Same(t, p, p2)
	require.Equal(t, int64(1), boot.calls.Load())
}

func TestStoreConcurrentGetSharesOneBootstrap(t *testing.T) {
	boot := &countingBootstrapper{ttl: 12 * time.Hour}
	s, now := newTestStore(t, boot)
	boot.now = func() time.Time { return *now }

	const callers = 32
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Get(context.Background(), domain.SourceCochesNet)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), boot.calls.Load(), "concurrent callers must share a single bootstrap")
}

func TestStoreExpiredProfileRebootstrapped(t *testing.T) {
	boot := &countingBootstrapper{ttl: time.Hour}
	s, now := newTestStore(t, boot)
	boot.now = func() time.Time { return *now }

	_, err := s.Get(context.Background(), domain.SourceMobileDe)
	require.NoError(t, err)

	*now = now.Add(2 * time.Hour)
	_, err = s.Get(context.Background(), domain.SourceMobileDe)
	require.NoError(t, err)
	require.Equal(t, int64(2), boot.calls.Load())
}

func TestStoreInvalidateForcesRebootstrap(t *testing.T) {
	boot := &countingBootstrapper{ttl: 12 * time.Hour}
	s, now := newTestStore(t, boot)
	boot.now = func() time.Time { return *now }

	p, err := s.Get(context.Background(), domain.SourceMobileDe)
	require.NoError(t, err)
	require.Equal(t, StatusValid, p.Status)

	s.Invalidate(domain.SourceMobileDe)

	// The caller's snapshot is untouched; the store's copy is revoked.
	require.Equal(t, StatusValid, p.Status)

	p2, err := s.Get(context.Background(), domain.SourceMobileDe)
	require.NoError(t, err)
	require.NotSame(t, p, p2)
	require.Equal(t, int64(2), boot.calls.Load())
}

func TestStoreBootstrapRetriedOnce(t *testing.T) {
	boot := &countingBootstrapper{ttl: 12 * time.Hour}
	boot.failures.Store(1)
	s, now := newTestStore(t, boot)
	boot.now = func() time.Time { return *now }

	p, err := s.Get(context.Background(), domain.SourceMobileDe)
	require.NoError(t, err)
	require.Equal(t, StatusValid, p.Status)
	require.Equal(t, int64(2), boot.calls.Load())
}

func TestStoreBootstrapFailureSurfaced(t *testing.T) {
	boot := &countingBootstrapper{ttl: 12 * time.Hour}
	boot.failures.Store(2)
	s, now := newTestStore(t, boot)
	boot.now = func() time.Time { return *now }

	_, err := s.Get(context.Background(), domain.SourceMobileDe)
	var berr *domain.BootstrapError
	require.True(t, errors.As(err, &berr))
	require.Equal(t, domain.SourceMobileDe, berr.Source)
	require.Equal(t, int64(2), boot.calls.Load(), "exactly one retry before giving up")

	// A later attempt may succeed once the source recovers.
	p, err := s.Get(context.Background(), domain.SourceMobileDe)
	require.NoError(t, err)
	require.Equal(t, StatusValid, p.Status)
}

func TestStoreSourcesIsolated(t *testing.T) {
	boot := &countingBootstrapper{ttl: 12 * time.Hour}
	s, now := newTestStore(t, boot)
	boot.now = func() time.Time { return *now }

	_, err := s.Get(context.Background(), domain.SourceMobileDe)
	require.NoError(t, err)
	_, err = s.Get(context.Background(), domain.SourceCochesNet)
	require.NoError(t, err)
	require.Equal(t, int64(2), boot.calls.Load())

	s.Invalidate(domain.SourceMobileDe)

	_, err = s.Get(context.Background(), domain.SourceCochesNet)
	require.NoError(t, err)
	require.Equal(t, int64(2), boot.calls.Load(), "invalidating one source must not touch the other")
}

func TestUsableAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var nilProfile *AccessProfile
	require.False(t, nilProfile.UsableAt(now))

	p := &AccessProfile{Status: StatusValid, ExpiresAt: now.Add(time.Hour)}
	require.True(t, p.UsableAt(now))
	require.False(t, p.UsableAt(now.Add(2*time.Hour)))

	p.Status = StatusRevoked
	require.False(t, p.UsableAt(now))
}
