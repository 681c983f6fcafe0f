package profile

import (
	"context"
	"time"
)

// Status is the lifecycle state of an access profile.
type Status string

const (
	StatusValid   Status = "valid"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// AccessProfile holds the renewable credentials for one source: the
// cookie jar and auxiliary tokens captured by a bootstrap, plus the
// fingerprint the requests must replay. Profiles are owned by the Store
// and treated as immutable snapshots by readers.
type AccessProfile struct {
	Source        string            `json:"source"`
	Cookies       map[string]string `json:"cookies"`
	Tokens        map[string]string `json:"tokens,omitempty"`
	FingerprintID string            `json:"fingerprint_id"`
	CapturedAt    time.Time         `json:"captured_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	Status        Status            `json:"status"`
}

// UsableAt reports whether the profile may be handed out at t.
func (p *AccessProfile) UsableAt(t time.Time) bool {
	return p != nil && p.Status == StatusValid && p.ExpiresAt.After(t)
}

// Bootstrapper obtains a fresh profile for a source. The implementation
// (headless browser automation) lives outside the core; callers must
// guard against concurrent invocation per source.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, source string) (*AccessProfile, error)
}

// BootstrapFunc adapts a function to the Bootstrapper interface.
type BootstrapFunc func(ctx context.Context, source string) (*AccessProfile, error)

func (f BootstrapFunc) Bootstrap(ctx context.Context, source string) (*AccessProfile, error) {
	return f(ctx, source)
}
