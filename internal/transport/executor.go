package transport

import (
	"context"
	"net/http"
	"net/url"

	"github.com/user/importcars-service/internal/profile"
)

// RequestSpec describes one outbound request. Source and Endpoint key
// the throttle and circuit state; Endpoint is an endpoint class such as
// "search" or "detail", not a full URL.
type RequestSpec struct {
	Source   string
	Endpoint string
	Method   string
	URL      string
	Header   http.Header
	Query    url.Values
	Body     []byte

	// Classify, when set, lets the source adapter refine error
	// classification for responses the generic rules don't cover.
	// Returning nil accepts the response.
	Classify func(*Response) error
}

// Response is the raw HTTP result handed back to the adapter.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Executor performs a single request replaying the profile's browser
// fingerprint (cookies, tokens, TLS/HTTP2 signature). Network-level
// failures come back as plain errors; classification happens above.
type Executor interface {
	Send(ctx context.Context, p *profile.AccessProfile, spec RequestSpec) (*Response, error)
}
