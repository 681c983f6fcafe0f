package transport

import (
	"context"
	"net/http"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"github.com/user/importcars-service/internal/profile"
)

// Headers every request carries regardless of source, mirroring a real
// Chrome session.
var defaultHeaders = map[string]string{
	"accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"accept-language":           "es-ES,es;q=0.9,en;q=0.8",
	"cache-control":             "no-cache",
	"pragma":                    "no-cache",
	"sec-ch-ua-mobile":          "?0",
	"sec-ch-ua-platform":        `"Windows"`,
	"upgrade-insecure-requests": "1",
	"user-agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

// RestyExecutor sends requests through a resty client wrapped with the
// cloudflare bypass round-tripper, replaying the profile's cookies and
// tokens on every call.
type RestyExecutor struct {
	client *resty.Client
}

func NewRestyExecutor(timeout time.Duration) *RestyExecutor {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0) // retries belong to the Transport above
	for k, v := range defaultHeaders {
		client.SetHeader(k, v)
	}
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	return &RestyExecutor{client: client}
}

func (e *RestyExecutor) Send(ctx context.Context, p *profile.AccessProfile, spec RequestSpec) (*Response, error) {
	req := e.client.R().SetContext(ctx)

	for name, value := range p.Cookies {
		req.SetCookie(&http.Cookie{Name: name, Value: value})
	}
	for name, value := range p.Tokens {
		req.SetHeader(name, value)
	}
	for name, values := range spec.Header {
		for _, v := range values {
			req.SetHeader(name, v)
		}
	}
	if spec.Query != nil {
		req.SetQueryParamsFromValues(spec.Query)
	}
	if len(spec.Body) > 0 {
		req.SetBody(spec.Body)
	}

	res, err := req.Execute(spec.Method, spec.URL)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: res.StatusCode(),
		Header:     res.Header(),
		Body:       res.Body(),
	}, nil
}
