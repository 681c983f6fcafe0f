// Package browser implements the profile bootstrapper with a headless
// Chrome session: it visits the source's search page like a person
// would, lets the anti-bot layer set its cookies and captures them into
// an access profile.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/domain"
	"github.com/user/importcars-service/internal/profile"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

var entryURLs = map[string]string{
	domain.SourceMobileDe:  "https://www.mobile.de/es/",
	domain.SourceCochesNet: "https://www.coches.net/segunda-mano/",
}

type Bootstrapper struct {
	headless   bool
	profileTTL time.Duration
	logger     *zap.Logger

	allocatorPool sync.Pool
}

func NewBootstrapper(headless bool, profileTTL time.Duration, logger *zap.Logger) *Bootstrapper {
	b := &Bootstrapper{headless: headless, profileTTL: profileTTL, logger: logger}
	b.allocatorPool.New = func() interface{} {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(userAgent),
		)
		allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
		return allocCtx
	}
	return b
}

func (b *Bootstrapper) Bootstrap(ctx context.Context, source string) (*profile.AccessProfile, error) {
	entry, ok := entryURLs[source]
	if !ok {
		return nil, fmt.Errorf("no bootstrap entry point for source %q", source)
	}

	allocCtx := b.allocatorPool.Get().(context.Context)
	defer b.allocatorPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	taskCtx, cancel = context.WithTimeout(taskCtx, 90*time.Second)
	defer cancel()

	b.logger.Info("bootstrapping profile", zap.String("source", source), zap.String("url", entry))

	cookies := make(map[string]string)
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(entry),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		// Give the challenge scripts time to settle their cookies.
		chromedp.Sleep(3*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			jar, err := storage.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			for _, c := range jar {
				cookies[c.Name] = c.Value
			}
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("browser bootstrap for %s: %w", source, err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("browser bootstrap for %s: no cookies captured", source)
	}

	now := time.Now()
	return &profile.AccessProfile{
		Source:        source,
		Cookies:       cookies,
		FingerprintID: "chrome-126-win64",
		CapturedAt:    now,
		ExpiresAt:     now.Add(b.profileTTL),
		Status:        profile.StatusValid,
	}, nil
}
