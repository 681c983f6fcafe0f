// Package mobilede adapts the mobile.de listing search to the generic
// scraper contract. Result pages only expose listing ids, so every page
// fetch fans out into per-listing detail requests through the same
// transport.
package mobilede

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/domain"
	"github.com/user/importcars-service/internal/profile"
	"github.com/user/importcars-service/internal/scraper"
	"github.com/user/importcars-service/internal/transport"
)

type Adapter struct {
	transport *transport.Transport
	profiles  *profile.Store
	baseURL   string
	logger    *zap.Logger
}

func NewAdapter(t *transport.Transport, ps *profile.Store, baseURL string, logger *zap.Logger) *Adapter {
	return &Adapter{transport: t, profiles: ps, baseURL: baseURL, logger: logger}
}

func (a *Adapter) Source() string { return domain.SourceMobileDe }

// mobile.de chains pages through its next link, so they must be walked
// in order.
func (a *Adapter) Paging() scraper.PagingMode { return scraper.PagingSequential }

func (a *Adapter) FetchPage(ctx context.Context, q domain.ScrapeQuery, cursor string) (*domain.PageResult, error) {
	page, err := scraper.DecodePageCursor(cursor)
	if err != nil {
		return nil, err
	}

	prof, err := a.profiles.Get(ctx, a.Source())
	if err != nil {
		return nil, err
	}

	resp, err := a.transport.Execute(ctx, prof, transport.RequestSpec{
		Source:   a.Source(),
		Endpoint: "search",
		Method:   "GET",
		URL:      buildSearchURL(a.baseURL, q.Filters, page),
	})
	if err != nil {
		return nil, err
	}

	ids, hasNext, err := parseSearchPage(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{
			Kind:     domain.TransportMalformed,
			Source:   a.Source(),
			Endpoint: "search",
			Err:      err,
		}
	}

	result := &domain.PageResult{
		Exhausted: !hasNext || len(ids) == 0,
	}
	if !result.Exhausted {
		result.NextCursor = scraper.EncodePageCursor(page + 1)
	}

	for _, id := range ids {
		rec, err := a.fetchDetail(ctx, prof, id)
		if err != nil {
			// A single broken detail page is not worth the whole page;
			// skip it and keep going. Anti-bot rejection is different:
			// the profile is burned and the orchestrator must resubmit
			// the page with a fresh one.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if domain.IsTransportKind(err, domain.TransportAntiBotRejected) {
				return nil, err
			}
			a.logger.Warn("skipping listing detail",
				zap.String("source", a.Source()),
				zap.String("listing_id", id),
				zap.Error(err))
			continue
		}
		result.RawRecords = append(result.RawRecords, rec)
	}

	return result, nil
}

func (a *Adapter) fetchDetail(ctx context.Context, prof *profile.AccessProfile, id string) (domain.RawRecord, error) {
	url := fmt.Sprintf("%s%s?id=%s", a.baseURL, detailPath, id)
	resp, err := a.transport.Execute(ctx, prof, transport.RequestSpec{
		Source:   a.Source(),
		Endpoint: "detail",
		Method:   "GET",
		URL:      url,
	})
	if err != nil {
		return nil, err
	}
	return parseDetailPage(resp.Body, id, url)
}
