// Package cochesnet adapts the coches.net search API to the generic
// scraper contract. The API is a JSON POST endpoint addressed by page
// number, so pages are offset-addressable and may be fetched out of
// order.
package cochesnet

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/domain"
	"github.com/user/importcars-service/internal/profile"
	"github.com/user/importcars-service/internal/scraper"
	"github.com/user/importcars-service/internal/transport"
)

const searchAPIPath = "/segunda-mano/api/search/"

// Numeric ids the coches.net API expects for filter values.
var fuelIDs = map[domain.FuelType]int{
	domain.FuelDiesel:   1,
	domain.FuelGasoline: 2,
	domain.FuelElectric: 3,
	domain.FuelHybrid:   4,
	domain.FuelLPG:      6,
	domain.FuelCNG:      7,
}

var transmissionIDs = map[domain.Transmission]int{
	domain.TransmissionManual:        1,
	domain.TransmissionAutomatic:     2,
	domain.TransmissionSemiAutomatic: 3,
}

type Adapter struct {
	transport *transport.Transport
	profiles  *profile.Store
	baseURL   string
	logger    *zap.Logger
}

func NewAdapter(t *transport.Transport, ps *profile.Store, baseURL string, logger *zap.Logger) *Adapter {
	return &Adapter{transport: t, profiles: ps, baseURL: baseURL, logger: logger}
}

func (a *Adapter) Source() string { return domain.SourceCochesNet }

func (a *Adapter) Paging() scraper.PagingMode { return scraper.PagingIndexed }

func (a *Adapter) FetchPage(ctx context.Context, q domain.ScrapeQuery, cursor string) (*domain.PageResult, error) {
	page, err := scraper.DecodePageCursor(cursor)
	if err != nil {
		return nil, err
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 24
	}

	prof, err := a.profiles.Get(ctx, a.Source())
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(a.searchBody(q.Filters, page, pageSize))
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("content-type", "application/json")
	header.Set("accept", "application/json")
	header.Set("x-adevinta-channel", "web-desktop")

	resp, err := a.transport.Execute(ctx, prof, transport.RequestSpec{
		Source:   a.Source(),
		Endpoint: "search",
		Method:   "POST",
		URL:      a.baseURL + searchAPIPath,
		Header:   header,
		Body:     body,
	})
	if err != nil {
		return nil, err
	}

	records, total, hasNext, err := parseSearchResponse(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{
			Kind:     domain.TransportMalformed,
			Source:   a.Source(),
			Endpoint: "search",
			Err:      err,
		}
	}

	result := &domain.PageResult{RawRecords: records}
	switch {
	case hasNext != nil:
		result.Exhausted = !*hasNext
	case total != nil:
		result.Exhausted = page*pageSize >= *total
	default:
		result.Exhausted = len(records) < pageSize
	}
	if len(records) == 0 {
		result.Exhausted = true
	}
	if !result.Exhausted {
		result.NextCursor = scraper.EncodePageCursor(page + 1)
	}
	return result, nil
}

// searchBody translates the unified filters to the API's request shape.
func (a *Adapter) searchBody(f domain.Filters, page, pageSize int) map[string]any {
	filters := map[string]any{}
	if f.Make != "" {
		brand := map[string]any{"make": f.Make}
		if f.Model != "" {
			brand["model"] = f.Model
		}
		filters["brand"] = brand
	}
	if f.PriceMin > 0 || f.PriceMax > 0 {
		filters["price"] = rangeObject(int(f.PriceMin), int(f.PriceMax))
	}
	if f.YearMin > 0 || f.YearMax > 0 {
		filters["year"] = rangeObject(f.YearMin, f.YearMax)
	}
	if f.MileageMaxKM > 0 {
		filters["km"] = rangeObject(0, f.MileageMaxKM)
	}
	if f.PowerMinHP > 0 || f.PowerMaxHP > 0 {
		filters["hp"] = rangeObject(f.PowerMinHP, f.PowerMaxHP)
	}
	if len(f.FuelTypes) > 0 {
		var ids []int
		for _, ft := range f.FuelTypes {
			if id, ok := fuelIDs[ft]; ok {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			filters["fuelTypeIds"] = ids
		}
	}
	if len(f.Transmissions) > 0 {
		var ids []int
		for _, tr := range f.Transmissions {
			if id, ok := transmissionIDs[tr]; ok {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			filters["transmissionTypeIds"] = ids
		}
	}
	if f.DealerOnly {
		filters["sellerTypeId"] = 1
	} else if f.PrivateOnly {
		filters["sellerTypeId"] = 2
	}

	return map[string]any{
		"pagination": map[string]int{"page": page, "size": pageSize},
		"sort":       map[string]string{"order": "desc", "term": "relevance"},
		"filters":    filters,
	}
}

func rangeObject(min, max int) map[string]any {
	r := map[string]any{}
	if min > 0 {
		r["from"] = min
	}
	if max > 0 {
		r["to"] = max
	}
	return r
}
