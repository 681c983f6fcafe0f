// Package scraper defines the source-agnostic adapter contract the
// orchestrator drives, plus the cursor helpers shared by page-numbered
// sources.
package scraper

import (
	"context"
	"fmt"
	"strconv"

	"github.com/user/importcars-service/internal/domain"
)

// PagingMode tells the orchestrator how pages of a source may be
// scheduled.
type PagingMode int

const (
	// PagingSequential chains pages through opaque cursors; page n+1
	// cannot be requested before page n returned.
	PagingSequential PagingMode = iota
	// PagingIndexed addresses pages by number, so they may be fetched
	// out of order and reassembled by index before emission.
	PagingIndexed
)

// Adapter fetches one source's result pages. Its responsibility is
// request construction and cursor advancement; field extraction is
// delegated to the source's parser.
type Adapter interface {
	Source() string
	Paging() PagingMode
	FetchPage(ctx context.Context, q domain.ScrapeQuery, cursor string) (*domain.PageResult, error)
}

// EncodePageCursor encodes a 1-based page number as an opaque cursor.
func EncodePageCursor(page int) string {
	return strconv.Itoa(page)
}

// DecodePageCursor decodes a cursor produced by EncodePageCursor. The
// empty cursor means the first page.
func DecodePageCursor(cursor string) (int, error) {
	if cursor == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(cursor)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page cursor %q", cursor)
	}
	return page, nil
}
