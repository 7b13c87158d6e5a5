package meraki

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingCursor is returned when a non-empty page carries no pageEndAt,
// which would otherwise re-request the same page forever.
var ErrMissingCursor = errors.New("non-empty event page without pageEndAt")

// EventSource fetches one page of events.
type EventSource interface {
	Events(ctx context.Context, q EventsQuery) (*EventPage, error)
}

// PageHandler receives every non-empty page in order.
type PageHandler func(ctx context.Context, page *EventPage) error

// PageSummary describes one pagination sequence.
type PageSummary struct {
	Requests  int    // page requests issued, including the final one
	Pages     int    // non-empty pages handed to the handler
	Events    int    // events across those pages
	Cursor    string // startingAfter of the last request
	Truncated bool   // a non-empty page was left unhandled because of the page cap
}

// Pager walks a (network, product type) event log one page at a time,
// feeding each page's pageEndAt back as the next startingAfter until the
// API returns an empty page.
type Pager struct {
	source   EventSource
	perPage  int
	maxPages int
}

// NewPager creates a Pager. maxPages caps the non-empty pages handed to the
// handler; <= 0 means no cap.
func NewPager(source EventSource, perPage, maxPages int) *Pager {
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if maxPages < 0 {
		maxPages = 0
	}
	return &Pager{source: source, perPage: perPage, maxPages: maxPages}
}

// Fetch pages through events after startingAfter and calls handle for each
// non-empty page. Pages are requested strictly sequentially since each
// cursor comes from the previous response. Once maxPages pages have been
// handled one more page is requested: empty means the log is drained,
// otherwise the result is Truncated and that page is not handled.
func (p *Pager) Fetch(ctx context.Context, networkID, productType, startingAfter string, handle PageHandler) (PageSummary, error) {
	sum := PageSummary{Cursor: startingAfter}
	cursor := startingAfter

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		sum.Cursor = cursor
		page, err := p.source.Events(ctx, EventsQuery{
			NetworkID:     networkID,
			ProductType:   productType,
			PerPage:       p.perPage,
			StartingAfter: cursor,
		})
		sum.Requests++
		if err != nil {
			return sum, fmt.Errorf("fetch %s events for network %s: %w", productType, networkID, err)
		}

		if len(page.Events) == 0 {
			return sum, nil
		}
		if p.maxPages > 0 && sum.Pages >= p.maxPages {
			sum.Truncated = true
			return sum, nil
		}

		if err := handle(ctx, page); err != nil {
			return sum, err
		}
		sum.Pages++
		sum.Events += len(page.Events)

		if page.PageEndAt == "" {
			return sum, fmt.Errorf("network %s %s after %s: %w", networkID, productType, cursor, ErrMissingCursor)
		}
		cursor = page.PageEndAt
	}
}
