// Package scrape defines the capability contract every store adapter
// implements, the static adapter registry, and the anti-detection HTTP
// plumbing (header rotation, instrumented transport).
package scrape

import "context"

// RawRecord is one product as an adapter saw it, before normalization.
// Price fields stay textual here; parsing is the normalizer's job.
type RawRecord struct {
	SKU      string
	Name     string
	Brand    string
	Category string
	URL      string
	// InStock is nil when the storefront exposed no availability signal.
	InStock *bool
	// Extra carries adapter-specific fragments (price texts, promo
	// badges) that the same adapter's ExtractPrice consumes later.
	Extra map[string]string
}

// PriceQuote is the price information extracted from a raw record.
type PriceQuote struct {
	// Listed is the "original" pre-discount price text. May be empty when
	// the storefront shows no anchor price.
	Listed string
	// Effective is the price the buyer actually pays. Required.
	Effective string
	// Label is promotional text attached to the price, if any.
	Label string
	// Currency is the ISO code the adapter observed.
	Currency string
}

// Pager yields search results one fetched page per step. Implementations
// fetch lazily: no network work happens before the first Next call.
type Pager interface {
	// Next fetches the next page. done is true once the sequence is
	// exhausted; records may be empty on the final step.
	Next(ctx context.Context) (records []RawRecord, done bool, err error)
}

// Adapter is the capability contract for one storefront.
type Adapter interface {
	// Name returns the store identifier (e.g. "falabella").
	Name() string
	// Search starts a lazy paged search for the query, fetching at most
	// maxPages pages.
	Search(ctx context.Context, query string, maxPages int) Pager
	// ExtractPrice pulls price information out of a raw record.
	ExtractPrice(rec RawRecord) (PriceQuote, error)
}

// PagerFunc adapts a function to the Pager interface.
type PagerFunc func(ctx context.Context) ([]RawRecord, bool, error)

func (f PagerFunc) Next(ctx context.Context) ([]RawRecord, bool, error) { return f(ctx) }
