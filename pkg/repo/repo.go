// Package repo defines the durable storage interface for products, price
// observations, and run records, plus the keyed lock used to serialize
// concurrent upserts of the same product.
package repo

import (
	"context"
	"time"

	"github.com/dealradar/dealradar/engine/catalog"
)

// Store is the repository consumed by the orchestrator and the
// authenticity engine. The core never issues raw storage queries.
type Store interface {
	// UpsertProduct inserts the product or updates it in place, keyed by
	// (store, sku). FirstSeen is preserved on update. Returns the
	// durable product ID.
	UpsertProduct(ctx context.Context, p catalog.Product) (int64, error)

	// AppendObservation appends to the product's price log. Observations
	// are immutable once written.
	AppendObservation(ctx context.Context, o catalog.PriceObservation) error

	// LatestObservation returns the most recent observation for the
	// product, if any.
	LatestObservation(ctx context.Context, productID int64) (catalog.PriceObservation, bool, error)

	// PriceHistory returns observations since the given time, ordered by
	// observed-at ascending.
	PriceHistory(ctx context.Context, productID int64, since time.Time) ([]catalog.PriceObservation, error)

	// Products lists known products.
	Products(ctx context.Context) ([]catalog.Product, error)

	// RecordRun appends a finished run record.
	RecordRun(ctx context.Context, run catalog.ScrapingRun) error

	// PurgeObservationsBefore deletes observations older than cutoff
	// (retention cleanup). Returns the number removed.
	PurgeObservationsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
