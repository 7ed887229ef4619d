// Package catalog defines the core data model shared by the scraping
// orchestrator and the offer authenticity engine: products, price
// observations, run records, and the error taxonomy.
package catalog

import "time"

// StockStatus reports whether a product was purchasable when observed.
type StockStatus string

const (
	StockIn      StockStatus = "in_stock"
	StockOut     StockStatus = "out_of_stock"
	StockUnknown StockStatus = "unknown"
)

// Product is a store-scoped catalog entry. Identity is (Store, SKU).
// Products are upserted on every observation and never deleted.
type Product struct {
	ID        int64       `json:"id,omitempty"`
	Store     string      `json:"store"`
	SKU       string      `json:"sku"`
	Name      string      `json:"name"`
	Brand     string      `json:"brand,omitempty"`
	Category  string      `json:"category,omitempty"`
	Stock     StockStatus `json:"stock"`
	URL       string      `json:"url"`
	FirstSeen time.Time   `json:"first_seen"`
}

// Key returns the product identity key.
func (p Product) Key() ProductKey {
	return ProductKey{Store: p.Store, SKU: p.SKU}
}

// ProductKey identifies a product across runs.
type ProductKey struct {
	Store string `json:"store"`
	SKU   string `json:"sku"`
}

func (k ProductKey) String() string { return k.Store + "/" + k.SKU }

// PriceObservation is one snapshot of a product's price. Observations form
// an append-only log: once written they are never edited, only purged by
// the age-based retention job.
type PriceObservation struct {
	ID         int64     `json:"id,omitempty"`
	ProductID  int64     `json:"product_id"`
	ObservedAt time.Time `json:"observed_at"`
	Listed     Money     `json:"listed"`
	Effective  Money     `json:"effective"`
	Label      string    `json:"label,omitempty"`
	Currency   string    `json:"currency"`
}

// DiscountFraction derives the displayed discount, clamped to [0,1].
func (o PriceObservation) DiscountFraction() float64 {
	if o.Listed <= 0 || o.Effective >= o.Listed {
		return 0
	}
	frac := float64(o.Listed-o.Effective) / float64(o.Listed)
	if frac > 1 {
		frac = 1
	}
	return frac
}

// RunStatus is the aggregate outcome of a scraping run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// PairOutcome records the result of one (store, query) pair in a run.
type PairOutcome struct {
	Store      string `json:"store"`
	Query      string `json:"query"`
	ItemsFound int    `json:"items_found"`
	Saved      int    `json:"saved"`
	Skipped    int    `json:"skipped"`
	Errors     int    `json:"errors"`
	Err        string `json:"error,omitempty"`
}

// Succeeded reports whether the pair completed without a fatal error.
// Per-item extraction errors do not fail the pair.
func (p PairOutcome) Succeeded() bool { return p.Err == "" }

// ScrapingRun is the append-only record of one orchestrator execution.
type ScrapingRun struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Status    RunStatus     `json:"status"`
	Outcomes  []PairOutcome `json:"outcomes"`
}

// AggregateStatus derives the run status from its pair outcomes:
// completed only if every pair succeeded, failed only if none did.
func (r ScrapingRun) AggregateStatus() RunStatus {
	ok, bad := 0, 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			ok++
		} else {
			bad++
		}
	}
	switch {
	case bad == 0 && ok >= 0:
		return RunCompleted
	case ok == 0:
		return RunFailed
	default:
		return RunPartial
	}
}

// Verdict classifies a candidate discount.
type Verdict string

const (
	VerdictGenuine             Verdict = "genuine"
	VerdictSuspicious          Verdict = "suspicious"
	VerdictInsufficientHistory Verdict = "insufficient_history"
)

// DealAssessment is the authenticity engine's output for one observation.
// It is a derived view recomputed from history, not a durable entity.
type DealAssessment struct {
	Product    ProductKey `json:"product"`
	Verdict    Verdict    `json:"verdict"`
	Confidence float64    `json:"confidence"`
	Baseline   Money      `json:"baseline"`
	Rationale  string     `json:"rationale"`
}
