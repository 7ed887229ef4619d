package assess

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dealradar/dealradar/engine/catalog"
	"github.com/dealradar/dealradar/pkg/repo"
)

// Offer is one ranked entry in the deal report.
type Offer struct {
	Product     catalog.Product          `json:"product"`
	Observation catalog.PriceObservation `json:"observation"`
	Assessment  catalog.DealAssessment   `json:"assessment"`
	Trend       Trend                    `json:"trend"`
}

// TopOffers scans the catalog for current offers at or above the minimum
// discount, assesses each, and returns the genuine ones ranked by
// discount, capped at limit. Products without a current observation are
// skipped.
func (e *Engine) TopOffers(ctx context.Context, store repo.Store, now time.Time, limit int) ([]Offer, error) {
	candidates, err := e.currentOffers(ctx, store, now)
	if err != nil {
		return nil, err
	}

	var offers []Offer
	for _, o := range candidates {
		if o.Assessment.Verdict != catalog.VerdictGenuine {
			e.log.Debug("offer filtered",
				"product", o.Product.Key().String(),
				"verdict", o.Assessment.Verdict,
				"rationale", o.Assessment.Rationale,
			)
			continue
		}
		offers = append(offers, o)
	}

	sort.Slice(offers, func(i, j int) bool {
		return offers[i].Observation.DiscountFraction() > offers[j].Observation.DiscountFraction()
	})
	if limit > 0 && len(offers) > limit {
		offers = offers[:limit]
	}
	return offers, nil
}

// FlaggedDeals returns the assessments of current offers that failed the
// authenticity checks. Feeds the suspicious-deal notification stream.
func (e *Engine) FlaggedDeals(ctx context.Context, store repo.Store, now time.Time) ([]catalog.DealAssessment, error) {
	candidates, err := e.currentOffers(ctx, store, now)
	if err != nil {
		return nil, err
	}

	var flagged []catalog.DealAssessment
	for _, o := range candidates {
		if o.Assessment.Verdict == catalog.VerdictSuspicious {
			flagged = append(flagged, o.Assessment)
		}
	}
	return flagged, nil
}

// currentOffers assesses every product whose latest observation claims at
// least the minimum discount. All verdicts are returned, unranked.
func (e *Engine) currentOffers(ctx context.Context, store repo.Store, now time.Time) ([]Offer, error) {
	products, err := store.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	var offers []Offer
	for _, p := range products {
		latest, ok, err := store.LatestObservation(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("loading latest observation for %s: %w", p.Key(), err)
		}
		if !ok || latest.DiscountFraction() < e.opts.MinDiscountFraction {
			continue
		}

		history, err := store.PriceHistory(ctx, p.ID, now.Add(-e.opts.BaselineWindow))
		if err != nil {
			return nil, fmt.Errorf("loading history for %s: %w", p.Key(), err)
		}
		prior := excludeObservation(history, latest.ID)

		offers = append(offers, Offer{
			Product:     p,
			Observation: latest,
			Assessment:  e.Assess(p.Key(), latest, prior),
			Trend:       TrendOf(history, e.opts.BaselineTolerance),
		})
	}
	return offers, nil
}

func excludeObservation(history []catalog.PriceObservation, id int64) []catalog.PriceObservation {
	if id == 0 {
		return history
	}
	out := make([]catalog.PriceObservation, 0, len(history))
	for _, o := range history {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}

// Trend summarizes the direction of a price series.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// TrendOf compares the median of the older half of the series against
// the newer half. Moves inside tolerance are stable. Series shorter than
// four points are always stable.
func TrendOf(history []catalog.PriceObservation, tolerance float64) Trend {
	if len(history) < 4 {
		return TrendStable
	}
	sorted := make([]catalog.PriceObservation, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ObservedAt.Before(sorted[j].ObservedAt) })

	mid := len(sorted) / 2
	older := medianEffective(sorted[:mid])
	newer := medianEffective(sorted[mid:])

	if newer.WithinTolerance(older, tolerance) {
		return TrendStable
	}
	if newer > older {
		return TrendIncreasing
	}
	return TrendDecreasing
}
