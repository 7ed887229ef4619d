// Package assess decides whether an advertised discount is genuine by
// comparing it against the product's own price history. Verdicts are
// derived on demand and never stored.
package assess

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dealradar/dealradar/engine/catalog"
)

// Options tune the verdict rules.
type Options struct {
	// MinHistoryDays is the minimum span between the oldest and newest
	// observation before any verdict other than insufficient history.
	MinHistoryDays int
	// MinObservations is the minimum number of history points.
	MinObservations int
	// BaselineWindow is how far back the baseline looks.
	BaselineWindow time.Duration
	// BaselineTolerance is the fraction around the baseline inside which
	// a price is considered unchanged.
	BaselineTolerance float64
	// AnchorTolerance is the fraction used when checking whether the
	// listed price was ever a real standing price.
	AnchorTolerance float64
	// MinDiscountFraction is the advertised discount below which a
	// near-baseline price is ordinary rather than suspicious.
	MinDiscountFraction float64
}

// DefaultOptions mirror the shipped configuration defaults.
func DefaultOptions() Options {
	return Options{
		MinHistoryDays:      7,
		MinObservations:     3,
		BaselineWindow:      30 * 24 * time.Hour,
		BaselineTolerance:   0.05,
		AnchorTolerance:     0.02,
		MinDiscountFraction: 0.15,
	}
}

// Engine evaluates observations against history.
type Engine struct {
	opts Options
	log  *slog.Logger
}

// New creates an Engine. A nil logger discards.
func New(opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{opts: opts, log: log}
}

// Assess classifies one observation given the product's prior history.
// The history must not include the observation being assessed; entries
// outside the baseline window are ignored.
func (e *Engine) Assess(product catalog.ProductKey, obs catalog.PriceObservation, history []catalog.PriceObservation) catalog.DealAssessment {
	window := e.trailingWindow(obs.ObservedAt, history)

	if short, why := e.historyTooShort(window); short {
		return catalog.DealAssessment{
			Product:    product,
			Verdict:    catalog.VerdictInsufficientHistory,
			Confidence: 0,
			Rationale:  why,
		}
	}

	baseline := medianEffective(window)
	out := catalog.DealAssessment{Product: product, Baseline: baseline}

	// A listed price that never stood as a real price in the window is a
	// fabricated anchor, regardless of how the effective price compares.
	if obs.DiscountFraction() > 0 && !anchorSeen(window, obs.Listed, e.opts.AnchorTolerance) {
		out.Verdict = catalog.VerdictSuspicious
		out.Confidence = e.confidence(0.2, window)
		out.Rationale = fmt.Sprintf(
			"listed price %s never observed as a standing price in the last %d days",
			obs.Listed, int(e.opts.BaselineWindow.Hours()/24))
		return out
	}

	gap := priceGap(baseline, obs.Effective)

	switch {
	case obs.Effective.WithinTolerance(baseline, e.opts.BaselineTolerance):
		if obs.DiscountFraction() >= e.opts.MinDiscountFraction {
			out.Verdict = catalog.VerdictSuspicious
			out.Confidence = e.confidence(0.15, window)
			out.Rationale = fmt.Sprintf(
				"advertised %.0f%% off but price %s is within %.0f%% of the %s baseline",
				obs.DiscountFraction()*100, obs.Effective, e.opts.BaselineTolerance*100, baseline)
		} else {
			out.Verdict = catalog.VerdictGenuine
			out.Confidence = e.confidence(0.05, window)
			out.Rationale = fmt.Sprintf("price %s consistent with the %s baseline, no meaningful discount", obs.Effective, baseline)
		}
	case gap > 0:
		out.Verdict = catalog.VerdictGenuine
		out.Confidence = e.confidence(gap, window)
		out.Rationale = fmt.Sprintf("price %s is %.1f%% below the %s baseline", obs.Effective, gap*100, baseline)
	default:
		// Above baseline beyond tolerance: the price went up, so any
		// advertised discount is measured against inflated ground.
		out.Verdict = catalog.VerdictSuspicious
		out.Confidence = e.confidence(-gap, window)
		out.Rationale = fmt.Sprintf("price %s is above the %s baseline", obs.Effective, baseline)
	}
	return out
}

// trailingWindow filters history to [observedAt-window, observedAt),
// sorted ascending.
func (e *Engine) trailingWindow(observedAt time.Time, history []catalog.PriceObservation) []catalog.PriceObservation {
	cutoff := observedAt.Add(-e.opts.BaselineWindow)
	var out []catalog.PriceObservation
	for _, h := range history {
		if !h.ObservedAt.Before(cutoff) && h.ObservedAt.Before(observedAt) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out
}

func (e *Engine) historyTooShort(window []catalog.PriceObservation) (bool, string) {
	if len(window) < e.opts.MinObservations {
		return true, fmt.Sprintf("only %d observations, need %d", len(window), e.opts.MinObservations)
	}
	span := window[len(window)-1].ObservedAt.Sub(window[0].ObservedAt)
	minSpan := time.Duration(e.opts.MinHistoryDays) * 24 * time.Hour
	if span < minSpan {
		return true, fmt.Sprintf("history spans %.1f days, need %d", span.Hours()/24, e.opts.MinHistoryDays)
	}
	return false, ""
}

// confidence maps a price gap and the amount of history onto [0,1].
// It grows monotonically with both.
func (e *Engine) confidence(gap float64, window []catalog.PriceObservation) float64 {
	if gap < 0 {
		gap = 0
	}
	if gap > 0.5 {
		gap = 0.5
	}
	span := window[len(window)-1].ObservedAt.Sub(window[0].ObservedAt)
	historyFactor := span.Hours() / e.opts.BaselineWindow.Hours()
	if historyFactor > 1 {
		historyFactor = 1
	}
	c := 0.5 + gap*0.8 + historyFactor*0.1
	if c > 0.99 {
		c = 0.99
	}
	return c
}

// medianEffective returns the median of the effective prices. For an
// even count it averages the two middle values in cents.
func medianEffective(window []catalog.PriceObservation) catalog.Money {
	prices := make([]catalog.Money, len(window))
	for i, o := range window {
		prices[i] = o.Effective
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })
	n := len(prices)
	if n%2 == 1 {
		return prices[n/2]
	}
	return (prices[n/2-1] + prices[n/2]) / 2
}

// anchorSeen reports whether listed stood as an effective price at least
// once in the window, within tolerance.
func anchorSeen(window []catalog.PriceObservation, listed catalog.Money, tolerance float64) bool {
	for _, o := range window {
		if o.Effective.WithinTolerance(listed, tolerance) {
			return true
		}
	}
	return false
}

// priceGap is the signed fraction by which effective undercuts baseline.
func priceGap(baseline, effective catalog.Money) float64 {
	if baseline <= 0 {
		return 0
	}
	return float64(baseline-effective) / float64(baseline)
}
