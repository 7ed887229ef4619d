package assess

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dealradar/dealradar/engine/catalog"
	"github.com/dealradar/dealradar/pkg/repo"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// series builds daily observations ending the day before testNow, oldest
// first, with listed = effective (standing prices, no promos).
func series(prices ...catalog.Money) []catalog.PriceObservation {
	out := make([]catalog.PriceObservation, len(prices))
	for i, p := range prices {
		out[i] = catalog.PriceObservation{
			ID:         int64(i + 1),
			ObservedAt: testNow.AddDate(0, 0, -(len(prices) - i)),
			Listed:     p,
			Effective:  p,
			Currency:   "PEN",
		}
	}
	return out
}

func obsAt(listed, effective catalog.Money) catalog.PriceObservation {
	return catalog.PriceObservation{ObservedAt: testNow, Listed: listed, Effective: effective, Currency: "PEN"}
}

var key = catalog.ProductKey{Store: "falabella", SKU: "1"}

func TestInsufficientHistory(t *testing.T) {
	e := New(DefaultOptions(), nil)

	// Too few observations.
	got := e.Assess(key, obsAt(100000, 50000), series(100000, 100000))
	if got.Verdict != catalog.VerdictInsufficientHistory {
		t.Errorf("few observations: verdict = %s", got.Verdict)
	}

	// Enough observations but spanning under the minimum days.
	short := []catalog.PriceObservation{
		{ID: 1, ObservedAt: testNow.Add(-40 * time.Hour), Listed: 100000, Effective: 100000},
		{ID: 2, ObservedAt: testNow.Add(-30 * time.Hour), Listed: 100000, Effective: 100000},
		{ID: 3, ObservedAt: testNow.Add(-20 * time.Hour), Listed: 100000, Effective: 100000},
		{ID: 4, ObservedAt: testNow.Add(-10 * time.Hour), Listed: 100000, Effective: 100000},
	}
	got = e.Assess(key, obsAt(100000, 50000), short)
	if got.Verdict != catalog.VerdictInsufficientHistory {
		t.Errorf("short span: verdict = %s", got.Verdict)
	}
	if got.Confidence != 0 {
		t.Errorf("insufficient history confidence = %v, want 0", got.Confidence)
	}
}

func TestFabricatedAnchor(t *testing.T) {
	e := New(DefaultOptions(), nil)

	// Product always sold around 1000.00; suddenly "listed" 2000.00 with
	// a 50% discount back to the usual price.
	hist := series(100000, 99000, 101000, 100000, 100500, 99500, 100000, 100000, 100000)
	got := e.Assess(key, obsAt(200000, 100000), hist)

	if got.Verdict != catalog.VerdictSuspicious {
		t.Fatalf("verdict = %s, want suspicious", got.Verdict)
	}
	if !strings.Contains(got.Rationale, "never observed") {
		t.Errorf("rationale should name the fabricated anchor, got %q", got.Rationale)
	}
}

func TestNearBaselineWithNominalDiscount(t *testing.T) {
	e := New(DefaultOptions(), nil)

	// Listed price did stand in the window (so not a fabricated anchor),
	// but the "discounted" price is the everyday price.
	hist := append(series(100000, 100000, 100000, 100000, 100000, 100000, 100000, 100000),
		catalog.PriceObservation{ID: 99, ObservedAt: testNow.AddDate(0, 0, -20), Listed: 130000, Effective: 130000})
	got := e.Assess(key, obsAt(130000, 101000), hist)

	if got.Verdict != catalog.VerdictSuspicious {
		t.Fatalf("verdict = %s, want suspicious (rationale %q)", got.Verdict, got.Rationale)
	}
	if !strings.Contains(got.Rationale, "baseline") {
		t.Errorf("rationale = %q", got.Rationale)
	}
}

func TestGenuineDeepDiscount(t *testing.T) {
	e := New(DefaultOptions(), nil)

	hist := series(100000, 100000, 100500, 99500, 100000, 100000, 100000, 100000, 100000)
	got := e.Assess(key, obsAt(100000, 70000), hist)

	if got.Verdict != catalog.VerdictGenuine {
		t.Fatalf("verdict = %s (rationale %q)", got.Verdict, got.Rationale)
	}
	if got.Baseline != 100000 {
		t.Errorf("baseline = %s, want 1000.00", got.Baseline)
	}
	if got.Confidence <= 0.5 || got.Confidence > 0.99 {
		t.Errorf("confidence = %v", got.Confidence)
	}
}

func TestConfidenceMonotonicInGap(t *testing.T) {
	e := New(DefaultOptions(), nil)
	hist := series(100000, 100000, 100000, 100000, 100000, 100000, 100000, 100000)

	shallow := e.Assess(key, obsAt(100000, 90000), hist)
	deep := e.Assess(key, obsAt(100000, 60000), hist)

	if shallow.Verdict != catalog.VerdictGenuine || deep.Verdict != catalog.VerdictGenuine {
		t.Fatalf("verdicts = %s / %s", shallow.Verdict, deep.Verdict)
	}
	if deep.Confidence <= shallow.Confidence {
		t.Errorf("deeper discount should score higher: %v vs %v", deep.Confidence, shallow.Confidence)
	}
}

func TestConfidenceMonotonicInHistory(t *testing.T) {
	e := New(DefaultOptions(), nil)

	week := series(100000, 100000, 100000, 100000, 100000, 100000, 100000, 100000)
	month := series(
		100000, 100000, 100000, 100000, 100000, 100000, 100000, 100000,
		100000, 100000, 100000, 100000, 100000, 100000, 100000, 100000,
		100000, 100000, 100000, 100000, 100000, 100000, 100000, 100000,
		100000, 100000, 100000, 100000,
	)

	little := e.Assess(key, obsAt(100000, 70000), week)
	lots := e.Assess(key, obsAt(100000, 70000), month)
	if lots.Confidence <= little.Confidence {
		t.Errorf("longer history should score higher: %v vs %v", lots.Confidence, little.Confidence)
	}
}

func TestAboveBaselineIsSuspicious(t *testing.T) {
	e := New(DefaultOptions(), nil)
	hist := series(100000, 100000, 100000, 100000, 100000, 100000, 100000, 100000)

	got := e.Assess(key, obsAt(120000, 115000), hist)
	if got.Verdict != catalog.VerdictSuspicious {
		t.Errorf("price above baseline: verdict = %s", got.Verdict)
	}
}

func TestMedianEffective(t *testing.T) {
	odd := series(300, 100, 200)
	if m := medianEffective(odd); m != 200 {
		t.Errorf("odd median = %d", m)
	}
	even := series(100, 400, 200, 300)
	if m := medianEffective(even); m != 250 {
		t.Errorf("even median = %d", m)
	}
}

func TestTrendOf(t *testing.T) {
	tol := 0.05
	if got := TrendOf(series(100, 100, 100), tol); got != TrendStable {
		t.Errorf("short series = %s", got)
	}
	if got := TrendOf(series(100000, 100000, 120000, 121000), tol); got != TrendIncreasing {
		t.Errorf("rising = %s", got)
	}
	if got := TrendOf(series(120000, 121000, 100000, 99000), tol); got != TrendDecreasing {
		t.Errorf("falling = %s", got)
	}
	if got := TrendOf(series(100000, 101000, 100000, 100500), tol); got != TrendStable {
		t.Errorf("flat = %s", got)
	}
}

func TestTopOffers(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	e := New(DefaultOptions(), nil)

	seed := func(sku string, standing catalog.Money, today catalog.PriceObservation) int64 {
		id, err := store.UpsertProduct(ctx, catalog.Product{Store: "falabella", SKU: sku, Name: "p" + sku})
		if err != nil {
			t.Fatal(err)
		}
		for d := 10; d >= 1; d-- {
			store.AppendObservation(ctx, catalog.PriceObservation{
				ProductID: id, ObservedAt: testNow.AddDate(0, 0, -d),
				Listed: standing, Effective: standing,
			})
		}
		today.ProductID = id
		store.AppendObservation(ctx, today)
		return id
	}

	// Genuine 30% discount.
	seed("deep", 100000, catalog.PriceObservation{ObservedAt: testNow, Listed: 100000, Effective: 70000})
	// Genuine 20% discount, should rank below.
	seed("mild", 100000, catalog.PriceObservation{ObservedAt: testNow, Listed: 100000, Effective: 80000})
	// Fake anchor, filtered out.
	seed("fake", 100000, catalog.PriceObservation{ObservedAt: testNow, Listed: 250000, Effective: 100000})
	// Below the minimum discount, not an offer.
	seed("flat", 100000, catalog.PriceObservation{ObservedAt: testNow, Listed: 100000, Effective: 98000})

	offers, err := e.TopOffers(ctx, store, testNow, 10)
	if err != nil {
		t.Fatalf("TopOffers: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("offers = %d, want 2", len(offers))
	}
	if offers[0].Product.SKU != "deep" || offers[1].Product.SKU != "mild" {
		t.Errorf("ranking wrong: %s, %s", offers[0].Product.SKU, offers[1].Product.SKU)
	}
	for _, o := range offers {
		if o.Assessment.Verdict != catalog.VerdictGenuine {
			t.Errorf("%s verdict = %s", o.Product.SKU, o.Assessment.Verdict)
		}
	}

	limited, err := e.TopOffers(ctx, store, testNow, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored, got %d", len(limited))
	}

	flagged, err := e.FlaggedDeals(ctx, store, testNow)
	if err != nil {
		t.Fatalf("FlaggedDeals: %v", err)
	}
	if len(flagged) != 1 {
		t.Fatalf("flagged = %d, want 1", len(flagged))
	}
	if flagged[0].Product.SKU != "fake" {
		t.Errorf("flagged product = %s, want fake", flagged[0].Product.SKU)
	}
	if flagged[0].Verdict != catalog.VerdictSuspicious {
		t.Errorf("flagged verdict = %s", flagged[0].Verdict)
	}
}
