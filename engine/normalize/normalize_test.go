package normalize

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/dealradar/dealradar/engine/catalog"
	"github.com/dealradar/dealradar/engine/scrape"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want catalog.Money
	}{
		{"S/ 1.299,90", 129990},
		{"S/1299.90", 129990},
		{"$1,299.90", 129990},
		{"1299", 129900},
		{"1.299", 129900},     // thousands separator, no decimals
		{"1,299", 129900},     // same with comma
		{"99,9", 9990},        // single decimal digit
		{"2.599,00", 259900},
		{"PEN 45.50", 4550},
		{"  7 ", 700},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		if err != nil {
			t.Errorf("ParsePrice(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePrice(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParsePriceRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "gratis", "S/ --", "0", "0.00"} {
		if _, err := ParsePrice(in); !errors.Is(err, catalog.ErrBadSchema) {
			t.Errorf("ParsePrice(%q) should be a schema error, got %v", in, err)
		}
	}
}

func TestCleanText(t *testing.T) {
	if got := CleanText("  Laptop   HP\t 15\" \n"); got != `Laptop HP 15"` {
		t.Errorf("CleanText = %q", got)
	}
}

func TestCanonicalAliases(t *testing.T) {
	n := New(nil)
	if got := n.CanonicalBrand("Hewlett-Packard"); got != "HP" {
		t.Errorf("brand = %q", got)
	}
	if got := n.CanonicalBrand("Sony"); got != "Sony" {
		t.Errorf("unaliased brand should pass through, got %q", got)
	}
	if got := n.CanonicalCategory("Portátiles"); got != "laptop" {
		t.Errorf("category = %q", got)
	}
}

func TestRecordBuildsCanonicalPair(t *testing.T) {
	n := New(nil)
	inStock := true
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	product, obs, err := n.Record("falabella",
		scrape.RawRecord{
			SKU:      " 884240 ",
			Name:     "Laptop  HP 15-fd0000",
			Brand:    "HP Inc",
			Category: "Laptops",
			URL:      "https://example.com/p/884240",
			InStock:  &inStock,
		},
		scrape.PriceQuote{
			Listed:    "S/ 2.599,00",
			Effective: "S/ 1.999,00",
			Label:     "Cyber",
			Currency:  "pen",
		},
		now,
	)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if product.SKU != "884240" || product.Name != "Laptop HP 15-fd0000" {
		t.Errorf("product = %+v", product)
	}
	if product.Brand != "HP" || product.Category != "laptop" {
		t.Errorf("aliases not applied: %+v", product)
	}
	if product.Stock != catalog.StockIn {
		t.Errorf("stock = %s", product.Stock)
	}
	if obs.Listed != 259900 || obs.Effective != 199900 {
		t.Errorf("prices = %d / %d", obs.Listed, obs.Effective)
	}
	if obs.Currency != "PEN" || obs.Label != "Cyber" {
		t.Errorf("obs = %+v", obs)
	}
}

func TestRecordRejectsMissingFields(t *testing.T) {
	n := New(nil)
	now := time.Now()

	_, _, err := n.Record("s", scrape.RawRecord{Name: "x"}, scrape.PriceQuote{Effective: "10"}, now)
	if !errors.Is(err, catalog.ErrBadSchema) {
		t.Errorf("missing sku: got %v", err)
	}

	_, _, err = n.Record("s", scrape.RawRecord{SKU: "1", Name: "x"}, scrape.PriceQuote{}, now)
	if !errors.Is(err, catalog.ErrBadSchema) {
		t.Errorf("missing price: got %v", err)
	}
}

// Randomized check of the effective <= listed invariant, including
// inputs where the effective price exceeds the listed one.
func TestRecordClampsInvertedPrices(t *testing.T) {
	n := New(nil)
	rng := rand.New(rand.NewSource(1))
	now := time.Now()

	for i := 0; i < 200; i++ {
		listed := rng.Intn(500000) + 1
		effective := rng.Intn(500000) + 1

		_, obs, err := n.Record("s",
			scrape.RawRecord{SKU: "sku", Name: "name"},
			scrape.PriceQuote{
				Listed:    fmt.Sprintf("%d.%02d", listed/100, listed%100),
				Effective: fmt.Sprintf("%d.%02d", effective/100, effective%100),
			},
			now,
		)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if obs.Effective > obs.Listed {
			t.Fatalf("iteration %d: invariant violated: effective=%d listed=%d", i, obs.Effective, obs.Listed)
		}
		if effective > listed && obs.DiscountFraction() != 0 {
			t.Fatalf("iteration %d: inverted pair should normalize to no discount", i)
		}
	}
}
