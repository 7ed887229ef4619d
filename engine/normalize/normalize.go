// Package normalize maps heterogeneous raw adapter output into the
// canonical Product/PriceObservation shape before persistence.
package normalize

import (
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/dealradar/dealradar/engine/catalog"
	"github.com/dealradar/dealradar/engine/scrape"
)

// Normalizer validates and canonicalizes raw records. Records missing a
// resolvable price or identifier are rejected (logged by the caller,
// skipped, never fatal to the run).
type Normalizer struct {
	brandAliases    map[string]string
	categoryAliases map[string]string
	log             *slog.Logger
}

// New creates a Normalizer with the built-in alias tables.
func New(log *slog.Logger) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{
		brandAliases:    defaultBrandAliases,
		categoryAliases: defaultCategoryAliases,
		log:             log,
	}
}

// Record builds the canonical product and observation for one raw record.
// The effective <= listed invariant is enforced here: a violating pair is
// collapsed to no-discount before it can reach storage.
func (n *Normalizer) Record(store string, raw scrape.RawRecord, quote scrape.PriceQuote, now time.Time) (catalog.Product, catalog.PriceObservation, error) {
	var (
		product catalog.Product
		obs     catalog.PriceObservation
	)

	sku := CleanText(raw.SKU)
	name := CleanText(raw.Name)
	if sku == "" {
		return product, obs, catalog.BadSchema(store, "sku")
	}
	if name == "" {
		return product, obs, catalog.BadSchema(store, "name")
	}

	effective, err := ParsePrice(quote.Effective)
	if err != nil {
		return product, obs, catalog.BadSchema(store, "effective_price")
	}
	listed := effective
	if strings.TrimSpace(quote.Listed) != "" {
		if v, err := ParsePrice(quote.Listed); err == nil {
			listed = v
		} else {
			n.log.Debug("unparseable listed price, assuming no discount",
				"store", store, "sku", sku, "listed", quote.Listed)
		}
	}
	if effective > listed {
		effective = listed
	}

	stock := catalog.StockUnknown
	if raw.InStock != nil {
		if *raw.InStock {
			stock = catalog.StockIn
		} else {
			stock = catalog.StockOut
		}
	}

	currency := strings.ToUpper(CleanText(quote.Currency))
	if currency == "" {
		currency = "PEN"
	}

	product = catalog.Product{
		Store:     store,
		SKU:       sku,
		Name:      name,
		Brand:     n.CanonicalBrand(raw.Brand),
		Category:  n.CanonicalCategory(raw.Category),
		Stock:     stock,
		URL:       strings.TrimSpace(raw.URL),
		FirstSeen: now,
	}
	obs = catalog.PriceObservation{
		ObservedAt: now,
		Listed:     listed,
		Effective:  effective,
		Label:      CleanText(quote.Label),
		Currency:   currency,
	}
	return product, obs, nil
}

// CanonicalBrand resolves a brand through the alias table.
func (n *Normalizer) CanonicalBrand(brand string) string {
	return canonical(n.brandAliases, brand)
}

// CanonicalCategory resolves a category through the alias table.
func (n *Normalizer) CanonicalCategory(category string) string {
	return canonical(n.categoryAliases, category)
}

func canonical(aliases map[string]string, s string) string {
	cleaned := CleanText(s)
	if c, ok := aliases[strings.ToLower(cleaned)]; ok {
		return c
	}
	return cleaned
}

// CleanText trims and collapses internal whitespace.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParsePrice converts storefront price text into minor units. It accepts
// currency prefixes ("S/ 1.299,90", "$1,299.90") and both separator
// conventions; when both separators appear the rightmost is decimal.
func ParsePrice(s string) (catalog.Money, error) {
	var digits []rune
	lastDot, lastComma := -1, -1
	dots, commas := 0, 0
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsDigit(r):
			digits = append(digits, r)
		case r == '.':
			lastDot = len(digits)
			dots++
		case r == ',':
			lastComma = len(digits)
			commas++
		}
	}
	if len(digits) == 0 {
		return 0, catalog.BadSchema("", "price: no digits in "+s)
	}

	// Position of the decimal separator within the digit string, or -1.
	decimalAt := -1
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			decimalAt = lastDot
		} else {
			decimalAt = lastComma
		}
	case lastDot >= 0:
		if dots == 1 && len(digits)-lastDot <= 2 {
			decimalAt = lastDot
		}
	case lastComma >= 0:
		if commas == 1 && len(digits)-lastComma <= 2 {
			decimalAt = lastComma
		}
	}

	whole := string(digits)
	frac := ""
	if decimalAt >= 0 {
		whole, frac = string(digits[:decimalAt]), string(digits[decimalAt:])
	}
	for len(frac) < 2 {
		frac += "0"
	}

	var cents int64
	for _, r := range whole + frac {
		cents = cents*10 + int64(r-'0')
	}
	if cents <= 0 {
		return 0, catalog.BadSchema("", "price: not positive in "+s)
	}
	return catalog.Money(cents), nil
}
