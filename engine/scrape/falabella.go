package scrape

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/dealradar/dealradar/engine/catalog"
)

const falabellaStore = "falabella"

var productIDRe = regexp.MustCompile(`/product/(\d+)`)

// Falabella scrapes falabella.com.pe search result pages. Prices are
// read straight from the result pods, no per-product requests.
type Falabella struct {
	// BaseURL is overridable for tests against a local server.
	BaseURL string

	rotator *HeaderRotator
}

// NewFalabella creates the production adapter.
func NewFalabella() *Falabella {
	return &Falabella{
		BaseURL: "https://www.falabella.com.pe",
		rotator: NewHeaderRotator(),
	}
}

func (f *Falabella) Name() string { return falabellaStore }

// Search pages through /falabella-pe/search?Ntt=query. Pagination stops
// at maxPages or at the first page without products. Products already
// seen on earlier pages are dropped; search pages repeat entries.
func (f *Falabella) Search(_ context.Context, query string, maxPages int) Pager {
	page := 0
	seen := make(map[string]bool)
	return PagerFunc(func(ctx context.Context) ([]RawRecord, bool, error) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if page >= maxPages {
			return nil, true, nil
		}
		page++

		records, err := f.fetchPage(query, page)
		if err != nil {
			return nil, false, err
		}

		fresh := records[:0]
		for _, r := range records {
			if !seen[r.SKU] {
				seen[r.SKU] = true
				fresh = append(fresh, r)
			}
		}
		if len(fresh) == 0 {
			return nil, true, nil
		}
		return fresh, page >= maxPages, nil
	})
}

// ExtractPrice reads the price fragments the pod parser stashed away.
func (f *Falabella) ExtractPrice(rec RawRecord) (PriceQuote, error) {
	effective := rec.Extra["price"]
	if strings.TrimSpace(effective) == "" {
		return PriceQuote{}, catalog.BadSchema(falabellaStore, "price")
	}
	return PriceQuote{
		Listed:    rec.Extra["listed"],
		Effective: effective,
		Label:     rec.Extra["label"],
		Currency:  "PEN",
	}, nil
}

func (f *Falabella) searchURL(query string, page int) string {
	u := fmt.Sprintf("%s/falabella-pe/search?Ntt=%s", f.BaseURL, url.QueryEscape(query))
	if page > 1 {
		u += fmt.Sprintf("&page=%d", page)
	}
	return u
}

func (f *Falabella) fetchPage(query string, page int) ([]RawRecord, error) {
	host := "www.falabella.com.pe"
	if u, err := url.Parse(f.BaseURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	c := colly.NewCollector(
		colly.AllowedDomains(host, "127.0.0.1"), // localhost for tests
		colly.UserAgent(f.rotator.UserAgent()),
	)
	// Rotated browser headers plus OTel tracing on every page request.
	c.WithTransport(NewHTTPClient(f.rotator, 30*time.Second).Transport)

	var records []RawRecord
	var fetchErr error

	c.OnHTML(`div[class*="pod"], article[data-test-id*="pod"]`, func(e *colly.HTMLElement) {
		if rec, ok := f.parsePod(e); ok {
			records = append(records, rec)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		pageURL := f.searchURL(query, page)
		if r != nil && r.StatusCode > 0 {
			fetchErr = catalog.ClassifyStatus(falabellaStore, pageURL, r.StatusCode)
			return
		}
		fetchErr = catalog.Transient(falabellaStore, pageURL, 0, err)
	})

	if err := c.Visit(f.searchURL(query, page)); err != nil && fetchErr == nil {
		fetchErr = catalog.Transient(falabellaStore, f.searchURL(query, page), 0, err)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return records, nil
}

// parsePod extracts one search result pod. Sponsored entries and pods
// without a product link or price are dropped.
func (f *Falabella) parsePod(e *colly.HTMLElement) (RawRecord, bool) {
	if strings.Contains(strings.ToLower(e.Text), "patrocinado") {
		return RawRecord{}, false
	}

	href := e.ChildAttr(`a[href*="/product/"]`, "href")
	m := productIDRe.FindStringSubmatch(href)
	if m == nil {
		return RawRecord{}, false
	}
	productURL := href
	if strings.HasPrefix(productURL, "/") {
		productURL = f.BaseURL + productURL
	}
	if i := strings.IndexByte(productURL, '?'); i != -1 {
		productURL = productURL[:i]
	}

	name := e.ChildAttr("img[alt]", "alt")
	if len(strings.TrimSpace(name)) < 5 {
		name = e.ChildText(`b[class*="pod-title"], h2, h3`)
	}
	if len(strings.TrimSpace(name)) < 5 {
		return RawRecord{}, false
	}

	extra := map[string]string{}
	e.ForEach("span", func(_ int, s *colly.HTMLElement) {
		text := strings.TrimSpace(s.Text)
		if !strings.Contains(text, "S/") {
			return
		}
		class := s.Attr("class")
		switch {
		case strings.Contains(class, "crossed"):
			if extra["listed"] == "" {
				extra["listed"] = text
			}
		default:
			if extra["price"] == "" {
				extra["price"] = text
			}
		}
	})
	if extra["price"] == "" {
		return RawRecord{}, false
	}
	if label := e.ChildText(`[class*="event"], [class*="badge"]`); label != "" {
		extra["label"] = strings.TrimSpace(label)
	}

	return RawRecord{
		SKU:   m[1],
		Name:  strings.TrimSpace(name),
		Brand: e.ChildText(`b[class*="subTitle"], [class*="brand"]`),
		URL:   productURL,
		Extra: extra,
	}, true
}
