package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dealradar/dealradar/engine/catalog"
)

type fakeAdapter struct{ name string }

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Search(ctx context.Context, query string, maxPages int) Pager {
	return PagerFunc(func(context.Context) ([]RawRecord, bool, error) {
		return nil, true, nil
	})
}

func (a *fakeAdapter) ExtractPrice(rec RawRecord) (PriceQuote, error) {
	return PriceQuote{}, nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register("Falabella", func() Adapter { return &fakeAdapter{name: "falabella"} })

	a, err := r.Resolve("falabella")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.Name() != "falabella" {
		t.Errorf("Name() = %q", a.Name())
	}

	// Case-insensitive lookup.
	if _, err := r.Resolve("FALABELLA"); err != nil {
		t.Errorf("uppercase resolve failed: %v", err)
	}
}

func TestRegistryUnknownStoreIsConfigError(t *testing.T) {
	r := NewRegistry()
	r.Register("falabella", func() Adapter { return &fakeAdapter{name: "falabella"} })

	_, err := r.Resolve("ripley")
	if err == nil {
		t.Fatal("expected error for unknown store")
	}
	if !errors.Is(err, catalog.ErrConfig) {
		t.Errorf("unknown store should be a config error, got %v", err)
	}
	var ce *catalog.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("expected *catalog.ConfigError, got %T", err)
	}
}

func TestRegistryStoresSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", func() Adapter { return &fakeAdapter{name: "zeta"} })
	r.Register("alpha", func() Adapter { return &fakeAdapter{name: "alpha"} })

	stores := r.Stores()
	if len(stores) != 2 || stores[0] != "alpha" || stores[1] != "zeta" {
		t.Errorf("Stores() = %v", stores)
	}
}

func TestHeaderRotatorNoImmediateRepeat(t *testing.T) {
	h := NewHeaderRotator()
	prev := ""
	for i := 0; i < 50; i++ {
		ua := h.UserAgent()
		if ua == "" {
			t.Fatal("empty User-Agent")
		}
		if ua == prev {
			t.Fatalf("immediate repeat of %q at iteration %d", ua, i)
		}
		prev = ua
	}
}

func TestHeaderRotatorAppliesBrowserHeaders(t *testing.T) {
	h := NewHeaderRotator()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	h.Apply(req)

	if req.Header.Get("User-Agent") == "" {
		t.Error("missing User-Agent")
	}
	if req.Header.Get("Accept-Language") == "" {
		t.Error("missing Accept-Language")
	}
	if req.Header.Get("Accept") == "" {
		t.Error("missing Accept")
	}
}

func TestHTTPClientRotatesPerRequest(t *testing.T) {
	seen := make(map[string]bool)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.Header.Get("User-Agent")] = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPClient(NewHeaderRotator(), 5*time.Second)
	for i := 0; i < 10; i++ {
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		resp.Body.Close()
	}

	if len(seen) < 2 {
		t.Errorf("expected rotated agents across requests, saw %d distinct", len(seen))
	}
	if seen[""] {
		t.Error("a request went out without a User-Agent")
	}
}
