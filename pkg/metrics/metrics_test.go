package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterRender(t *testing.T) {
	reg := New()
	c := reg.Counter("scrapes_total", "Total scrapes")
	c.Inc()
	c.Add(4)

	out := reg.Render()
	if !strings.Contains(out, "# HELP scrapes_total Total scrapes") {
		t.Errorf("missing help line:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE scrapes_total counter") {
		t.Errorf("missing type line:\n%s", out)
	}
	if !strings.Contains(out, "scrapes_total 5") {
		t.Errorf("missing value line:\n%s", out)
	}
}

func TestGauge(t *testing.T) {
	reg := New()
	g := reg.Gauge("active_pairs", "")
	g.Set(3)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 2 {
		t.Errorf("gauge = %d, want 2", g.Value())
	}
}

func TestLabeledVariantsShareTypeHeader(t *testing.T) {
	reg := New()
	reg.Counter(WithLabels("items_total", "store", "falabella"), "Items").Add(7)
	reg.Counter(WithLabels("items_total", "store", "ripley"), "").Add(2)

	out := reg.Render()
	if strings.Count(out, "# TYPE items_total counter") != 1 {
		t.Errorf("expected a single TYPE header:\n%s", out)
	}
	if !strings.Contains(out, `items_total{store="falabella"} 7`) ||
		!strings.Contains(out, `items_total{store="ripley"} 2`) {
		t.Errorf("missing labeled lines:\n%s", out)
	}
}

func TestHistogramCumulativeBuckets(t *testing.T) {
	reg := New()
	h := reg.Histogram("latency_seconds", "", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(0.7)
	h.Observe(100)

	out := reg.Render()
	for _, want := range []string{
		`latency_seconds_bucket{le="0.1"} 1`,
		`latency_seconds_bucket{le="1"} 3`,
		`latency_seconds_bucket{le="10"} 3`,
		`latency_seconds_bucket{le="+Inf"} 4`,
		`latency_seconds_count 4`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWithLabels(t *testing.T) {
	if got := WithLabels("m", "a", "1", "b", "2"); got != `m{a="1",b="2"}` {
		t.Errorf("WithLabels = %q", got)
	}
	if got := WithLabels("m", "odd"); got != "m" {
		t.Errorf("odd pairs should return the bare name, got %q", got)
	}
}

func TestHandlerContentType(t *testing.T) {
	reg := New()
	reg.Counter("x_total", "").Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "x_total 1") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestScrapeBundle(t *testing.T) {
	reg := New()
	s := NewScrape(reg)
	s.RunsStarted.Inc()
	s.ItemsSaved("falabella").Add(12)
	s.ItemsSaved("falabella").Add(3)
	s.PairErrors("ripley").Inc()

	out := reg.Render()
	if !strings.Contains(out, `dealradar_items_saved_total{store="falabella"} 15`) {
		t.Errorf("saved counter wrong:\n%s", out)
	}
	if !strings.Contains(out, `dealradar_pair_errors_total{store="ripley"} 1`) {
		t.Errorf("error counter wrong:\n%s", out)
	}
}
