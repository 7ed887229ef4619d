// Package metrics exposes scraper counters, gauges, and latency
// histograms in the Prometheus text exposition format without pulling in
// the client library.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets cover request latencies from milliseconds to a full
// minute (seconds).
var DefaultBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter is a monotonically increasing value.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Gauge is a value that can move in both directions.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// Histogram tracks a distribution over fixed buckets. Bucket counts are
// stored per bucket and accumulated only at render time.
type Histogram struct {
	mu      sync.Mutex
	bounds  []float64
	hits    []uint64
	sum     float64
	samples uint64
}

func newHistogram(bounds []float64) *Histogram {
	sorted := append([]float64(nil), bounds...)
	sort.Float64s(sorted)
	return &Histogram{bounds: sorted, hits: make([]uint64, len(sorted))}
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.samples++
	for i, bound := range h.bounds {
		if v <= bound {
			h.hits[i]++
			return
		}
	}
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) { h.Observe(time.Since(t).Seconds()) }

func (h *Histogram) snapshot() (bounds []float64, hits []uint64, sum float64, samples uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bounds, append([]uint64(nil), h.hits...), h.sum, h.samples
}

type kind uint8

const (
	kindCounter kind = iota
	kindGauge
	kindHistogram
)

func (k kind) String() string {
	switch k {
	case kindCounter:
		return "counter"
	case kindGauge:
		return "gauge"
	default:
		return "histogram"
	}
}

// family groups every labeled variant of one metric under its base name,
// so all variants render beneath a single TYPE header.
type family struct {
	kind   kind
	help   string
	series map[string]any
}

// Registry holds metric families and renders them on demand.
type Registry struct {
	mu       sync.RWMutex
	families map[string]*family
	order    []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{families: make(map[string]*family)}
}

// series returns the instrument for name, creating its family on first
// use. A name that collides with a different metric kind panics early
// rather than rendering garbage.
func (r *Registry) series(name, help string, k kind, create func() any) any {
	base := baseName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	fam, ok := r.families[base]
	if !ok {
		fam = &family{kind: k, help: help, series: make(map[string]any)}
		r.families[base] = fam
		r.order = append(r.order, base)
	}
	if fam.kind != k {
		panic(fmt.Sprintf("metric %s registered as %s and %s", base, fam.kind, k))
	}

	s, ok := fam.series[name]
	if !ok {
		s = create()
		fam.series[name] = s
	}
	return s
}

// Counter returns or creates the named counter. Label pairs are baked
// into the name as name{k="v"} so each combination renders its own line.
func (r *Registry) Counter(name, help string) *Counter {
	return r.series(name, help, kindCounter, func() any { return &Counter{} }).(*Counter)
}

// Gauge returns or creates the named gauge.
func (r *Registry) Gauge(name, help string) *Gauge {
	return r.series(name, help, kindGauge, func() any { return &Gauge{} }).(*Gauge)
}

// Histogram returns or creates the named histogram. Nil buckets use
// DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	return r.series(name, help, kindHistogram, func() any { return newHistogram(buckets) }).(*Histogram)
}

// WithLabels appends label pairs to a metric name:
// WithLabels("foo", "store", "falabella") => foo{store="falabella"}.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	pairs := make([]string, 0, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		pairs = append(pairs, fmt.Sprintf("%s=%q", kvs[i], kvs[i+1]))
	}
	return name + "{" + strings.Join(pairs, ",") + "}"
}

func baseName(name string) string {
	if idx := strings.IndexByte(name, '{'); idx != -1 {
		return name[:idx]
	}
	return name
}

// labelBody returns the label portion of name{k="v"} without braces.
func labelBody(name string) string {
	idx := strings.IndexByte(name, '{')
	if idx == -1 {
		return ""
	}
	return name[idx+1 : len(name)-1]
}

// Render produces the Prometheus text exposition output. Families render
// in registration order, labeled variants alphabetically within each.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, base := range r.order {
		fam := r.families[base]
		if fam.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", base, fam.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", base, fam.kind)

		names := make([]string, 0, len(fam.series))
		for n := range fam.series {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, n := range names {
			switch s := fam.series[n].(type) {
			case *Counter:
				fmt.Fprintf(&b, "%s %d\n", n, s.Value())
			case *Gauge:
				fmt.Fprintf(&b, "%s %d\n", n, s.Value())
			case *Histogram:
				renderHistogram(&b, base, labelBody(n), s)
			}
		}
	}
	return b.String()
}

func renderHistogram(b *strings.Builder, base, labels string, h *Histogram) {
	bounds, hits, sum, samples := h.snapshot()

	extra := ""
	wrapped := ""
	if labels != "" {
		extra = "," + labels
		wrapped = "{" + labels + "}"
	}

	var cumulative uint64
	for i, bound := range bounds {
		cumulative += hits[i]
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"%s} %d\n", base, bound, extra, cumulative)
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"%s} %d\n", base, extra, samples)
	fmt.Fprintf(b, "%s_sum%s %g\n", base, wrapped, sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, wrapped, samples)
}

// Handler serves the rendered registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}

// Serve blocks serving /metrics and a trivial health root on the port.
func (r *Registry) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

// ServeAsync runs Serve in a goroutine.
func (r *Registry) ServeAsync(port int) {
	go func() {
		if err := r.Serve(port); err != nil {
			slog.Error("metrics server stopped", "port", port, "error", err)
		}
	}()
}
