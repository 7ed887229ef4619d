package metrics

// Scrape bundles the metrics the orchestrator reports per run. Per-store
// variants are created lazily through the registry with label names.
type Scrape struct {
	reg *Registry

	RunsStarted   *Counter
	RunsCompleted *Counter
	RunsPartial   *Counter
	RunsFailed    *Counter
	ActivePairs   *Gauge
	PairDuration  *Histogram
}

// NewScrape registers the orchestrator metric set on reg.
func NewScrape(reg *Registry) *Scrape {
	return &Scrape{
		reg:           reg,
		RunsStarted:   reg.Counter("dealradar_runs_started_total", "Scraping runs started"),
		RunsCompleted: reg.Counter(WithLabels("dealradar_runs_finished_total", "status", "completed"), "Scraping runs finished by status"),
		RunsPartial:   reg.Counter(WithLabels("dealradar_runs_finished_total", "status", "partial"), ""),
		RunsFailed:    reg.Counter(WithLabels("dealradar_runs_finished_total", "status", "failed"), ""),
		ActivePairs:   reg.Gauge("dealradar_active_pairs", "Store/query pairs currently being scraped"),
		PairDuration:  reg.Histogram("dealradar_pair_duration_seconds", "Wall time per store/query pair", nil),
	}
}

// ItemsSaved counts persisted observations for a store.
func (s *Scrape) ItemsSaved(store string) *Counter {
	return s.reg.Counter(WithLabels("dealradar_items_saved_total", "store", store), "Observations persisted")
}

// ItemsSkipped counts deduplicated or invalid items for a store.
func (s *Scrape) ItemsSkipped(store string) *Counter {
	return s.reg.Counter(WithLabels("dealradar_items_skipped_total", "store", store), "Items skipped before persisting")
}

// PairErrors counts failed pairs for a store.
func (s *Scrape) PairErrors(store string) *Counter {
	return s.reg.Counter(WithLabels("dealradar_pair_errors_total", "store", store), "Store/query pairs that failed")
}
