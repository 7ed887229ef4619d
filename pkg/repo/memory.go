package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dealradar/dealradar/engine/catalog"
)

// Memory is a fully functional in-memory Store used by tests and by the
// CLI's dry-run mode.
type Memory struct {
	mu           sync.RWMutex
	nextID       int64
	byKey        map[catalog.ProductKey]int64
	products     map[int64]catalog.Product
	observations map[int64][]catalog.PriceObservation
	runs         []catalog.ScrapingRun
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:       1,
		byKey:        make(map[catalog.ProductKey]int64),
		products:     make(map[int64]catalog.Product),
		observations: make(map[int64][]catalog.PriceObservation),
	}
}

func (m *Memory) UpsertProduct(_ context.Context, p catalog.Product) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byKey[p.Key()]; ok {
		existing := m.products[id]
		p.ID = id
		p.FirstSeen = existing.FirstSeen
		m.products[id] = p
		return id, nil
	}

	id := m.nextID
	m.nextID++
	p.ID = id
	m.byKey[p.Key()] = id
	m.products[id] = p
	return id, nil
}

func (m *Memory) AppendObservation(_ context.Context, o catalog.PriceObservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.nextID
	m.nextID++
	m.observations[o.ProductID] = append(m.observations[o.ProductID], o)
	return nil
}

func (m *Memory) LatestObservation(_ context.Context, productID int64) (catalog.PriceObservation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obs := m.observations[productID]
	if len(obs) == 0 {
		return catalog.PriceObservation{}, false, nil
	}
	latest := obs[0]
	for _, o := range obs[1:] {
		if o.ObservedAt.After(latest.ObservedAt) {
			latest = o
		}
	}
	return latest, true, nil
}

func (m *Memory) PriceHistory(_ context.Context, productID int64, since time.Time) ([]catalog.PriceObservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []catalog.PriceObservation
	for _, o := range m.observations[productID] {
		if !o.ObservedAt.Before(since) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}

func (m *Memory) Products(_ context.Context) ([]catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]catalog.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) RecordRun(_ context.Context, run catalog.ScrapingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// Runs returns recorded runs, newest last.
func (m *Memory) Runs() []catalog.ScrapingRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]catalog.ScrapingRun, len(m.runs))
	copy(out, m.runs)
	return out
}

func (m *Memory) PurgeObservationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, obs := range m.observations {
		kept := obs[:0]
		for _, o := range obs {
			if o.ObservedAt.Before(cutoff) {
				removed++
			} else {
				kept = append(kept, o)
			}
		}
		m.observations[id] = kept
	}
	return removed, nil
}

func (m *Memory) Close() error { return nil }
