package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"buildprice/priceworker/internal/aggregate"
	"buildprice/priceworker/internal/observation"
)

// rowKey identifies a listing from one scrape of one source
type rowKey struct {
	source    string
	scrapedAt int64
	index     int
}

type weekKey struct {
	material string
	week     time.Time
}

// MemoryStore keeps everything in process memory. It applies the same
// idempotency rules as PostgresStore and is used for dry runs and tests.
type MemoryStore struct {
	mu           sync.Mutex
	observations []observation.Observation
	obsSeen      map[rowKey]struct{}
	unmatched    []observation.Unmatched
	unmatchSeen  map[rowKey]struct{}
	aggregates   map[weekKey]aggregate.WeeklyAggregate
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		obsSeen:     make(map[rowKey]struct{}),
		unmatchSeen: make(map[rowKey]struct{}),
		aggregates:  make(map[weekKey]aggregate.WeeklyAggregate),
	}
}

// InsertObservations appends observations not already stored. Like the
// PostgreSQL key, only the same listing of the same scrape is a duplicate.
func (m *MemoryStore) InsertObservations(_ context.Context, obs []observation.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range obs {
		k := rowKey{source: o.SourceID, scrapedAt: o.ScrapedAt.UnixNano(), index: o.ListingIndex}
		if _, ok := m.obsSeen[k]; ok {
			continue
		}
		m.obsSeen[k] = struct{}{}
		m.observations = append(m.observations, o)
	}
	return nil
}

// InsertUnmatched appends diagnostic records not already stored
func (m *MemoryStore) InsertUnmatched(_ context.Context, items []observation.Unmatched) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range items {
		k := rowKey{source: u.SourceID, scrapedAt: u.ScrapedAt.UnixNano(), index: u.ListingIndex}
		if _, ok := m.unmatchSeen[k]; ok {
			continue
		}
		m.unmatchSeen[k] = struct{}{}
		m.unmatched = append(m.unmatched, u)
	}
	return nil
}

// UpsertWeeklyAggregates replaces the row for each (material, week)
func (m *MemoryStore) UpsertWeeklyAggregates(_ context.Context, aggs []aggregate.WeeklyAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range aggs {
		m.aggregates[weekKey{material: a.MaterialKey, week: a.WeekStart.UTC()}] = a
	}
	return nil
}

// Observations returns a copy of the stored observations
func (m *MemoryStore) Observations() []observation.Observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]observation.Observation(nil), m.observations...)
}

// Unmatched returns a copy of the stored diagnostic records
func (m *MemoryStore) Unmatched() []observation.Unmatched {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]observation.Unmatched(nil), m.unmatched...)
}

// WeeklyAggregates returns the stored aggregates sorted by week, then material
func (m *MemoryStore) WeeklyAggregates() []aggregate.WeeklyAggregate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]aggregate.WeeklyAggregate, 0, len(m.aggregates))
	for _, a := range m.aggregates {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStart.Equal(out[j].WeekStart) {
			return out[i].WeekStart.Before(out[j].WeekStart)
		}
		return out[i].MaterialKey < out[j].MaterialKey
	})
	return out
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
