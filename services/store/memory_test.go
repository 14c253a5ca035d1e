package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildprice/priceworker/internal/aggregate"
	"buildprice/priceworker/internal/observation"
)

func TestMemoryStoreInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	obs := sampleObservations(3)
	require.NoError(t, s.InsertObservations(ctx, obs))
	// Same rows with fresh pointers are still duplicates
	require.NoError(t, s.InsertObservations(ctx, sampleObservations(3)))
	assert.Len(t, s.Observations(), 3)

	u := observation.Unmatched{SourceID: "a", Name: "x", RawPrice: "?", Reason: observation.ReasonNoMaterial, ScrapedAt: testTime}
	require.NoError(t, s.InsertUnmatched(ctx, []observation.Unmatched{u, u}))
	assert.Len(t, s.Unmatched(), 1)
}

func TestMemoryStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	obs := sampleObservations(2)
	first := aggregate.Aggregate(obs)
	require.NoError(t, s.UpsertWeeklyAggregates(ctx, first))
	require.NoError(t, s.UpsertWeeklyAggregates(ctx, aggregate.Aggregate(obs)))
	assert.Equal(t, first, s.WeeklyAggregates())

	week := aggregate.WeekStart(testTime)
	require.NoError(t, s.UpsertWeeklyAggregates(ctx, []aggregate.WeeklyAggregate{
		{MaterialKey: "material-0", WeekStart: week, AvgUSD: f(99), SampleCount: 5, LastScrapedAt: testTime},
	}))
	stored := s.WeeklyAggregates()
	require.Len(t, stored, 2)
	assert.Equal(t, 99.0, *stored[0].AvgUSD)
	assert.Equal(t, 5, stored[0].SampleCount)
	assert.NoError(t, s.Close())
}

func TestMemoryStoreKeepsDistinctListings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	obs := sampleObservations(2)
	obs[1] = obs[0]
	obs[1].ListingIndex = 1
	require.NoError(t, s.InsertObservations(ctx, obs))
	assert.Len(t, s.Observations(), 2)

	// A later scrape of the same listing is a new observation
	later := obs[0]
	later.ScrapedAt = testTime.Add(time.Hour)
	require.NoError(t, s.InsertObservations(ctx, []observation.Observation{later}))
	assert.Len(t, s.Observations(), 3)
}
