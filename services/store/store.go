package store

import (
	"context"

	"buildprice/priceworker/internal/aggregate"
	"buildprice/priceworker/internal/observation"
)

// Store persists the three batches a run produces. Implementations must make
// InsertObservations and InsertUnmatched safe to repeat with the same batch
// and UpsertWeeklyAggregates overwrite rows with the same material and week.
type Store interface {
	// InsertObservations appends observations
	InsertObservations(ctx context.Context, obs []observation.Observation) error

	// InsertUnmatched appends diagnostic records
	InsertUnmatched(ctx context.Context, items []observation.Unmatched) error

	// UpsertWeeklyAggregates inserts or replaces aggregates keyed by (material, week)
	UpsertWeeklyAggregates(ctx context.Context, aggs []aggregate.WeeklyAggregate) error

	// Close releases the underlying connection
	Close() error
}
