package store

import (
	"context"
	"fmt"
	"time"

	"buildprice/priceworker/internal/aggregate"
	"buildprice/priceworker/internal/observation"
	"buildprice/priceworker/logger"
	perrors "buildprice/priceworker/pkg/errors"
)

// RetryConfig holds the parameters for the retry strategy
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Do executes fn with exponential back-off. The last error is returned as a
// persistence error tagged with the batch name.
func (r RetryConfig) Do(ctx context.Context, batch string, size int, fn func(context.Context) error) error {
	attempts := max(r.MaxAttempts, 1)
	delay := r.BaseDelay
	log := logger.ForStore()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		log.Warn().
			Err(lastErr).
			Str("batch", batch).
			Int("rows", size).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("retry_in", delay).
			Msg("Persist failed, retrying")

		select {
		case <-ctx.Done():
			return perrors.NewPersistence(batch, fmt.Sprintf("%d rows not stored", size), ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return perrors.NewPersistence(batch,
		fmt.Sprintf("%d rows not stored after %d attempts", size, attempts), lastErr)
}

// RetryingStore retries every write of the wrapped store. Writes are
// idempotent, so a batch that partly landed before a failure is safe to resend.
type RetryingStore struct {
	next  Store
	retry RetryConfig
}

// NewRetryingStore wraps next with the given retry policy
func NewRetryingStore(next Store, retry RetryConfig) *RetryingStore {
	return &RetryingStore{next: next, retry: retry}
}

func (s *RetryingStore) InsertObservations(ctx context.Context, obs []observation.Observation) error {
	return s.retry.Do(ctx, "observations", len(obs), func(ctx context.Context) error {
		return s.next.InsertObservations(ctx, obs)
	})
}

func (s *RetryingStore) InsertUnmatched(ctx context.Context, items []observation.Unmatched) error {
	return s.retry.Do(ctx, "unmatched", len(items), func(ctx context.Context) error {
		return s.next.InsertUnmatched(ctx, items)
	})
}

func (s *RetryingStore) UpsertWeeklyAggregates(ctx context.Context, aggs []aggregate.WeeklyAggregate) error {
	return s.retry.Do(ctx, "weekly_aggregates", len(aggs), func(ctx context.Context) error {
		return s.next.UpsertWeeklyAggregates(ctx, aggs)
	})
}

func (s *RetryingStore) Close() error {
	return s.next.Close()
}
