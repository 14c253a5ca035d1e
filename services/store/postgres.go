package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"buildprice/priceworker/internal/aggregate"
	"buildprice/priceworker/internal/observation"
	"buildprice/priceworker/logger"
)

// batchSize caps the rows in one multi-row INSERT
const batchSize = 50

// Pool is the subset of pgxpool.Pool the store uses
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to dsn, waits for the server and applies the schema
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		logger.ForStore().Debug().Err(err).Int("attempt", i+1).Msg("Waiting for PostgreSQL")
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := NewPostgresWithPool(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

// NewPostgresWithPool wraps an existing pool
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS price_observations (
	id             BIGSERIAL PRIMARY KEY,
	source_id      TEXT          NOT NULL,
	source_name    TEXT          NOT NULL,
	material_key   TEXT          NOT NULL,
	material_name  TEXT          NOT NULL,
	unit           TEXT          NOT NULL DEFAULT '',
	price_original NUMERIC       NOT NULL,
	currency       VARCHAR(3)    NOT NULL,
	price_usd      NUMERIC,
	price_zwg      NUMERIC,
	location       TEXT          NOT NULL DEFAULT '',
	supplier_name  TEXT          NOT NULL DEFAULT '',
	url            TEXT          NOT NULL DEFAULT '',
	confidence     SMALLINT      NOT NULL,
	scraped_at     TIMESTAMPTZ   NOT NULL,
	listing_name   TEXT          NOT NULL DEFAULT '',
	listing_index  INTEGER       NOT NULL DEFAULT 0,
	UNIQUE (source_id, scraped_at, listing_index)
);

CREATE INDEX IF NOT EXISTS idx_price_observations_material ON price_observations(material_key, scraped_at);

CREATE TABLE IF NOT EXISTS unmatched_listings (
	id            BIGSERIAL PRIMARY KEY,
	source_id     TEXT        NOT NULL,
	source_name   TEXT        NOT NULL,
	name          TEXT        NOT NULL,
	raw_price     TEXT        NOT NULL,
	reason        TEXT        NOT NULL,
	suggested_key TEXT        NOT NULL DEFAULT '',
	url           TEXT        NOT NULL DEFAULT '',
	scraped_at    TIMESTAMPTZ NOT NULL,
	listing_index INTEGER     NOT NULL DEFAULT 0,
	UNIQUE (source_id, scraped_at, listing_index)
);

CREATE TABLE IF NOT EXISTS weekly_price_aggregates (
	material_key    TEXT        NOT NULL,
	week_start      DATE        NOT NULL,
	avg_usd         NUMERIC(14,2),
	median_usd      NUMERIC(14,2),
	min_usd         NUMERIC,
	max_usd         NUMERIC,
	avg_zwg         NUMERIC(14,2),
	median_zwg      NUMERIC(14,2),
	min_zwg         NUMERIC,
	max_zwg         NUMERIC,
	sample_count    INTEGER     NOT NULL,
	last_scraped_at TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (material_key, week_start)
);
`

// Migrate creates the tables when they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

var observationColumns = []string{
	"source_id", "source_name", "material_key", "material_name", "unit",
	"price_original", "currency", "price_usd", "price_zwg", "location",
	"supplier_name", "url", "confidence", "scraped_at",
	"listing_name", "listing_index",
}

// InsertObservations appends observations. A row is a resend when its source,
// scrape time and listing position are already stored; those are skipped.
func (s *PostgresStore) InsertObservations(ctx context.Context, obs []observation.Observation) error {
	rows := make([][]any, 0, len(obs))
	for _, o := range obs {
		rows = append(rows, []any{
			o.SourceID, o.SourceName, o.MaterialKey, o.MaterialName, o.Unit,
			o.PriceOriginal, o.Currency, o.PriceUSD, o.PriceZWG, o.Location,
			o.SupplierName, o.URL, o.Confidence, o.ScrapedAt,
			o.ListingName, o.ListingIndex,
		})
	}
	return s.insert(ctx, "price_observations", observationColumns, "ON CONFLICT DO NOTHING", rows)
}

var unmatchedColumns = []string{
	"source_id", "source_name", "name", "raw_price", "reason",
	"suggested_key", "url", "scraped_at", "listing_index",
}

// InsertUnmatched appends diagnostic records. Rows already stored are skipped.
func (s *PostgresStore) InsertUnmatched(ctx context.Context, items []observation.Unmatched) error {
	rows := make([][]any, 0, len(items))
	for _, u := range items {
		rows = append(rows, []any{
			u.SourceID, u.SourceName, u.Name, u.RawPrice, string(u.Reason),
			u.SuggestedKey, u.URL, u.ScrapedAt, u.ListingIndex,
		})
	}
	return s.insert(ctx, "unmatched_listings", unmatchedColumns, "ON CONFLICT DO NOTHING", rows)
}

var aggregateColumns = []string{
	"material_key", "week_start",
	"avg_usd", "median_usd", "min_usd", "max_usd",
	"avg_zwg", "median_zwg", "min_zwg", "max_zwg",
	"sample_count", "last_scraped_at",
}

const aggregateConflict = `ON CONFLICT (material_key, week_start) DO UPDATE SET
	avg_usd = EXCLUDED.avg_usd,
	median_usd = EXCLUDED.median_usd,
	min_usd = EXCLUDED.min_usd,
	max_usd = EXCLUDED.max_usd,
	avg_zwg = EXCLUDED.avg_zwg,
	median_zwg = EXCLUDED.median_zwg,
	min_zwg = EXCLUDED.min_zwg,
	max_zwg = EXCLUDED.max_zwg,
	sample_count = EXCLUDED.sample_count,
	last_scraped_at = EXCLUDED.last_scraped_at,
	updated_at = NOW()`

// UpsertWeeklyAggregates replaces the stored row for each (material, week)
func (s *PostgresStore) UpsertWeeklyAggregates(ctx context.Context, aggs []aggregate.WeeklyAggregate) error {
	rows := make([][]any, 0, len(aggs))
	for _, a := range aggs {
		rows = append(rows, []any{
			a.MaterialKey, a.WeekStart,
			a.AvgUSD, a.MedianUSD, a.MinUSD, a.MaxUSD,
			a.AvgZWG, a.MedianZWG, a.MinZWG, a.MaxZWG,
			a.SampleCount, a.LastScrapedAt,
		})
	}
	return s.insert(ctx, "weekly_price_aggregates", aggregateColumns, aggregateConflict, rows)
}

// insert writes rows in batches inside one transaction
func (s *PostgresStore) insert(ctx context.Context, table string, columns []string, conflict string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: %s: begin tx: %w", table, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		query, args := buildInsert(table, columns, conflict, rows[i:end])
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: %s: insert rows %d-%d: %w", table, i, end-1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: %s: commit: %w", table, err)
	}
	return nil
}

func buildInsert(table string, columns []string, conflict string, rows [][]any) (string, []any) {
	valueStrings := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*len(columns))

	for idx, row := range rows {
		base := idx * len(columns)
		placeholders := make([]string, len(columns))
		for c := range columns {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		args = append(args, row...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s %s",
		table, strings.Join(columns, ", "), strings.Join(valueStrings, ","), conflict)
	return query, args
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
