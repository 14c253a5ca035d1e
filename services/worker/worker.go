package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"buildprice/priceworker/internal"
	"buildprice/priceworker/internal/aggregate"
	"buildprice/priceworker/internal/crawler"
	"buildprice/priceworker/internal/matcher"
	"buildprice/priceworker/internal/observation"
	"buildprice/priceworker/logger"
	perrors "buildprice/priceworker/pkg/errors"
	"buildprice/priceworker/services/publisher"
)

// Options tune how a run is scheduled
type Options struct {
	// CrawlInterval is the pause between runs in Start; 0 runs once
	CrawlInterval time.Duration

	// SourceDelay spaces out fetch starts; 0 disables it
	SourceDelay time.Duration

	// MaxConcurrency caps sources processed at once; below 1 means 1
	MaxConcurrency int

	// RunTimeout bounds a single run; 0 means no limit
	RunTimeout time.Duration
}

// SourceError records a source that failed and contributed nothing
type SourceError struct {
	SourceID   string
	SourceName string
	Err        error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.SourceID, e.Err)
}

// RunReport is everything one run produced
type RunReport struct {
	Observations   []observation.Observation
	Unmatched      []observation.Unmatched
	Aggregates     []aggregate.WeeklyAggregate
	SourceErrors   []SourceError
	SourcesSkipped []string
	ExchangeRate   *float64
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Worker drives sources through fetch, extraction, matching and
// observation building, then aggregates, persists and publishes.
type Worker struct {
	crawlers []crawler.Crawler
	dict     *matcher.Dictionary
	deps     internal.Dependencies
	opts     Options
	now      func() time.Time
}

// NewWorker creates a new worker. deps.Store and deps.Rates are required;
// a nil deps.Publisher disables publishing.
func NewWorker(crawlers []crawler.Crawler, dict *matcher.Dictionary, deps internal.Dependencies, opts Options) *Worker {
	return &Worker{
		crawlers: crawlers,
		dict:     dict,
		deps:     deps,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the pipeline every CrawlInterval until ctx is cancelled. With a
// zero interval it runs once and returns that run's error.
func (w *Worker) Start(ctx context.Context) error {
	log := logger.ForWorker()
	for {
		if ctx.Err() != nil {
			return nil
		}

		start := time.Now()
		_, err := w.RunOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Run finished with persistence errors")
		}
		log.Info().Dur("elapsed", time.Since(start)).Msg("Run completed")

		if w.opts.CrawlInterval <= 0 {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.opts.CrawlInterval):
		}
	}
}

// sourceResult is the private collector of one source
type sourceResult struct {
	observations []observation.Observation
	unmatched    []observation.Unmatched
	err          error
	skipped      bool
}

// RunOnce processes every source once. Source failures are reported in the
// RunReport; the returned error is only set when persistence fails.
func (w *Worker) RunOnce(ctx context.Context) (*RunReport, error) {
	log := logger.ForWorker()
	report := &RunReport{StartedAt: w.now()}

	exchangeRate, err := w.deps.Rates.Rate(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("No exchange rate available, observations keep their own currency only")
		exchangeRate = nil
	} else if exchangeRate != nil {
		logger.Debug("Using exchange rate %.4f ZWG per USD", *exchangeRate)
	}
	report.ExchangeRate = exchangeRate

	runCtx := ctx
	if w.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.opts.RunTimeout)
		defer cancel()
	}

	results := w.crawlAll(runCtx, exchangeRate)
	for i, res := range results {
		src := w.crawlers[i].Source()
		switch {
		case res.skipped:
			report.SourcesSkipped = append(report.SourcesSkipped, src.ID)
		case res.err != nil:
			report.SourceErrors = append(report.SourceErrors, SourceError{
				SourceID:   src.ID,
				SourceName: w.crawlers[i].GetName(),
				Err:        res.err,
			})
		default:
			report.Observations = append(report.Observations, res.observations...)
			report.Unmatched = append(report.Unmatched, res.unmatched...)
		}
	}

	report.Aggregates = aggregate.Aggregate(report.Observations)

	// Partial results are stored even when the run was cancelled
	persistCtx := context.WithoutCancel(ctx)
	persistErr := w.persist(persistCtx, report)
	w.publish(persistCtx, report)

	report.FinishedAt = w.now()
	log.Info().
		Int("sources", len(w.crawlers)).
		Int("failed", len(report.SourceErrors)).
		Int("skipped", len(report.SourcesSkipped)).
		Int("observations", len(report.Observations)).
		Int("unmatched", len(report.Unmatched)).
		Int("aggregates", len(report.Aggregates)).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Run summary")

	return report, persistErr
}

// crawlAll processes sources through a bounded pool. Each source writes only
// its own slot, so the merged order matches the source order.
func (w *Worker) crawlAll(ctx context.Context, exchangeRate *float64) []sourceResult {
	results := make([]sourceResult, len(w.crawlers))

	limit := rate.Inf
	if w.opts.SourceDelay > 0 {
		limit = rate.Every(w.opts.SourceDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	g := new(errgroup.Group)
	g.SetLimit(max(w.opts.MaxConcurrency, 1))

	for i, c := range w.crawlers {
		if ctx.Err() != nil {
			results[i].skipped = true
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i].skipped = true
				return nil
			}
			if err := limiter.Wait(ctx); err != nil {
				results[i].skipped = true
				return nil
			}
			results[i] = w.processSource(ctx, c, exchangeRate)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// processSource runs one source from fetch to observations
func (w *Worker) processSource(ctx context.Context, c crawler.Crawler, exchangeRate *float64) sourceResult {
	src := c.Source()
	log := logger.ForSource(src.ID).WithFields(logger.Fields{
		"parser": string(src.Parser),
		"url":    src.URL,
	})

	log.Debug().Msg("Fetching")
	listings, err := c.FetchListings(ctx)
	if err != nil {
		log.WithError(err).Warn().
			Bool("retryable", perrors.IsRetryable(err)).
			Msg("Source failed, skipping for this run")
		return sourceResult{err: err}
	}
	scrapedAt := w.now()

	var res sourceResult
	for i, listing := range listings {
		var material observation.Material
		if key := w.dict.Match(listing.Name); key != "" {
			material = observation.Material{Key: key, Name: w.dict.Name(key)}
		}

		obs, reason := observation.Build(src, listing, material, exchangeRate, scrapedAt)
		if obs != nil {
			obs.ListingIndex = i
			res.observations = append(res.observations, *obs)
			continue
		}

		var suggested string
		if reason == observation.ReasonNoMaterial {
			suggested, _ = w.dict.Suggest(listing.Name)
		}
		u := observation.NewUnmatched(src, listing, reason, suggested, scrapedAt)
		u.ListingIndex = i
		res.unmatched = append(res.unmatched, u)

		if logger.IsDebugEnabled() {
			log.Debug().
				Str("name", listing.Name).
				Str("price", listing.Price).
				Str("reason", string(reason)).
				Str("suggested", suggested).
				Msg("Listing not used")
		}
	}

	log.Debug().
		Int("listings", len(listings)).
		Int("observations", len(res.observations)).
		Int("unmatched", len(res.unmatched)).
		Msg("Source processed")
	return res
}

// persist stores observations, unmatched records and aggregates in that
// order. Every batch is attempted; failures are joined.
func (w *Worker) persist(ctx context.Context, report *RunReport) error {
	log := logger.ForStore()
	var errs []error

	if err := w.deps.Store.InsertObservations(ctx, report.Observations); err != nil {
		log.Error().Err(err).Int("rows", len(report.Observations)).Msg("Failed to persist observations")
		errs = append(errs, err)
	}
	if err := w.deps.Store.InsertUnmatched(ctx, report.Unmatched); err != nil {
		log.Error().Err(err).Int("rows", len(report.Unmatched)).Msg("Failed to persist unmatched listings")
		errs = append(errs, err)
	}
	if err := w.deps.Store.UpsertWeeklyAggregates(ctx, report.Aggregates); err != nil {
		log.Error().Err(err).Int("rows", len(report.Aggregates)).Msg("Failed to persist weekly aggregates")
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// publish sends diagnostics and aggregates to the stream. Failures are logged only.
func (w *Worker) publish(ctx context.Context, report *RunReport) {
	if w.deps.Publisher == nil {
		return
	}

	for _, u := range report.Unmatched {
		w.publishJSON(ctx, publisher.KindUnmatched, u)
	}
	for _, a := range report.Aggregates {
		w.publishJSON(ctx, publisher.KindWeekly, a)
	}

	// Trim all streams after publishing
	if err := w.deps.Publisher.TrimStreams(ctx); err != nil {
		logger.LogError("StreamTrimming", err, "Failed to trim streams")
	}
}

func (w *Worker) publishJSON(ctx context.Context, kind string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.LogError("Publisher", err, "Failed to encode %s message", kind)
		return
	}
	if err := w.deps.Publisher.Publish(ctx, kind, data); err != nil {
		logger.LogError("Publisher", err, "Failed to publish %s message", kind)
	}
}
