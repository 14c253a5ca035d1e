package crawler

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"buildprice/priceworker/helpers"
	"buildprice/priceworker/logger"
	perrors "buildprice/priceworker/pkg/errors"
	"buildprice/priceworker/services/cache"
)

// PageFetcher retrieves a page for a URL with per-source headers
type PageFetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*helpers.Page, error)
}

// SourceCrawler fetches one source and runs its extractor over the page
type SourceCrawler struct {
	source    SourceConfig
	fetcher   PageFetcher
	extractor Extractor
	cacheSvc  cache.CacheService
	blockTime time.Duration
}

// NewSourceCrawler validates source and wires it to its extraction strategy
func NewSourceCrawler(source SourceConfig, fetcher PageFetcher, cacheSvc cache.CacheService, blockTime time.Duration) (*SourceCrawler, error) {
	extractor, err := NewExtractor(source)
	if err != nil {
		return nil, err
	}
	return &SourceCrawler{
		source:    source,
		fetcher:   fetcher,
		extractor: extractor,
		cacheSvc:  cacheSvc,
		blockTime: blockTime,
	}, nil
}

// BlockKey is the cache key that pauses a rate-limited source
func BlockKey(sourceID string) string {
	return "blocked:" + sourceID
}

// FetchListings fetches the source page and extracts raw listings
func (c *SourceCrawler) FetchListings(ctx context.Context) ([]RawListing, error) {
	// Check if the source is rate limited
	if c.cacheSvc != nil {
		if _, err := c.cacheSvc.Get(BlockKey(c.source.ID)); err == nil {
			return nil, perrors.New(perrors.ErrorTypeRateLimit, c.source.ID,
				fmt.Sprintf("paused for %s after rate limiting", c.blockTime), nil)
		}
	}

	page, err := c.fetcher.Fetch(ctx, c.source.URL, c.source.Headers)
	if err != nil {
		if perrors.IsType(err, perrors.ErrorTypeRateLimit) {
			c.block()
		}
		return nil, fmt.Errorf("fetch %s: %w", c.source.ID, err)
	}

	doc, err := NewDocument(bytes.NewReader(page.Body))
	if err != nil {
		return nil, perrors.NewParsing(c.source.ID, "HTML parse error", err)
	}

	listings, err := c.extractor.Extract(doc, page.FinalURL)
	if err != nil {
		return nil, perrors.NewParsing(c.source.ID, "extraction failed", err)
	}
	return listings, nil
}

func (c *SourceCrawler) block() {
	if c.cacheSvc == nil || c.blockTime <= 0 {
		return
	}
	seconds := strconv.Itoa(int(c.blockTime / time.Second))
	if err := c.cacheSvc.Set(BlockKey(c.source.ID), []byte(seconds), c.blockTime); err != nil {
		logger.ForSource(c.source.ID).Debug().Err(err).Msg("Failed to set rate limit block")
	}
}

// GetName returns the source display name, falling back to its id
func (c *SourceCrawler) GetName() string {
	if c.source.Name != "" {
		return c.source.Name
	}
	return c.source.ID
}

// Source returns the crawler's source configuration
func (c *SourceCrawler) Source() SourceConfig {
	return c.source
}
