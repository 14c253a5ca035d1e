package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildprice/priceworker/helpers"
	perrors "buildprice/priceworker/pkg/errors"
)

func TestSourceCrawlerFetchListings(t *testing.T) {
	fetcher := &mockFetcher{body: cardHTML, finalURL: "https://shop.example.co.zw/building/"}
	c, err := NewSourceCrawler(cardSource(), fetcher, NewMockCacheService(), time.Minute)
	require.NoError(t, err)

	listings, err := c.FetchListings(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "https://shop.example.co.zw/p/surecem", listings[0].URL)
	assert.Equal(t, "Test Cards", c.GetName())
	assert.Equal(t, "test-cards", c.Source().ID)
}

func TestSourceCrawlerBlocksAfterRateLimit(t *testing.T) {
	cacheSvc := NewMockCacheService()
	fetcher := &mockFetcher{err: perrors.NewRateLimit("shop.example.co.zw", http.StatusTooManyRequests, "")}
	c, err := NewSourceCrawler(cardSource(), fetcher, cacheSvc, 5*time.Minute)
	require.NoError(t, err)

	_, err = c.FetchListings(context.Background())
	require.Error(t, err)
	assert.True(t, perrors.IsType(err, perrors.ErrorTypeRateLimit))

	val, err := cacheSvc.Get(BlockKey("test-cards"))
	require.NoError(t, err)
	assert.Equal(t, "300", string(val))
	assert.Equal(t, 5*time.Minute, cacheSvc.ttl[BlockKey("test-cards")])

	// Blocked sources are not fetched again
	_, err = c.FetchListings(context.Background())
	require.Error(t, err)
	assert.True(t, perrors.IsType(err, perrors.ErrorTypeRateLimit))
	assert.Equal(t, 1, fetcher.calls)
}

func TestSourceCrawlerNetworkErrorDoesNotBlock(t *testing.T) {
	cacheSvc := NewMockCacheService()
	fetcher := &mockFetcher{err: perrors.NewNetwork("shop.example.co.zw", "request failed", nil)}
	c, err := NewSourceCrawler(cardSource(), fetcher, cacheSvc, time.Minute)
	require.NoError(t, err)

	_, err = c.FetchListings(context.Background())
	require.Error(t, err)
	assert.True(t, perrors.IsType(err, perrors.ErrorTypeNetwork))

	_, err = cacheSvc.Get(BlockKey("test-cards"))
	assert.Error(t, err)
}

func TestSourceCrawlerWithoutCache(t *testing.T) {
	c, err := NewSourceCrawler(cardSource(), &mockFetcher{body: "<html></html>"}, nil, time.Minute)
	require.NoError(t, err)

	listings, err := c.FetchListings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestForbiddenRetryYieldsSameListings(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(cardHTML))
	}))
	defer direct.Close()

	var calls int32
	guarded := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 || r.Header.Get("Referer") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(cardHTML))
	}))
	defer guarded.Close()

	fetcher := helpers.NewFetcher(5 * time.Second)

	fetch := func(url string) []RawListing {
		src := cardSource()
		src.URL = url
		src.Selectors["url"] = ""
		c, err := NewSourceCrawler(src, fetcher, nil, time.Minute)
		require.NoError(t, err)
		listings, err := c.FetchListings(context.Background())
		require.NoError(t, err)
		return listings
	}

	want := fetch(direct.URL)
	got := fetch(guarded.URL)
	require.Len(t, want, 2)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCreateCrawlersSkipsInactiveAndInvalid(t *testing.T) {
	active := cardSource()
	inactive := cardSource()
	inactive.ID = "off"
	inactive.Active = false
	invalid := SourceConfig{ID: "broken", URL: "https://x", Parser: ParserCard, Active: true}
	table := SourceConfig{ID: "tbl", URL: "https://x", Parser: ParserTable, Active: true}

	crawlers := CreateCrawlers([]SourceConfig{active, inactive, invalid, table}, &mockFetcher{}, nil, time.Minute)
	require.Len(t, crawlers, 2)
	assert.Equal(t, "test-cards", crawlers[0].Source().ID)
	assert.Equal(t, "tbl", crawlers[1].GetName())
}
