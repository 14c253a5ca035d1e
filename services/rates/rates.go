// Package rates supplies the USD->ZWG exchange rate for a run.
package rates

import (
	"context"
	"strconv"
	"time"

	"buildprice/priceworker/logger"
	"buildprice/priceworker/services/cache"
)

// LastKnownKey is the cache key holding the most recent good rate
const LastKnownKey = "rates:usd_zwg:last"

// lastKnownTTL keeps a remembered rate for a week
const lastKnownTTL = 7 * 24 * time.Hour

// Provider resolves the exchange rate once per run. A nil rate means none is
// available, which is not an error.
type Provider interface {
	Rate(ctx context.Context) (*float64, error)
}

// StaticProvider returns a fixed rate. Zero or negative means no rate.
type StaticProvider struct {
	value float64
}

// NewStaticProvider creates a provider for a configured rate
func NewStaticProvider(value float64) *StaticProvider {
	return &StaticProvider{value: value}
}

// Rate returns the configured rate, or nil when it is not positive
func (p *StaticProvider) Rate(_ context.Context) (*float64, error) {
	if p.value <= 0 {
		return nil, nil
	}
	v := p.value
	return &v, nil
}

// CachedProvider remembers every good rate from next in the cache and falls
// back to the remembered one when next has none or fails.
type CachedProvider struct {
	next     Provider
	cacheSvc cache.CacheService
}

// NewCachedProvider wraps next with a last-known-rate fallback
func NewCachedProvider(next Provider, cacheSvc cache.CacheService) *CachedProvider {
	return &CachedProvider{next: next, cacheSvc: cacheSvc}
}

// Rate returns the fresh rate when there is one, otherwise the cached one
func (p *CachedProvider) Rate(ctx context.Context) (*float64, error) {
	log := logger.ForCache()

	rate, err := p.next.Rate(ctx)
	if err == nil && rate != nil && *rate > 0 {
		value := []byte(strconv.FormatFloat(*rate, 'f', -1, 64))
		if setErr := p.cacheSvc.Set(LastKnownKey, value, lastKnownTTL); setErr != nil {
			log.Debug().Err(setErr).Msg("Failed to remember exchange rate")
		}
		return rate, nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("Exchange rate lookup failed, trying last known rate")
	}

	raw, cacheErr := p.cacheSvc.Get(LastKnownKey)
	if cacheErr != nil {
		return nil, err
	}
	cached, parseErr := strconv.ParseFloat(string(raw), 64)
	if parseErr != nil || cached <= 0 {
		log.Warn().Str("value", string(raw)).Msg("Ignoring invalid cached exchange rate")
		return nil, err
	}

	log.Info().Float64("rate", cached).Msg("Using last known exchange rate")
	return &cached, nil
}
