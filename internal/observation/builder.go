// Package observation turns raw listings into price observations and
// diagnostic records for the ones that cannot be used.
package observation

import (
	"math"
	"strings"
	"time"

	"buildprice/priceworker/helpers"
	"buildprice/priceworker/internal/crawler"
	"buildprice/priceworker/internal/price"
)

// Reason explains why a listing did not become an observation
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonNoMaterial Reason = "no_material"
	ReasonNoPrice    Reason = "no_price"
	ReasonNoCurrency Reason = "no_currency"
)

// Material is a resolved material identity
type Material struct {
	Key  string
	Name string
}

// Observation is a single price data point from one source at one time
type Observation struct {
	SourceID      string    `json:"source_id"`
	SourceName    string    `json:"source_name"`
	MaterialKey   string    `json:"material_key"`
	MaterialName  string    `json:"material_name"`
	Unit          string    `json:"unit,omitempty"`
	PriceOriginal float64   `json:"price_original"`
	Currency      string    `json:"currency"`
	PriceUSD      *float64  `json:"price_usd"`
	PriceZWG      *float64  `json:"price_zwg"`
	Location      string    `json:"location,omitempty"`
	SupplierName  string    `json:"supplier_name,omitempty"`
	URL           string    `json:"url,omitempty"`
	Confidence    int       `json:"confidence"`
	ScrapedAt     time.Time `json:"scraped_at"`

	// ListingName and ListingIndex identify the listing on its page, so two
	// listings that resolve to identical prices stay separate rows.
	ListingName  string `json:"listing_name"`
	ListingIndex int    `json:"listing_index"`
}

// Unmatched preserves a listing that could not be turned into an observation
type Unmatched struct {
	SourceID     string    `json:"source_id"`
	SourceName   string    `json:"source_name"`
	Name         string    `json:"name"`
	RawPrice     string    `json:"raw_price"`
	Reason       Reason    `json:"reason"`
	SuggestedKey string    `json:"suggested_key,omitempty"`
	URL          string    `json:"url,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`
	ListingIndex int       `json:"listing_index"`
}

// Round2 rounds x to two decimal places
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Build combines a listing, its material and the run's USD->ZWG rate into an
// observation. A nil or non-positive rate leaves the other currency empty.
// When no observation can be built the reason is returned instead.
func Build(src crawler.SourceConfig, listing crawler.RawListing, material Material, rate *float64, scrapedAt time.Time) (*Observation, Reason) {
	if material.Key == "" {
		return nil, ReasonNoMaterial
	}

	parsed := price.Parse(listing.Price)
	if parsed.Price == nil {
		return nil, ReasonNoPrice
	}

	currency := parsed.Currency
	if currency == "" {
		currency = strings.ToUpper(src.DefaultCurrency)
	}
	if currency == "" {
		return nil, ReasonNoCurrency
	}

	value := *parsed.Price
	obs := &Observation{
		SourceID:      src.ID,
		SourceName:    sourceName(src),
		MaterialKey:   material.Key,
		MaterialName:  material.Name,
		Unit:          strings.TrimSpace(listing.Unit),
		PriceOriginal: value,
		Currency:      currency,
		Location:      helpers.TrimPrefixFold(listing.Location, "Location:"),
		SupplierName:  helpers.TrimPrefixFold(listing.Supplier, "By "),
		Confidence:    src.TrustLevel(),
		ScrapedAt:     scrapedAt.UTC(),
		ListingName:   strings.TrimSpace(listing.Name),
	}
	if obs.MaterialName == "" {
		obs.MaterialName = material.Key
	}
	if helpers.IsAbsoluteHTTPURL(listing.URL) {
		obs.URL = strings.TrimSpace(listing.URL)
	}

	hasRate := rate != nil && *rate > 0
	switch currency {
	case price.USD:
		obs.PriceUSD = &value
		if hasRate {
			zwg := Round2(value * *rate)
			obs.PriceZWG = &zwg
		}
	case price.ZWG:
		obs.PriceZWG = &value
		if hasRate {
			usd := Round2(value / *rate)
			obs.PriceUSD = &usd
		}
	}
	return obs, ReasonNone
}

// NewUnmatched records a listing for alias curation
func NewUnmatched(src crawler.SourceConfig, listing crawler.RawListing, reason Reason, suggestedKey string, scrapedAt time.Time) Unmatched {
	u := Unmatched{
		SourceID:     src.ID,
		SourceName:   sourceName(src),
		Name:         listing.Name,
		RawPrice:     listing.Price,
		Reason:       reason,
		SuggestedKey: suggestedKey,
		ScrapedAt:    scrapedAt.UTC(),
	}
	if helpers.IsAbsoluteHTTPURL(listing.URL) {
		u.URL = strings.TrimSpace(listing.URL)
	}
	return u
}

func sourceName(src crawler.SourceConfig) string {
	if src.Name != "" {
		return src.Name
	}
	return src.ID
}
