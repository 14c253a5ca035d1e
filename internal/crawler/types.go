package crawler

import (
	"context"
	"fmt"
	"strings"

	perrors "buildprice/priceworker/pkg/errors"
)

// ParserKind selects the listing extraction strategy for a source
type ParserKind string

const (
	ParserCard     ParserKind = "card"
	ParserTable    ParserKind = "table"
	ParserTextList ParserKind = "text-list"
)

// DefaultConfidence is used when a source does not declare a trust level
const DefaultConfidence = 2

// SourceConfig identifies one scrapeable site
type SourceConfig struct {
	ID              string            `yaml:"id" json:"id"`
	Name            string            `yaml:"name" json:"name"`
	URL             string            `yaml:"url" json:"url"`
	Parser          ParserKind        `yaml:"parser" json:"parser"`
	Selectors       map[string]string `yaml:"selectors" json:"selectors,omitempty"`
	NoisePatterns   []string          `yaml:"noise_patterns" json:"noise_patterns,omitempty"`
	Headers         map[string]string `yaml:"headers" json:"headers,omitempty"`
	Active          bool              `yaml:"is_active" json:"is_active"`
	Confidence      int               `yaml:"confidence" json:"confidence"`
	DefaultCurrency string            `yaml:"default_currency" json:"default_currency,omitempty"`
}

// TrustLevel returns the confidence copied onto every observation
func (s SourceConfig) TrustLevel() int {
	if s.Confidence == 0 {
		return DefaultConfidence
	}
	return s.Confidence
}

// Selector returns the named selector or fallback when it is not configured
func (s SourceConfig) Selector(name, fallback string) string {
	if v := strings.TrimSpace(s.Selectors[name]); v != "" {
		return v
	}
	return fallback
}

// Validate checks the fields every parser needs
func (s SourceConfig) Validate() error {
	if s.ID == "" {
		return perrors.NewConfiguration(s.Name, "source id is required")
	}
	if s.URL == "" {
		return perrors.NewConfiguration(s.ID, "source url is required")
	}
	if s.Confidence < 0 || s.Confidence > 5 {
		return perrors.NewConfiguration(s.ID, fmt.Sprintf("confidence %d outside 1..5", s.Confidence))
	}
	switch strings.ToUpper(s.DefaultCurrency) {
	case "", "USD", "ZWG":
	default:
		return perrors.NewConfiguration(s.ID, fmt.Sprintf("unsupported default currency %q", s.DefaultCurrency))
	}
	switch s.Parser {
	case ParserCard:
		for _, name := range []string{"item", "name", "price"} {
			if s.Selector(name, "") == "" {
				return perrors.NewConfiguration(s.ID, fmt.Sprintf("card parser requires selector %q", name))
			}
		}
	case ParserTable, ParserTextList:
	default:
		return perrors.NewConfiguration(s.ID, fmt.Sprintf("unknown parser %q", s.Parser))
	}
	return nil
}

// RawListing is an unparsed listing as it appeared on the page. Empty fields are absent.
type RawListing struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Unit     string `json:"unit,omitempty"`
	Location string `json:"location,omitempty"`
	Supplier string `json:"supplier,omitempty"`
	URL      string `json:"url,omitempty"`
}

// DocumentQuery is the slice of an HTML document the extractors rely on
type DocumentQuery interface {
	// FindAll returns every descendant matching a CSS selector
	FindAll(selector string) []DocumentQuery

	// Text returns the whitespace-collapsed text content
	Text() string

	// Attr returns an attribute of the first node
	Attr(name string) (string, bool)

	// Lines returns the visible text split into trimmed, non-empty lines
	Lines() []string
}

// Extractor turns a parsed page into raw listings
type Extractor interface {
	Extract(doc DocumentQuery, pageURL string) ([]RawListing, error)
}

// Crawler interface defines the contract for all source crawlers
type Crawler interface {
	// FetchListings retrieves raw listings from a source
	FetchListings(ctx context.Context) ([]RawListing, error)

	// GetName returns the crawler's name for logging and identification
	GetName() string

	// Source returns the configuration the crawler was built from
	Source() SourceConfig
}
