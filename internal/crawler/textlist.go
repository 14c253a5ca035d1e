package crawler

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// TextWindow is how many lines the text-list strategy looks behind a price
// line for its title and ahead of it for location and supplier.
const TextWindow = 8

const (
	minTitleLength = 3
	maxTitleLength = 120
)

var (
	priceLineRe   = regexp.MustCompile(`(?i)(?:US\$|\$|USD|ZWG|ZWL|ZIG)\s*-?\d[\d,]*(?:\.\d+)?`)
	reservedRe    = regexp.MustCompile(`(?i)^(?:by|location|phone|email|price|usd|zwg|zig)\b`)
	digitsOnlyRe  = regexp.MustCompile(`^[0-9]+$`)
	locationTagRe = regexp.MustCompile(`(?i)^location\s*:`)
	cityRe        = regexp.MustCompile(`(?i)\b(?:harare|bulawayo|chitungwiza|mutare|gweru|kwekwe|kadoma|masvingo|chinhoyi|marondera|norton|bindura|beitbridge|victoria falls|hwange|kariba|zvishavane|chegutu|rusape|chiredzi|ruwa|epworth)\b`)
	supplierRe    = regexp.MustCompile(`(?i)^by\s+\S`)
	unitRe        = regexp.MustCompile(`(?i)^\s*(?:per\s+|/\s*)([a-z0-9²³]+)`)
)

// defaultNoise matches navigation, filters, pagination and other page chrome
var defaultNoise = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:home|shop|products|categories|category|cart|checkout|wishlist|compare|menu|search|login|log in|sign in|sign up|register|my account|account|contact|contact us|about|about us|blog|faq|help|close)$`),
	regexp.MustCompile(`(?i)^(?:filter|filters|sort by|sort|show|showing|view|price range|min price|max price|in stock|out of stock|on sale)\b`),
	regexp.MustCompile(`(?i)^(?:next|previous|prev|first|last|load more|view all|see all|show more|back to top|page \d+|\d+\s*(?:of|/)\s*\d+|«|»|‹|›|<|>)$`),
	regexp.MustCompile(`(?i)^(?:add to cart|add to basket|buy now|quick view|select options|read more|view details|out of stock|call now|whatsapp|share)$`),
	regexp.MustCompile(`(?i)(?:©|copyright|all rights reserved|privacy policy|terms (?:and|&) conditions|cookie)`),
	regexp.MustCompile(`(?i)^(?:showing|results?)\s+\d+`),
}

// NoiseFilter decides which lines are page chrome rather than content
type NoiseFilter struct {
	patterns []*regexp.Regexp
}

// NewNoiseFilter combines the default blocklist with per-source patterns.
// Patterns are case-insensitive regular expressions; ones that do not compile
// are matched as literal text.
func NewNoiseFilter(extra []string) *NoiseFilter {
	patterns := make([]*regexp.Regexp, 0, len(defaultNoise)+len(extra))
	patterns = append(patterns, defaultNoise...)
	for _, p := range extra {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(p))
		}
		patterns = append(patterns, re)
	}
	return &NoiseFilter{patterns: patterns}
}

// IsNoise reports whether line matches any blocklist pattern
func (f *NoiseFilter) IsNoise(line string) bool {
	for _, re := range f.patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// TextListExtractor finds listings in unstructured page text
type TextListExtractor struct {
	noise *NoiseFilter
}

// NewTextListExtractor creates a text-list extractor with the source's noise patterns
func NewTextListExtractor(source SourceConfig) *TextListExtractor {
	return &TextListExtractor{noise: NewNoiseFilter(source.NoisePatterns)}
}

// Extract runs the line heuristics over the page's visible text
func (e *TextListExtractor) Extract(doc DocumentQuery, _ string) ([]RawListing, error) {
	return ExtractTextListings(doc.Lines(), e.noise), nil
}

// IsPriceLine reports whether line carries a currency marker followed by a number
func IsPriceLine(line string) bool {
	return priceLineRe.MatchString(line)
}

type textListKey struct {
	title, priceLine, location, supplier string
}

// ExtractTextListings pairs each price line with the nearest plausible title
// before it and the first location and supplier lines after it. lines is
// never modified.
func ExtractTextListings(lines []string, noise *NoiseFilter) []RawListing {
	if noise == nil {
		noise = NewNoiseFilter(nil)
	}

	isNoise := make([]bool, len(lines))
	isPrice := make([]bool, len(lines))
	for i, line := range lines {
		isNoise[i] = noise.IsNoise(line)
		isPrice[i] = !isNoise[i] && IsPriceLine(line)
	}

	seen := make(map[textListKey]struct{})
	var listings []RawListing
	for i := range lines {
		if !isPrice[i] {
			continue
		}

		title, ok := findTitle(lines, isNoise, isPrice, i)
		if !ok {
			continue
		}
		location := scanForward(lines, isNoise, i, isLocationLine)
		supplier := scanForward(lines, isNoise, i, supplierRe.MatchString)

		key := textListKey{title: title, priceLine: lines[i], location: location, supplier: supplier}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		price, unit := splitPriceLine(lines[i])
		listings = append(listings, RawListing{
			Name:     title,
			Price:    price,
			Unit:     unit,
			Location: location,
			Supplier: supplier,
		})
	}
	return listings
}

// findTitle searches lines[at-TextWindow : at] backwards for a title candidate
func findTitle(lines []string, isNoise, isPrice []bool, at int) (string, bool) {
	for j := at - 1; j >= 0 && j >= at-TextWindow; j-- {
		if isNoise[j] || isPrice[j] {
			continue
		}
		if isTitleCandidate(lines[j]) {
			return lines[j], true
		}
	}
	return "", false
}

func isTitleCandidate(line string) bool {
	n := utf8.RuneCountInString(line)
	if n < minTitleLength || n > maxTitleLength {
		return false
	}
	return !reservedRe.MatchString(line) && !digitsOnlyRe.MatchString(line)
}

// scanForward returns the first non-noise line in lines[at+1 : at+1+TextWindow] that matches
func scanForward(lines []string, isNoise []bool, at int, match func(string) bool) string {
	for j := at + 1; j < len(lines) && j <= at+TextWindow; j++ {
		if isNoise[j] {
			continue
		}
		if match(lines[j]) {
			return lines[j]
		}
	}
	return ""
}

func isLocationLine(line string) bool {
	return locationTagRe.MatchString(line) || cityRe.MatchString(line)
}

// splitPriceLine returns the currency+amount fragment of a price line and
// the unit named right after it ("US$ 9.50 per bag" -> "US$ 9.50", "bag").
func splitPriceLine(line string) (string, string) {
	loc := priceLineRe.FindStringIndex(line)
	if loc == nil {
		return line, ""
	}
	price := line[loc[0]:loc[1]]
	if m := unitRe.FindStringSubmatch(line[loc[1]:]); m != nil {
		return price, m[1]
	}
	return price, ""
}
