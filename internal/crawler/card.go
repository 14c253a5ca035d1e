package crawler

import (
	"buildprice/priceworker/helpers"
)

// CardExtractor reads one listing per product card
type CardExtractor struct {
	source SourceConfig
}

// NewCardExtractor creates a card extractor for a source using the card parser
func NewCardExtractor(source SourceConfig) *CardExtractor {
	return &CardExtractor{source: source}
}

// Extract reads name, price and the optional fields from every item node
func (e *CardExtractor) Extract(doc DocumentQuery, pageURL string) ([]RawListing, error) {
	var listings []RawListing
	for _, item := range doc.FindAll(e.source.Selector("item", "")) {
		listing, ok := readFields(item, e.source, "", pageURL)
		if !ok {
			continue
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// readFields extracts the named fields from one card or row. With a
// columnFallback, unconfigured name, unit and price selectors default to the
// first three columns.
func readFields(node DocumentQuery, source SourceConfig, columnFallback string, pageURL string) (RawListing, bool) {
	get := func(name, fallback string) string {
		return firstText(node, source.Selector(name, fallback))
	}

	var nameFallback, unitFallback, priceFallback string
	if columnFallback != "" {
		nameFallback = columnFallback + "(1)"
		unitFallback = columnFallback + "(2)"
		priceFallback = columnFallback + "(3)"
	}

	listing := RawListing{
		Name:     get("name", nameFallback),
		Price:    get("price", priceFallback),
		Unit:     get("unit", unitFallback),
		Location: get("location", ""),
		Supplier: get("supplier", ""),
	}

	// Empty name or price drops the item
	if listing.Name == "" || listing.Price == "" {
		return RawListing{}, false
	}

	listing.URL = firstLink(node, source.Selector("url", ""), pageURL)
	return listing, true
}

// firstText returns the trimmed text of the first match, or "" if nothing matches
func firstText(node DocumentQuery, selector string) string {
	if selector == "" {
		return ""
	}
	matches := node.FindAll(selector)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Text()
}

// firstLink returns the href of the first match resolved against the page URL
func firstLink(node DocumentQuery, selector, pageURL string) string {
	if selector == "" {
		return ""
	}
	matches := node.FindAll(selector)
	if len(matches) == 0 {
		return ""
	}
	href, ok := matches[0].Attr("href")
	if !ok || href == "" {
		href = matches[0].Text()
	}
	return helpers.ResolveURL(pageURL, href)
}
