package crawler

// Default selectors for price tables laid out as name | unit | price
const (
	defaultRowSelector = "table tr"
	defaultColumn      = "td:nth-child"
)

// TableExtractor reads one listing per table row
type TableExtractor struct {
	source SourceConfig
}

// NewTableExtractor creates a table extractor for a source using the table parser
func NewTableExtractor(source SourceConfig) *TableExtractor {
	return &TableExtractor{source: source}
}

// Extract walks the rows under the row selector. Header rows have no td
// cells, so they drop out on the empty-name rule.
func (e *TableExtractor) Extract(doc DocumentQuery, pageURL string) ([]RawListing, error) {
	var listings []RawListing
	for _, row := range doc.FindAll(e.source.Selector("row", defaultRowSelector)) {
		listing, ok := readFields(row, e.source, defaultColumn, pageURL)
		if !ok {
			continue
		}
		listings = append(listings, listing)
	}
	return listings, nil
}
