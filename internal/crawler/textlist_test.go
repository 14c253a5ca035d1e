package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextListings(t *testing.T) {
	lines := []string{
		"Home",
		"Cement",
		"PPC Surecem 32.5 50kg",
		"US$ 10.50 per bag",
		"Location: Harare",
		"By Halsted Builders",
	}

	listings := ExtractTextListings(lines, nil)
	require.Len(t, listings, 1)
	assert.Equal(t, RawListing{
		Name:     "PPC Surecem 32.5 50kg",
		Price:    "US$ 10.50",
		Unit:     "bag",
		Location: "Location: Harare",
		Supplier: "By Halsted Builders",
	}, listings[0])
}

func TestExtractTextListingsSkipsReservedAndDigitLines(t *testing.T) {
	lines := []string{
		"Red Common Bricks",
		"12345",
		"Phone: 0772 000 000",
		"By Brickworks",
		"ZWG 1,250.00",
	}

	listings := ExtractTextListings(lines, nil)
	require.Len(t, listings, 1)
	assert.Equal(t, "Red Common Bricks", listings[0].Name)
	assert.Equal(t, "ZWG 1,250.00", listings[0].Price)
	assert.Empty(t, listings[0].Supplier)
}

func TestExtractTextListingsTitleWindow(t *testing.T) {
	lines := []string{"Steel Mesh Ref 193"}
	for i := 0; i < TextWindow; i++ {
		lines = append(lines, "42")
	}
	lines = append(lines, "$99")

	assert.Empty(t, ExtractTextListings(lines, nil), "title beyond the window is not used")

	inWindow := append([]string{"Steel Mesh Ref 193"}, lines[2:]...)
	listings := ExtractTextListings(inWindow, nil)
	require.Len(t, listings, 1)
	assert.Equal(t, "Steel Mesh Ref 193", listings[0].Name)
}

// linesAfterPrice builds a title and price line followed by filler so that
// tail starts at the given offset from the price line
func linesAfterPrice(offset int, tail ...string) []string {
	lines := []string{"Steel Mesh Ref 193", "$99"}
	for i := 1; i < offset; i++ {
		lines = append(lines, "42")
	}
	return append(lines, tail...)
}

func TestExtractTextListingsForwardWindow(t *testing.T) {
	// Supplier at offset 7 and location at offset 8 are both inside the window
	listings := ExtractTextListings(linesAfterPrice(TextWindow-1, "By Mesh Co", "Location: Gweru"), nil)
	require.Len(t, listings, 1)
	assert.Equal(t, "By Mesh Co", listings[0].Supplier)
	assert.Equal(t, "Location: Gweru", listings[0].Location)

	listings = ExtractTextListings(linesAfterPrice(TextWindow, "Kwekwe depot"), nil)
	require.Len(t, listings, 1)
	assert.Equal(t, "Kwekwe depot", listings[0].Location)

	listings = ExtractTextListings(linesAfterPrice(TextWindow, "By Mesh Co"), nil)
	require.Len(t, listings, 1)
	assert.Equal(t, "By Mesh Co", listings[0].Supplier)

	// Offset 9 is outside the window
	listings = ExtractTextListings(linesAfterPrice(TextWindow+1, "Location: Gweru", "By Mesh Co"), nil)
	require.Len(t, listings, 1)
	assert.Empty(t, listings[0].Location)
	assert.Empty(t, listings[0].Supplier)
}

func TestExtractTextListingsTitleLength(t *testing.T) {
	assert.Empty(t, ExtractTextListings([]string{"AB", "$5"}, nil))

	long := make([]rune, maxTitleLength+1)
	for i := range long {
		long[i] = 'x'
	}
	assert.Empty(t, ExtractTextListings([]string{string(long), "$5"}, nil))
	assert.Len(t, ExtractTextListings([]string{string(long[:maxTitleLength]), "$5"}, nil), 1)
}

func TestExtractTextListingsNoiseIsNeverTitleOrPrice(t *testing.T) {
	lines := []string{
		"Add to cart",
		"Sort by price: $10 - $20",
		"Showing 1-20 of 64 results",
	}
	assert.Empty(t, ExtractTextListings(lines, nil))
}

func TestExtractTextListingsSourceNoise(t *testing.T) {
	lines := []string{"Weekly Special", "Wire Nails 75mm", "USD 2.10"}

	listings := ExtractTextListings(lines, nil)
	require.Len(t, listings, 1)
	assert.Equal(t, "Wire Nails 75mm", listings[0].Name)

	listings = ExtractTextListings([]string{"Wire Nails 75mm", "Weekly Special", "USD 2.10"}, NewNoiseFilter([]string{"^weekly special$"}))
	require.Len(t, listings, 1)
	assert.Equal(t, "Wire Nails 75mm", listings[0].Name)
}

func TestExtractTextListingsDeduplicates(t *testing.T) {
	lines := []string{
		"River Sand",
		"$35 per cube",
		"River Sand",
		"$35 per cube",
		"Pit Sand",
		"$30 per cube",
	}

	listings := ExtractTextListings(lines, nil)
	require.Len(t, listings, 2)
	assert.Equal(t, "River Sand", listings[0].Name)
	assert.Equal(t, "Pit Sand", listings[1].Name)
	assert.Equal(t, "cube", listings[1].Unit)
}

func TestExtractTextListingsCityLocation(t *testing.T) {
	lines := []string{"Brickforce 230mm", "ZiG 45", "Delivery within Bulawayo"}

	listings := ExtractTextListings(lines, nil)
	require.Len(t, listings, 1)
	assert.Equal(t, "ZiG 45", listings[0].Price)
	assert.Equal(t, "Delivery within Bulawayo", listings[0].Location)
}

func TestExtractTextListingsDoesNotModifyInput(t *testing.T) {
	lines := []string{"Cement 42.5N", "USD 12 / bag"}
	snapshot := append([]string(nil), lines...)

	listings := ExtractTextListings(lines, nil)
	require.Len(t, listings, 1)
	assert.Equal(t, "bag", listings[0].Unit)
	assert.Equal(t, snapshot, lines)
}

func TestIsPriceLine(t *testing.T) {
	assert.True(t, IsPriceLine("US$ 9.50"))
	assert.True(t, IsPriceLine("Price: ZWG1,200"))
	assert.True(t, IsPriceLine("usd 15"))
	assert.False(t, IsPriceLine("Call for price"))
	assert.False(t, IsPriceLine("50kg bag"))
}

func TestTextListExtractorUsesDocumentLines(t *testing.T) {
	doc := mustDocument(t, `<html><body>
		<ul class="menu"><li>Home</li><li>Shop</li></ul>
		<div class="item"><h4>Roofing Sheet IBR 0.47mm</h4><p>US$ 14.00 per sheet</p><p>Mutare</p></div>
	</body></html>`)

	src := SourceConfig{ID: "txt", URL: "https://example.co.zw", Parser: ParserTextList}
	listings, err := NewTextListExtractor(src).Extract(doc, src.URL)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, RawListing{
		Name:     "Roofing Sheet IBR 0.47mm",
		Price:    "US$ 14.00",
		Unit:     "sheet",
		Location: "Mutare",
	}, listings[0])
}
