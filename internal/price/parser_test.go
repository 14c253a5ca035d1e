package price

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		price    float64
		currency string
	}{
		{"dollar sign", "$12.50", 12.50, USD},
		{"us dollar prefix", "US$ 9.99 per bag", 9.99, USD},
		{"usd word", "USD 1,250", 1250, USD},
		{"lowercase usd", "usd 15", 15, USD},
		{"zwg", "ZWG 3,400.75", 3400.75, ZWG},
		{"zig mixed case", "ZiG 45", 45, ZWG},
		{"zwl", "ZWL 100", 100, ZWG},
		{"both markers zwg wins", "$10 / ZWG 270", 10, ZWG},
		{"negative", "USD -5.5", -5.5, USD},
		{"thousands separators", "$1,234,567.89", 1234567.89, USD},
		{"no marker", "450.00", 450, ""},
		{"first run wins", "2 for $30", 2, USD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.raw)
			require.NotNil(t, res.Price)
			assert.InDelta(t, tt.price, *res.Price, 1e-9)
			assert.Equal(t, tt.currency, res.Currency)
		})
	}
}

func TestParseWithoutNumber(t *testing.T) {
	res := Parse("Call for price")
	assert.Nil(t, res.Price)
	assert.Equal(t, "", res.Currency)

	res = Parse("USD")
	assert.Nil(t, res.Price)
	assert.Equal(t, USD, res.Currency)

	assert.Nil(t, Parse("").Price)
}

func TestDetectCurrency(t *testing.T) {
	assert.Equal(t, USD, DetectCurrency("US$"))
	assert.Equal(t, ZWG, DetectCurrency("zwg"))
	assert.Equal(t, ZWG, DetectCurrency("USD or ZiG"))
	assert.Equal(t, "", DetectCurrency("R 50"))
}
