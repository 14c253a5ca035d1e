// Package price turns free-text price strings into a number and a currency tag.
package price

import (
	"regexp"
	"strconv"
	"strings"
)

// Currency tags. An empty Currency means no marker was found.
const (
	USD = "USD"
	ZWG = "ZWG"
)

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Result is the outcome of parsing one price string
type Result struct {
	Price    *float64
	Currency string
}

// Parse extracts the first numeric run from raw after removing thousands
// separators and tags it with the currency named in the text. When both
// currency families appear, ZWG wins.
func Parse(raw string) Result {
	var res Result

	if m := numberRe.FindString(strings.ReplaceAll(raw, ",", "")); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			res.Price = &v
		}
	}

	res.Currency = DetectCurrency(raw)
	return res
}

// DetectCurrency returns USD or ZWG from markers anywhere in raw, or ""
func DetectCurrency(raw string) string {
	upper := strings.ToUpper(raw)

	currency := ""
	if strings.Contains(upper, "USD") || strings.Contains(upper, "$") {
		currency = USD
	}
	// ZWG is checked second and overrides USD
	if strings.Contains(upper, "ZWG") || strings.Contains(upper, "ZWL") || strings.Contains(upper, "ZIG") {
		currency = ZWG
	}
	return currency
}
