package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDictionary() *Dictionary {
	return NewDictionary([]Alias{
		{Alias: "bricks", Key: "brick-generic"},
		{Alias: "Red Common Bricks", Key: "brick-red-common"},
		{Alias: "surecem 32.5", Key: "cement-ppc-surecem-325r"},
		{Alias: "cement", Key: "cement-generic"},
		{Alias: "river sand", Key: "sand-river"},
		{Alias: "pit sand", Key: "sand-pit"},
	}, map[string]string{
		"brick-red-common": "Red Common Bricks",
	})
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  PPC Cement   Surecem 32.5 ": "ppc cement surecem 32.5",
		"Red\tCommon\nBricks!":        "red common bricks",
		"Brick-Force (4mm) @ 230mm":   "brick-force 4mm 230mm",
		"50kg/bag":                    "50kgbag",
		"":                            "",
		"***":                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestMatchExact(t *testing.T) {
	d := testDictionary()
	assert.Equal(t, "brick-red-common", d.Match("RED COMMON BRICKS"))
	assert.Equal(t, "sand-river", d.Match("River  Sand"))
}

func TestMatchPrefersLongestSubstring(t *testing.T) {
	d := testDictionary()
	assert.Equal(t, "brick-red-common", d.Match("Premium Red Common Bricks per 1000"))
	assert.Equal(t, "brick-generic", d.Match("Face bricks 1000"))
	assert.Equal(t, "", d.Match("Roofing sheets"))
	assert.Equal(t, "", d.Match(""))
}

func TestMatchKeepsDecimalPoint(t *testing.T) {
	d := testDictionary()
	assert.Equal(t, "cement-ppc-surecem-325r", d.Match("PPC Cement Surecem 32.5"))

	// Substring matching needs the alias words to be contiguous
	only := FromMap(map[string]string{"ppc surecem 325": "cement-ppc-surecem-325r"})
	assert.Equal(t, "", only.Match("PPC Cement Surecem 32.5"))

	decimal := FromMap(map[string]string{"surecem 32.5": "cement-ppc-surecem-325r"})
	assert.Equal(t, "cement-ppc-surecem-325r", decimal.Match("PPC Cement Surecem 32.5"))
}

func TestMatchTieBreakUsesDictionaryOrder(t *testing.T) {
	d := NewDictionary([]Alias{
		{Alias: "sand", Key: "first"},
		{Alias: "pit", Key: "short"},
		{Alias: "river", Key: "second"},
	}, nil)
	// "river" (5) is longer than "sand" (4)
	assert.Equal(t, "second", d.Match("river sand"))

	d = NewDictionary([]Alias{
		{Alias: "river", Key: "first"},
		{Alias: "plaster", Key: "other"},
		{Alias: "sands", Key: "second"},
	}, nil)
	assert.Equal(t, "first", d.Match("sands river"))
}

func TestNewDictionaryDuplicatesAndEmpties(t *testing.T) {
	d := NewDictionary([]Alias{
		{Alias: "Cement", Key: "cement-a"},
		{Alias: "cement!", Key: "cement-b"},
		{Alias: "!!!", Key: "nothing"},
		{Alias: "lime", Key: ""},
	}, nil)
	assert.Equal(t, 1, d.Len())
	assert.Equal(t, "cement-a", d.Match("cement"))
}

func TestFromMapIsDeterministic(t *testing.T) {
	m := map[string]string{"zinc": "z", "aggregate": "a", "mesh": "m"}
	for i := 0; i < 5; i++ {
		d := FromMap(m)
		assert.Equal(t, []Alias{
			{Alias: "aggregate", Key: "a"},
			{Alias: "mesh", Key: "m"},
			{Alias: "zinc", Key: "z"},
		}, d.entries)
	}
}

func TestName(t *testing.T) {
	d := testDictionary()
	assert.Equal(t, "Red Common Bricks", d.Name("brick-red-common"))
	assert.Equal(t, "sand-pit", d.Name("sand-pit"))
}

func TestSuggest(t *testing.T) {
	d := testDictionary()

	key, score := d.Suggest("red comon bricks")
	assert.Equal(t, "brick-red-common", key)
	assert.GreaterOrEqual(t, score, SuggestThreshold)

	key, _ = d.Suggest("xyz")
	assert.Equal(t, "", key)

	key, score = d.Suggest("")
	assert.Equal(t, "", key)
	assert.Zero(t, score)
}
