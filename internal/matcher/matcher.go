// Package matcher resolves free-text item names to canonical material keys.
package matcher

import (
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// SuggestThreshold is the minimum Jaro-Winkler similarity for a suggestion
const SuggestThreshold = 0.85

// Alias maps one free-text synonym to a material key
type Alias struct {
	Alias string `yaml:"alias" json:"alias"`
	Key   string `yaml:"key" json:"key"`
}

// Normalize lowercases s, turns whitespace into single spaces and drops every
// character outside [a-z0-9 .-].
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Dictionary is a read-only alias table. Entries keep their input order,
// which breaks ties between equally long substring matches.
type Dictionary struct {
	entries []Alias
	exact   map[string]string
	names   map[string]string
}

// NewDictionary normalizes every alias once. Aliases that normalize to the
// empty string are ignored and the first of any duplicates wins. names maps
// material keys to display names and may be nil.
func NewDictionary(aliases []Alias, names map[string]string) *Dictionary {
	d := &Dictionary{
		exact: make(map[string]string, len(aliases)),
		names: names,
	}
	for _, a := range aliases {
		norm := Normalize(a.Alias)
		key := strings.TrimSpace(a.Key)
		if norm == "" || key == "" {
			continue
		}
		if _, dup := d.exact[norm]; dup {
			continue
		}
		d.exact[norm] = key
		d.entries = append(d.entries, Alias{Alias: norm, Key: key})
	}
	return d
}

// FromMap builds a dictionary from a flat alias -> key mapping. Map order is
// undefined, so aliases are taken in sorted order.
func FromMap(m map[string]string) *Dictionary {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	aliases := make([]Alias, 0, len(keys))
	for _, k := range keys {
		aliases = append(aliases, Alias{Alias: k, Key: m[k]})
	}
	return NewDictionary(aliases, nil)
}

// Len returns the number of distinct normalized aliases
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// Match returns the material key for rawName or "" when nothing matches.
// An exact alias wins; otherwise the longest alias contained in the
// normalized name is used.
func (d *Dictionary) Match(rawName string) string {
	norm := Normalize(rawName)
	if norm == "" {
		return ""
	}
	if key, ok := d.exact[norm]; ok {
		return key
	}

	best, bestLen := "", 0
	for _, e := range d.entries {
		if len(e.Alias) > bestLen && strings.Contains(norm, e.Alias) {
			best, bestLen = e.Key, len(e.Alias)
		}
	}
	return best
}

// Name returns the display name for a material key, or the key itself
func (d *Dictionary) Name(key string) string {
	if name, ok := d.names[key]; ok && name != "" {
		return name
	}
	return key
}

// Suggest returns the key of the most similar alias and its score. The key
// is empty when no alias reaches SuggestThreshold. Suggestions annotate
// unmatched listings only and are never used to build observations.
func (d *Dictionary) Suggest(rawName string) (string, float64) {
	norm := Normalize(rawName)
	if norm == "" {
		return "", 0
	}

	var bestKey string
	var bestScore float64
	for _, e := range d.entries {
		score := matchr.JaroWinkler(norm, e.Alias, false)
		if score > bestScore {
			bestScore = score
			bestKey = e.Key
		}
	}

	if bestScore < SuggestThreshold {
		return "", bestScore
	}
	return bestKey, bestScore
}
