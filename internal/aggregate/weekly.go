// Package aggregate rolls observations up into weekly statistics.
package aggregate

import (
	"sort"
	"time"

	"buildprice/priceworker/internal/observation"
)

// WeeklyAggregate summarises one material over one week. Statistics are nil
// when the week has no prices in that currency.
type WeeklyAggregate struct {
	MaterialKey   string    `json:"material_key"`
	WeekStart     time.Time `json:"week_start"`
	AvgUSD        *float64  `json:"avg_usd"`
	MedianUSD     *float64  `json:"median_usd"`
	MinUSD        *float64  `json:"min_usd"`
	MaxUSD        *float64  `json:"max_usd"`
	AvgZWG        *float64  `json:"avg_zwg"`
	MedianZWG     *float64  `json:"median_zwg"`
	MinZWG        *float64  `json:"min_zwg"`
	MaxZWG        *float64  `json:"max_zwg"`
	SampleCount   int       `json:"sample_count"`
	LastScrapedAt time.Time `json:"last_scraped_at"`
}

// WeekStart returns Monday 00:00 UTC of the week containing t
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	back := int(day.Weekday()) - 1
	if day.Weekday() == time.Sunday {
		back = 6
	}
	return day.AddDate(0, 0, -back)
}

type groupKey struct {
	material string
	week     time.Time
}

type group struct {
	usd, zwg []float64
	last     time.Time
}

// Aggregate groups observations by material and week. The result does not
// depend on input order and is sorted by week, then material.
func Aggregate(observations []observation.Observation) []WeeklyAggregate {
	groups := make(map[groupKey]*group)
	for _, obs := range observations {
		k := groupKey{material: obs.MaterialKey, week: WeekStart(obs.ScrapedAt)}
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
		}
		if obs.PriceUSD != nil {
			g.usd = append(g.usd, *obs.PriceUSD)
		}
		if obs.PriceZWG != nil {
			g.zwg = append(g.zwg, *obs.PriceZWG)
		}
		if obs.ScrapedAt.After(g.last) {
			g.last = obs.ScrapedAt
		}
	}

	out := make([]WeeklyAggregate, 0, len(groups))
	for k, g := range groups {
		s := newStats(g.usd)
		z := newStats(g.zwg)
		out = append(out, WeeklyAggregate{
			MaterialKey:   k.material,
			WeekStart:     k.week,
			AvgUSD:        s.avg,
			MedianUSD:     s.median,
			MinUSD:        s.min,
			MaxUSD:        s.max,
			AvgZWG:        z.avg,
			MedianZWG:     z.median,
			MinZWG:        z.min,
			MaxZWG:        z.max,
			SampleCount:   max(len(g.usd), len(g.zwg)),
			LastScrapedAt: g.last.UTC(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStart.Equal(out[j].WeekStart) {
			return out[i].WeekStart.Before(out[j].WeekStart)
		}
		return out[i].MaterialKey < out[j].MaterialKey
	})
	return out
}

type stats struct {
	avg, median, min, max *float64
}

func newStats(values []float64) stats {
	if len(values) == 0 {
		return stats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	avg := observation.Round2(sum / float64(len(sorted)))

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = observation.Round2((sorted[n/2-1] + sorted[n/2]) / 2)
	}

	lo, hi := sorted[0], sorted[n-1]
	return stats{avg: &avg, median: &median, min: &lo, max: &hi}
}
