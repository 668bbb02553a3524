package facet

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Direction orders a ranking
type Direction string

const (
	Descending Direction = "desc"
	Ascending  Direction = "asc"
)

// ParseDirection accepts asc/desc in any case. Blank means Descending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "descending":
		return Descending, nil
	case "asc", "ascending":
		return Ascending, nil
	default:
		return "", fmt.Errorf("invalid direction %q: want asc or desc", s)
	}
}

// Entry is one ranked group
type Entry struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Ranked is an ordered list of groups
type Ranked []Entry

// Keys lists the ranked keys in order
func (r Ranked) Keys() []string {
	keys := make([]string, len(r))
	for i, e := range r {
		keys[i] = e.Key
	}
	return keys
}

// TopN sorts agg by value in direction, breaking ties by key ascending, and
// keeps the first n entries. n <= 0 yields an empty ranking.
func TopN(agg Aggregation, n int, dir Direction) Ranked {
	if n <= 0 || len(agg) == 0 {
		return Ranked{}
	}
	ranked := make(Ranked, 0, len(agg))
	for k, v := range agg {
		ranked = append(ranked, Entry{Key: k, Value: v})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Value != b.Value {
			if dir == Ascending {
				return a.Value < b.Value
			}
			return a.Value > b.Value
		}
		return a.Key < b.Key
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// PercentageOfTotal expresses each group as a share of the total, in
// percent. A zero or non-finite total yields 0 for every group, as does a
// non-finite group value.
func PercentageOfTotal(agg Aggregation) Aggregation {
	out := make(Aggregation, len(agg))
	total := agg.Total()
	finite := total != 0 && !math.IsNaN(total) && !math.IsInf(total, 0)
	for k, v := range agg {
		if !finite || math.IsNaN(v) || math.IsInf(v, 0) {
			out[k] = 0
			continue
		}
		out[k] = v / total * 100
	}
	return out
}
