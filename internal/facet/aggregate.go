package facet

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"marketlens/domain/dataframe"
)

// Aggregation maps a rendered group key to one computed value
type Aggregation map[string]float64

// Keys returns the group keys in sorted order
func (a Aggregation) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Total sums every group value
func (a Aggregation) Total() float64 {
	if len(a) == 0 {
		return 0
	}
	values := make(stats.Float64Data, 0, len(a))
	for _, v := range a {
		values = append(values, v)
	}
	total, _ := values.Sum()
	return total
}

// Metric is a computed value that may be undefined. Averages with no
// contributing rows are NotAvailable, which is distinct from a computed zero.
type Metric struct {
	Value     float64
	Available bool
}

// NotAvailable is the undefined metric
var NotAvailable = Metric{}

// Available wraps a defined value. NaN and infinities are not available.
func Available(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NotAvailable
	}
	return Metric{Value: v, Available: true}
}

// Or returns the value, or fallback when not available
func (m Metric) Or(fallback float64) float64 {
	if !m.Available {
		return fallback
	}
	return m.Value
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Available {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*m = NotAvailable
		return nil
	}
	*m = Available(*v)
	return nil
}

// Averages maps a group key to a possibly undefined mean
type Averages map[string]Metric

// Keys returns the group keys in sorted order
func (a Averages) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Defined drops the undefined groups, for ranking
func (a Averages) Defined() Aggregation {
	out := make(Aggregation, len(a))
	for k, m := range a {
		if m.Available {
			out[k] = m.Value
		}
	}
	return out
}

// GroupKeySeparator joins the parts of a multi-facet group key
const GroupKeySeparator = " | "

// GroupKey renders a tuple of facet values as one group key
func GroupKey(values ...dataframe.Value) string {
	if len(values) == 1 {
		return values[0].String()
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, GroupKeySeparator)
}

// groupOf resolves the group key of rec, false when any facet is missing
func groupOf(rec dataframe.Record, facets []string) (string, bool) {
	values := make([]dataframe.Value, len(facets))
	for i, f := range facets {
		v, ok := rec.Get(f)
		if !ok {
			return "", false
		}
		values[i] = v
	}
	return GroupKey(values...), true
}

// SumBy totals metric per group. A missing metric contributes 0; records
// missing the group facet are skipped.
func SumBy(records []dataframe.Record, groupFacet, metric string) Aggregation {
	return SumByKeys(records, []string{groupFacet}, metric)
}

// SumByKeys totals metric per tuple of facet values
func SumByKeys(records []dataframe.Record, facets []string, metric string) Aggregation {
	out := make(Aggregation)
	for _, rec := range records {
		key, ok := groupOf(rec, facets)
		if !ok {
			continue
		}
		v, _ := rec.Number(metric)
		out[key] += v
	}
	return out
}

// CountBy counts the records of each group
func CountBy(records []dataframe.Record, groupFacet string) Aggregation {
	out := make(Aggregation)
	for _, rec := range records {
		key, ok := groupOf(rec, []string{groupFacet})
		if !ok {
			continue
		}
		out[key]++
	}
	return out
}

// AverageBy is the arithmetic mean of metric per group over the records that
// carry the metric. A group seen only without the metric is NotAvailable.
func AverageBy(records []dataframe.Record, groupFacet string, metric string) Averages {
	samples := make(map[string]stats.Float64Data)
	for _, rec := range records {
		key, ok := groupOf(rec, []string{groupFacet})
		if !ok {
			continue
		}
		data := samples[key]
		if v, ok := rec.Number(metric); ok {
			data = append(data, v)
		}
		samples[key] = data
	}

	out := make(Averages, len(samples))
	for key, data := range samples {
		if len(data) == 0 {
			out[key] = NotAvailable
			continue
		}
		mean, err := stats.Mean(data)
		if err != nil {
			out[key] = NotAvailable
			continue
		}
		out[key] = Available(mean)
	}
	return out
}
