package facet

import (
	"math"

	"github.com/montanaflynn/stats"

	"marketlens/domain/dataframe"
)

// CAGR is the compound annual growth rate (last/first)^(1/years) - 1.
// Undefined when first is not positive, last is negative or years is not
// positive.
func CAGR(first, last, years float64) Metric {
	if first <= 0 || last < 0 || years <= 0 {
		return NotAvailable
	}
	return Available(math.Pow(last/first, 1/years) - 1)
}

// GrowthBy computes per group CAGR of metric between fromYear and toYear
// using yearly sums. Groups absent in either year are NotAvailable.
func GrowthBy(records []dataframe.Record, groupFacet, metric string, fromYear, toYear int) Averages {
	yearly := SumByKeys(records, []string{groupFacet, "year"}, metric)
	groups := make(map[string]struct{})
	for _, rec := range records {
		if key, ok := groupOf(rec, []string{groupFacet}); ok {
			groups[key] = struct{}{}
		}
	}

	from, to := dataframe.Int(fromYear), dataframe.Int(toYear)
	out := make(Averages, len(groups))
	for g := range groups {
		gv := dataframe.String(g)
		first, okFirst := yearly[GroupKey(gv, from)]
		last, okLast := yearly[GroupKey(gv, to)]
		if !okFirst || !okLast {
			out[g] = NotAvailable
			continue
		}
		out[g] = CAGR(first, last, float64(toYear-fromYear))
	}
	return out
}

// Summary describes the distribution of one metric over a set of records
type Summary struct {
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Mean   Metric  `json:"mean"`
	Median Metric  `json:"median"`
	Min    Metric  `json:"min"`
	Max    Metric  `json:"max"`
	StdDev Metric  `json:"stdDev"`
}

// Summarize computes count, sum and distribution statistics of metric over
// the records that carry it
func Summarize(records []dataframe.Record, metric string) Summary {
	var data stats.Float64Data
	for _, rec := range records {
		if v, ok := rec.Number(metric); ok {
			data = append(data, v)
		}
	}
	s := Summary{Count: len(data)}
	if len(data) == 0 {
		return s
	}
	s.Sum, _ = data.Sum()
	s.Mean = metricOf(data.Mean())
	s.Median = metricOf(data.Median())
	s.Min = metricOf(data.Min())
	s.Max = metricOf(data.Max())
	s.StdDev = metricOf(data.StandardDeviation())
	return s
}

func metricOf(v float64, err error) Metric {
	if err != nil {
		return NotAvailable
	}
	return Available(v)
}
