// Package profiling describes the columns of a dataframe: coverage,
// cardinality and, for numeric columns, the shape of the distribution.
package profiling

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"marketlens/domain/dataframe"
)

// Distribution summarizes a numeric column
type Distribution struct {
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"stdDev"`
	Min      float64 `json:"min"`
	Q25      float64 `json:"q25"`
	Median   float64 `json:"median"`
	Q75      float64 `json:"q75"`
	Max      float64 `json:"max"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"excessKurtosis"`
	Outliers int     `json:"outliers"`
	CV       float64 `json:"cv"`
}

// ColumnProfile describes one schema field
type ColumnProfile struct {
	Name         string        `json:"name"`
	Kind         string        `json:"kind"`
	Role         string        `json:"role"`
	Present      int           `json:"present"`
	MissingRate  float64       `json:"missingRate"`
	Distinct     int           `json:"distinct"`
	Distribution *Distribution `json:"distribution,omitempty"`
}

// Profile describes every field of df in schema order
func Profile(df *dataframe.Dataframe) []ColumnProfile {
	rows := df.Rows()
	fields := df.Schema().Fields()
	out := make([]ColumnProfile, 0, len(fields))

	for _, f := range fields {
		p := ColumnProfile{Name: f.Name, Kind: f.Kind.String(), Role: f.Role.String()}
		distinct := make(map[dataframe.Value]struct{})
		var numbers []float64
		for _, rec := range rows {
			v, ok := rec.Get(f.Name)
			if !ok {
				continue
			}
			p.Present++
			distinct[v] = struct{}{}
			if n, isNum := v.Float(); isNum {
				numbers = append(numbers, n)
			}
		}
		p.Distinct = len(distinct)
		if len(rows) > 0 {
			p.MissingRate = 1 - float64(p.Present)/float64(len(rows))
		}
		if f.Kind == dataframe.KindNumber && len(numbers) > 0 {
			p.Distribution = Describe(numbers)
		}
		out = append(out, p)
	}
	return out
}

// Describe computes the distribution of data, which must be non-empty
func Describe(data []float64) *Distribution {
	d := &Distribution{}
	d.Mean, _ = stats.Mean(data)
	d.StdDev, _ = stats.StandardDeviation(data)
	d.Min, _ = stats.Min(data)
	d.Max, _ = stats.Max(data)
	d.Median, _ = stats.Median(data)
	d.Q25, _ = stats.Percentile(data, 25)
	d.Q75, _ = stats.Percentile(data, 75)
	d.Outliers = countOutliers(data, d.Q25, d.Q75)

	if len(data) >= 3 && d.StdDev > 0 {
		d.Skewness = finite(stat.Skew(data, nil))
	}
	if len(data) >= 4 && d.StdDev > 0 {
		d.Kurtosis = finite(stat.ExKurtosis(data, nil))
	}
	if d.Mean != 0 {
		d.CV = d.StdDev / math.Abs(d.Mean)
	}
	return d
}

// countOutliers counts values outside the 1.5 IQR fences
func countOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lower, upper := q25-1.5*iqr, q75+1.5*iqr
	n := 0
	for _, x := range data {
		if x < lower || x > upper {
			n++
		}
	}
	return n
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
