package facet

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"marketlens/domain/dataframe"
)

// DefaultWeightFloor is the smallest weight a record may carry
const DefaultWeightFloor = 1e-6

// WeightFunc derives a record's weight. It must be a pure function of the
// record.
type WeightFunc func(dataframe.Record) float64

// WeightOption tunes WeightedAverageBy
type WeightOption func(*weightConfig)

type weightConfig struct {
	floor float64
}

// WithWeightFloor overrides DefaultWeightFloor. Non-positive floors are
// ignored.
func WithWeightFloor(floor float64) WeightOption {
	return func(c *weightConfig) {
		if floor > 0 {
			c.floor = floor
		}
	}
}

// ConstantWeight gives every record weight w
func ConstantWeight(w float64) WeightFunc {
	return func(dataframe.Record) float64 { return w }
}

// FieldWeight weights a record by a numeric field, 0 when missing
func FieldWeight(field string) WeightFunc {
	return func(rec dataframe.Record) float64 {
		v, _ := rec.Number(field)
		return v
	}
}

// ScaledWeight weights a record by field/divisor, e.g. market value in
// millions
func ScaledWeight(field string, divisor float64) WeightFunc {
	if divisor == 0 {
		divisor = 1
	}
	return func(rec dataframe.Record) float64 {
		v, _ := rec.Number(field)
		return v / divisor
	}
}

// RecencyWeight weights later years higher: 1 + (year-baseYear)*step.
// Records without a year weigh 1.
func RecencyWeight(baseYear int, step float64) WeightFunc {
	return func(rec dataframe.Record) float64 {
		year, ok := rec.Number("year")
		if !ok {
			return 1
		}
		return 1 + (year-float64(baseYear))*step
	}
}

// WeightedAverageBy computes Σ(metric·w)/Σw per group, flooring every weight
// at the configured minimum. Records without the metric do not contribute;
// a group with no contributors is NotAvailable.
func WeightedAverageBy(records []dataframe.Record, groupFacet, metric string, weight WeightFunc, opts ...WeightOption) Averages {
	cfg := weightConfig{floor: DefaultWeightFloor}
	for _, opt := range opts {
		opt(&cfg)
	}
	if weight == nil {
		weight = ConstantWeight(1)
	}

	type sample struct{ xs, ws []float64 }
	groups := make(map[string]*sample)
	for _, rec := range records {
		key, ok := groupOf(rec, []string{groupFacet})
		if !ok {
			continue
		}
		s, ok := groups[key]
		if !ok {
			s = &sample{}
			groups[key] = s
		}
		x, ok := rec.Number(metric)
		if !ok {
			continue
		}
		w := weight(rec)
		if math.IsNaN(w) || w < cfg.floor {
			w = cfg.floor
		}
		s.xs = append(s.xs, x)
		s.ws = append(s.ws, w)
	}

	out := make(Averages, len(groups))
	for key, s := range groups {
		if len(s.xs) == 0 {
			out[key] = NotAvailable
			continue
		}
		out[key] = Available(stat.Mean(s.xs, s.ws))
	}
	return out
}
