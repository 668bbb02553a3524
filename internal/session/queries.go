package session

import (
	"fmt"
	"strconv"
	"strings"

	"marketlens/domain/core"
	"marketlens/domain/dataframe"
	"marketlens/internal/facet"
	"marketlens/internal/profiling"
)

func argKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}

// View answers queries against one pinned snapshot. Every result read
// through the same View describes the same selection and version, however
// the session changes meanwhile.
type View struct {
	s    *Session
	snap *Snapshot
}

// At pins the current snapshot
func (s *Session) At() *View {
	return &View{s: s, snap: s.state.Load()}
}

// Snapshot returns the selection and version the view reads
func (v *View) Snapshot() Snapshot { return *v.snap }

// Filtered returns the dataframe restricted to the view's selection
func (v *View) Filtered() (*dataframe.Dataframe, error) {
	return memoize(v.s, memoKey{v.snap.Version, "filter", ""}, func() (*dataframe.Dataframe, error) {
		return v.s.engine.Filter(v.snap.Selection)
	})
}

func (v *View) rows() ([]dataframe.Record, error) {
	df, err := v.Filtered()
	if err != nil {
		return nil, err
	}
	return df.Rows(), nil
}

// Options lists the values currently selectable for a facet. Dependent
// facets are narrowed by their independent facet's selection; other facets
// offer every value in the dataframe.
func (v *View) Options(facetName string) ([]dataframe.Value, error) {
	s := v.s
	return memoize(s, memoKey{v.snap.Version, "options", facetName}, func() ([]dataframe.Value, error) {
		if dep, ok := facet.DependencyFor(s.deps, facetName); ok {
			return s.engine.Options(dep, v.snap.Selection)
		}
		if err := s.Frame().Schema().CheckFacet(facetName); err != nil {
			return nil, err
		}
		return s.Frame().Distinct(facetName), nil
	})
}

// GroupedOptions groups a dependent facet's options under the values of its
// independent facet
func (v *View) GroupedOptions(facetName string) ([]facet.OptionGroup, error) {
	dep, ok := facet.DependencyFor(v.s.deps, facetName)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no independent facet", core.ErrUnknownDependency, facetName)
	}
	return memoize(v.s, memoKey{v.snap.Version, "grouped", facetName}, func() ([]facet.OptionGroup, error) {
		return v.s.engine.GroupedOptions(dep, v.snap.Selection)
	})
}

// SumBy totals metric per group over the filtered rows
func (v *View) SumBy(groupFacet, metric string) (facet.Aggregation, error) {
	return memoize(v.s, memoKey{v.snap.Version, "sum", argKey(groupFacet, metric)}, func() (facet.Aggregation, error) {
		rows, err := v.rows()
		if err != nil {
			return nil, err
		}
		return v.s.engine.SumBy(rows, groupFacet, metric)
	})
}

// SumByKeys totals metric per tuple of facets over the filtered rows
func (v *View) SumByKeys(facets []string, metric string) (facet.Aggregation, error) {
	return memoize(v.s, memoKey{v.snap.Version, "sumkeys", argKey(strings.Join(facets, ","), metric)}, func() (facet.Aggregation, error) {
		rows, err := v.rows()
		if err != nil {
			return nil, err
		}
		return v.s.engine.SumByKeys(rows, facets, metric)
	})
}

// CountBy counts filtered rows per group
func (v *View) CountBy(groupFacet string) (facet.Aggregation, error) {
	return memoize(v.s, memoKey{v.snap.Version, "count", groupFacet}, func() (facet.Aggregation, error) {
		rows, err := v.rows()
		if err != nil {
			return nil, err
		}
		return v.s.engine.CountBy(rows, groupFacet)
	})
}

// AverageBy averages metric per group over the filtered rows
func (v *View) AverageBy(groupFacet, metric string) (facet.Averages, error) {
	return memoize(v.s, memoKey{v.snap.Version, "avg", argKey(groupFacet, metric)}, func() (facet.Averages, error) {
		rows, err := v.rows()
		if err != nil {
			return nil, err
		}
		return v.s.engine.AverageBy(rows, groupFacet, metric)
	})
}

// PercentageBy expresses each group's metric total as a share of the whole
func (v *View) PercentageBy(groupFacet, metric string) (facet.Aggregation, error) {
	sums, err := v.SumBy(groupFacet, metric)
	if err != nil {
		return nil, err
	}
	return facet.PercentageOfTotal(sums), nil
}

// TopN ranks groups by their metric total
func (v *View) TopN(groupFacet, metric string, n int, dir facet.Direction) (facet.Ranked, error) {
	sums, err := v.SumBy(groupFacet, metric)
	if err != nil {
		return nil, err
	}
	return facet.TopN(sums, n, dir), nil
}

// WeightedAverageBy is not memoized: weight functions are not comparable.
// weightFields names the fields weight reads so they can be checked.
func (v *View) WeightedAverageBy(groupFacet, metric string, weight facet.WeightFunc, weightFields []string, opts ...facet.WeightOption) (facet.Averages, error) {
	rows, err := v.rows()
	if err != nil {
		return nil, err
	}
	return v.s.engine.WeightedAverageBy(rows, groupFacet, metric, weight, weightFields, opts...)
}

// Pivot cross-tabulates metric over the filtered rows
func (v *View) Pivot(rowFacet, colFacet, metric string) (facet.PivotTable, error) {
	return memoize(v.s, memoKey{v.snap.Version, "pivot", argKey(rowFacet, colFacet, metric)}, func() (facet.PivotTable, error) {
		rows, err := v.rows()
		if err != nil {
			return facet.PivotTable{}, err
		}
		return v.s.engine.Pivot(rows, rowFacet, colFacet, metric)
	})
}

// GrowthBy computes per group CAGR between two years over the filtered rows
func (v *View) GrowthBy(groupFacet, metric string, fromYear, toYear int) (facet.Averages, error) {
	key := argKey(groupFacet, metric, strconv.Itoa(fromYear), strconv.Itoa(toYear))
	return memoize(v.s, memoKey{v.snap.Version, "growth", key}, func() (facet.Averages, error) {
		rows, err := v.rows()
		if err != nil {
			return nil, err
		}
		return v.s.engine.GrowthBy(rows, groupFacet, metric, fromYear, toYear)
	})
}

// Summarize describes metric over the filtered rows
func (v *View) Summarize(metric string) (facet.Summary, error) {
	rows, err := v.rows()
	if err != nil {
		return facet.Summary{}, err
	}
	return v.s.engine.Summarize(rows, metric)
}

// Profile describes every column of the filtered rows
func (v *View) Profile() ([]profiling.ColumnProfile, error) {
	return memoize(v.s, memoKey{v.snap.Version, "profile", ""}, func() ([]profiling.ColumnProfile, error) {
		df, err := v.Filtered()
		if err != nil {
			return nil, err
		}
		return profiling.Profile(df), nil
	})
}

// The session-level queries read whatever snapshot is current at call time.

func (s *Session) Filtered() (*dataframe.Dataframe, error) { return s.At().Filtered() }

func (s *Session) Options(facetName string) ([]dataframe.Value, error) {
	return s.At().Options(facetName)
}

func (s *Session) GroupedOptions(facetName string) ([]facet.OptionGroup, error) {
	return s.At().GroupedOptions(facetName)
}

func (s *Session) SumBy(groupFacet, metric string) (facet.Aggregation, error) {
	return s.At().SumBy(groupFacet, metric)
}

func (s *Session) SumByKeys(facets []string, metric string) (facet.Aggregation, error) {
	return s.At().SumByKeys(facets, metric)
}

func (s *Session) CountBy(groupFacet string) (facet.Aggregation, error) {
	return s.At().CountBy(groupFacet)
}

func (s *Session) AverageBy(groupFacet, metric string) (facet.Averages, error) {
	return s.At().AverageBy(groupFacet, metric)
}

func (s *Session) PercentageBy(groupFacet, metric string) (facet.Aggregation, error) {
	return s.At().PercentageBy(groupFacet, metric)
}

func (s *Session) TopN(groupFacet, metric string, n int, dir facet.Direction) (facet.Ranked, error) {
	return s.At().TopN(groupFacet, metric, n, dir)
}

func (s *Session) WeightedAverageBy(groupFacet, metric string, weight facet.WeightFunc, weightFields []string, opts ...facet.WeightOption) (facet.Averages, error) {
	return s.At().WeightedAverageBy(groupFacet, metric, weight, weightFields, opts...)
}

func (s *Session) Pivot(rowFacet, colFacet, metric string) (facet.PivotTable, error) {
	return s.At().Pivot(rowFacet, colFacet, metric)
}

func (s *Session) GrowthBy(groupFacet, metric string, fromYear, toYear int) (facet.Averages, error) {
	return s.At().GrowthBy(groupFacet, metric, fromYear, toYear)
}

func (s *Session) Summarize(metric string) (facet.Summary, error) { return s.At().Summarize(metric) }

func (s *Session) Profile() ([]profiling.ColumnProfile, error) { return s.At().Profile() }
