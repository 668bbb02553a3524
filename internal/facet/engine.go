package facet

import (
	"errors"

	"marketlens/domain/dataframe"
	"marketlens/internal"
)

// Engine runs the core operations against one dataframe and checks every
// field name against its schema first. Strict engines fail on an unknown
// name; lenient engines log it and run anyway, so an unknown facet matches
// nothing and an unknown metric contributes zero.
type Engine struct {
	frame  *dataframe.Dataframe
	strict bool
	logger *internal.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithStrict toggles failing on unknown field names
func WithStrict(strict bool) EngineOption {
	return func(e *Engine) { e.strict = strict }
}

// WithLogger sets the logger used for lenient field warnings
func WithLogger(logger *internal.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine over frame
func NewEngine(frame *dataframe.Dataframe, opts ...EngineOption) *Engine {
	e := &Engine{frame: frame, logger: internal.DefaultLogger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Frame returns the dataframe the engine reads
func (e *Engine) Frame() *dataframe.Dataframe { return e.frame }

// Strict reports whether unknown names are errors
func (e *Engine) Strict() bool { return e.strict }

// Check validates grouping facets and any other referenced fields against
// the schema, joining every failure into one error
func (e *Engine) Check(facets []string, fields ...string) error {
	schema := e.frame.Schema()
	var errs []error
	for _, f := range facets {
		if err := schema.CheckFacet(f); err != nil {
			errs = append(errs, err)
		}
	}
	for _, f := range fields {
		if err := schema.CheckField(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) guard(facets []string, fields ...string) error {
	err := e.Check(facets, fields...)
	if err == nil {
		return nil
	}
	if e.strict {
		return err
	}
	e.logger.Warn("[Engine] %v; continuing with empty contribution", err)
	return nil
}

// Filter applies selection to the engine's dataframe
func (e *Engine) Filter(selection Selection) (*dataframe.Dataframe, error) {
	if err := e.guard(selection.Active()); err != nil {
		return nil, err
	}
	return FilterFrame(e.frame, selection), nil
}

// Options resolves the valid values of dep.Dependent
func (e *Engine) Options(dep Dependency, selection Selection) ([]dataframe.Value, error) {
	if err := e.guard([]string{dep.Independent, dep.Dependent}); err != nil {
		return nil, err
	}
	return ResolveOptions(e.frame.Rows(), dep, selection), nil
}

// GroupedOptions groups the valid values of dep.Dependent by independent value
func (e *Engine) GroupedOptions(dep Dependency, selection Selection) ([]OptionGroup, error) {
	if err := e.guard([]string{dep.Independent, dep.Dependent}); err != nil {
		return nil, err
	}
	return GroupByIndependent(e.frame.Rows(), dep, selection), nil
}

func (e *Engine) SumBy(records []dataframe.Record, groupFacet, metric string) (Aggregation, error) {
	if err := e.guard([]string{groupFacet}, metric); err != nil {
		return nil, err
	}
	return SumBy(records, groupFacet, metric), nil
}

func (e *Engine) SumByKeys(records []dataframe.Record, facets []string, metric string) (Aggregation, error) {
	if err := e.guard(facets, metric); err != nil {
		return nil, err
	}
	return SumByKeys(records, facets, metric), nil
}

func (e *Engine) CountBy(records []dataframe.Record, groupFacet string) (Aggregation, error) {
	if err := e.guard([]string{groupFacet}); err != nil {
		return nil, err
	}
	return CountBy(records, groupFacet), nil
}

func (e *Engine) AverageBy(records []dataframe.Record, groupFacet, metric string) (Averages, error) {
	if err := e.guard([]string{groupFacet}, metric); err != nil {
		return nil, err
	}
	return AverageBy(records, groupFacet, metric), nil
}

// WeightedAverageBy checks weightFields too, the fields the weight function
// reads
func (e *Engine) WeightedAverageBy(records []dataframe.Record, groupFacet, metric string, weight WeightFunc, weightFields []string, opts ...WeightOption) (Averages, error) {
	if err := e.guard([]string{groupFacet}, append([]string{metric}, weightFields...)...); err != nil {
		return nil, err
	}
	return WeightedAverageBy(records, groupFacet, metric, weight, opts...), nil
}

func (e *Engine) PercentageBy(records []dataframe.Record, groupFacet, metric string) (Aggregation, error) {
	sums, err := e.SumBy(records, groupFacet, metric)
	if err != nil {
		return nil, err
	}
	return PercentageOfTotal(sums), nil
}

func (e *Engine) TopN(records []dataframe.Record, groupFacet, metric string, n int, dir Direction) (Ranked, error) {
	sums, err := e.SumBy(records, groupFacet, metric)
	if err != nil {
		return nil, err
	}
	return TopN(sums, n, dir), nil
}

func (e *Engine) Pivot(records []dataframe.Record, rowFacet, colFacet, metric string) (PivotTable, error) {
	if err := e.guard([]string{rowFacet, colFacet}, metric); err != nil {
		return PivotTable{}, err
	}
	return Pivot(records, rowFacet, colFacet, metric), nil
}

func (e *Engine) GrowthBy(records []dataframe.Record, groupFacet, metric string, fromYear, toYear int) (Averages, error) {
	if err := e.guard([]string{groupFacet, "year"}, metric); err != nil {
		return nil, err
	}
	return GrowthBy(records, groupFacet, metric, fromYear, toYear), nil
}

func (e *Engine) Summarize(records []dataframe.Record, metric string) (Summary, error) {
	if err := e.guard(nil, metric); err != nil {
		return Summary{}, err
	}
	return Summarize(records, metric), nil
}
