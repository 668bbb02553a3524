package dataframe

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"marketlens/domain/core"
)

// Shape names a dataframe variant. Each page of the dashboard reads one shape.
type Shape string

const (
	ShapeEpidemiology Shape = "epidemiology"
	ShapePricing      Shape = "pricing"
	ShapeProcurement  Shape = "procurement"
	ShapeCustom       Shape = "custom"
)

// Role says whether a field is grouped/filtered on or aggregated
type Role uint8

const (
	RoleFacet Role = iota + 1
	RoleMetric
)

func (r Role) String() string {
	switch r {
	case RoleFacet:
		return "facet"
	case RoleMetric:
		return "metric"
	default:
		return "unknown"
	}
}

// Field describes one named column
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Role Role   `json:"role"`
}

// Facet declares a string facet field
func Facet(name string) Field { return Field{Name: name, Kind: KindString, Role: RoleFacet} }

// NumericFacet declares a numeric facet field such as year
func NumericFacet(name string) Field { return Field{Name: name, Kind: KindNumber, Role: RoleFacet} }

// Metric declares a numeric metric field
func Metric(name string) Field { return Field{Name: name, Kind: KindNumber, Role: RoleMetric} }

// Schema is the fixed field set shared by every record of a dataframe
type Schema struct {
	Shape  Shape
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema. Duplicate field names are a programmer error.
func NewSchema(shape Shape, fields ...Field) *Schema {
	s := &Schema{
		Shape:  shape,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("dataframe: duplicate field %q in schema %s", f.Name, shape))
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// Fields returns the fields in declaration order
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field looks up a field by name
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether the schema defines name
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns all field names in declaration order
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Facets returns the facet field names
func (s *Schema) Facets() []string {
	return s.namesWithRole(RoleFacet)
}

// Metrics returns the metric field names
func (s *Schema) Metrics() []string {
	return s.namesWithRole(RoleMetric)
}

func (s *Schema) namesWithRole(role Role) []string {
	var names []string
	for _, f := range s.fields {
		if f.Role == role {
			names = append(names, f.Name)
		}
	}
	return names
}

// CheckFacet returns an error unless name is a facet of the schema
func (s *Schema) CheckFacet(name string) error {
	f, ok := s.Field(name)
	if !ok || f.Role != RoleFacet {
		return core.NewUnknownFacetError(string(s.Shape), name)
	}
	return nil
}

// CheckField returns an error unless the schema defines name
func (s *Schema) CheckField(name string) error {
	if !s.Has(name) {
		return core.NewUnknownFieldError(string(s.Shape), name)
	}
	return nil
}

// Coerce parses a raw cell into a Value of the field's kind. Empty cells
// return the invalid Value and no error: the field is simply missing.
func (s *Schema) Coerce(name, raw string) (Value, error) {
	f, ok := s.Field(name)
	if !ok {
		return Value{}, core.NewUnknownFieldError(string(s.Shape), name)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Value{}, nil
	}
	if f.Kind == KindString {
		return String(raw), nil
	}

	cleaned := strings.NewReplacer(",", "", "$", "", "%", "").Replace(raw)
	num, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return Value{}, core.NewSchemaMismatchError(name, fmt.Sprintf("%q is not numeric", raw))
	}
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return Value{}, core.NewSchemaMismatchError(name, fmt.Sprintf("%q is not a finite number", raw))
	}
	return Number(num), nil
}

// Built-in shapes used by the dashboard pages
var (
	EpidemiologySchema = NewSchema(ShapeEpidemiology,
		NumericFacet("year"),
		Facet("region"),
		Facet("country"),
		Facet("disease"),
		Metric("prevalence"),
		Metric("incidence"),
		Metric("patients"),
	)

	PricingSchema = NewSchema(ShapePricing,
		NumericFacet("year"),
		Facet("region"),
		Facet("country"),
		Facet("disease"),
		Facet("brand"),
		Facet("dosageForm"),
		Facet("route"),
		Metric("price"),
		Metric("revenue"),
		Metric("marketValueUsd"),
		Metric("units"),
	)

	ProcurementSchema = NewSchema(ShapeProcurement,
		NumericFacet("year"),
		Facet("region"),
		Facet("country"),
		Facet("brand"),
		Facet("supplier"),
		Metric("volume"),
		Metric("contractValueUsd"),
	)
)

// SchemaFor returns the built-in schema for a shape name
func SchemaFor(shape string) (*Schema, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(shape))) {
	case ShapeEpidemiology:
		return EpidemiologySchema, nil
	case ShapePricing:
		return PricingSchema, nil
	case ShapeProcurement:
		return ProcurementSchema, nil
	default:
		return nil, fmt.Errorf("%w: schema %q", core.ErrUnsupportedFormat, shape)
	}
}

// InferSchema builds a custom schema from column headers and sample rows:
// a column is a metric when every non-empty sample parses as a number,
// except "year" which is always a numeric facet.
func InferSchema(headers []string, rows []map[string]string) *Schema {
	fields := make([]Field, 0, len(headers))
	for _, h := range headers {
		if strings.EqualFold(h, "year") {
			fields = append(fields, NumericFacet(h))
			continue
		}
		numeric, seen := true, false
		for _, row := range rows {
			cell := strings.TrimSpace(row[h])
			if cell == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64); err != nil {
				numeric = false
				break
			}
		}
		if numeric && seen {
			fields = append(fields, Metric(h))
		} else {
			fields = append(fields, Facet(h))
		}
	}
	return NewSchema(ShapeCustom, fields...)
}
