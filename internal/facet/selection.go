// Package facet is the filter and aggregation core shared by every dashboard
// page: multi-facet filtering, dependent option narrowing and group-by
// aggregation over an in-memory dataframe. Everything here is a pure function
// of its arguments; session state lives in package session.
package facet

import (
	"encoding/json"
	"sort"

	"marketlens/domain/core"
	"marketlens/domain/dataframe"
)

type valueSet map[dataframe.Value]struct{}

// Selection maps facet names to accepted values. A facet that is absent or
// has an empty set accepts everything. Selections are immutable: every
// modifier returns a new Selection and leaves the receiver untouched.
type Selection struct {
	facets map[string]valueSet
}

// NewSelection returns the unrestricted selection
func NewSelection() Selection {
	return Selection{}
}

// SelectionOf builds a selection from a plain facet -> values mapping
func SelectionOf(m map[string][]dataframe.Value) Selection {
	s := NewSelection()
	for facet, values := range m {
		s = s.With(facet, values...)
	}
	return s
}

func (s Selection) clone() Selection {
	out := Selection{facets: make(map[string]valueSet, len(s.facets)+1)}
	for facet, set := range s.facets {
		out.facets[facet] = set
	}
	return out
}

// With replaces the accepted set for facet. Passing no values clears the
// restriction.
func (s Selection) With(facet string, values ...dataframe.Value) Selection {
	out := s.clone()
	set := make(valueSet, len(values))
	for _, v := range values {
		if v.IsValid() {
			set[v] = struct{}{}
		}
	}
	if len(set) == 0 {
		delete(out.facets, facet)
	} else {
		out.facets[facet] = set
	}
	return out
}

// Add unions values into the accepted set for facet
func (s Selection) Add(facet string, values ...dataframe.Value) Selection {
	merged := append(s.Values(facet), values...)
	return s.With(facet, merged...)
}

// Without drops any restriction on facet
func (s Selection) Without(facet string) Selection {
	if _, ok := s.facets[facet]; !ok {
		return s
	}
	out := s.clone()
	delete(out.facets, facet)
	return out
}

// Restrict keeps only the values of facet that are in allowed. Returns the
// new selection and the values that were dropped, in sorted order.
func (s Selection) Restrict(facet string, allowed []dataframe.Value) (Selection, []dataframe.Value) {
	set, ok := s.facets[facet]
	if !ok {
		return s, nil
	}
	keep := make(map[dataframe.Value]struct{}, len(allowed))
	for _, v := range allowed {
		keep[v] = struct{}{}
	}

	var kept, dropped []dataframe.Value
	for v := range set {
		if _, ok := keep[v]; ok {
			kept = append(kept, v)
		} else {
			dropped = append(dropped, v)
		}
	}
	if len(dropped) == 0 {
		return s, nil
	}
	sortValues(dropped)
	if len(kept) == 0 {
		return s.Without(facet), dropped
	}
	return s.With(facet, kept...), dropped
}

// Values returns the accepted values for facet, sorted
func (s Selection) Values(facet string) []dataframe.Value {
	set := s.facets[facet]
	if len(set) == 0 {
		return nil
	}
	return dataframe.SortedValues(set)
}

// Contains reports whether v is explicitly selected for facet
func (s Selection) Contains(facet string, v dataframe.Value) bool {
	_, ok := s.facets[facet][v]
	return ok
}

// IsActive reports whether facet currently restricts anything
func (s Selection) IsActive(facet string) bool {
	return len(s.facets[facet]) > 0
}

// Active lists the restricting facets in sorted order
func (s Selection) Active() []string {
	names := make([]string, 0, len(s.facets))
	for facet, set := range s.facets {
		if len(set) > 0 {
			names = append(names, facet)
		}
	}
	sort.Strings(names)
	return names
}

// IsEmpty reports whether the selection accepts every record
func (s Selection) IsEmpty() bool {
	return len(s.Active()) == 0
}

// Equal compares two selections by content
func (s Selection) Equal(o Selection) bool {
	a, b := s.Active(), o.Active()
	if len(a) != len(b) {
		return false
	}
	for i, facet := range a {
		if facet != b[i] || len(s.facets[facet]) != len(o.facets[facet]) {
			return false
		}
		for v := range s.facets[facet] {
			if !o.Contains(facet, v) {
				return false
			}
		}
	}
	return true
}

// Map returns the selection as facet -> sorted values
func (s Selection) Map() map[string][]dataframe.Value {
	out := make(map[string][]dataframe.Value, len(s.facets))
	for _, facet := range s.Active() {
		out[facet] = s.Values(facet)
	}
	return out
}

// Hash fingerprints the selection content
func (s Selection) Hash() core.SelectionHash {
	rendered := make(map[string][]string, len(s.facets))
	for facet, values := range s.Map() {
		for _, v := range values {
			rendered[facet] = append(rendered[facet], v.Kind.String()+":"+v.String())
		}
	}
	return core.ComputeSelectionHash(rendered)
}

func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	var m map[string][]dataframe.Value
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*s = SelectionOf(m)
	return nil
}

// Validate checks that every active facet is a facet of schema
func (s Selection) Validate(schema *dataframe.Schema) error {
	for _, facet := range s.Active() {
		if err := schema.CheckFacet(facet); err != nil {
			return err
		}
		f, _ := schema.Field(facet)
		for v := range s.facets[facet] {
			if v.Kind != f.Kind {
				return core.NewSelectionError(facet, "value "+v.String()+" is a "+v.Kind.String()+", facet holds "+f.Kind.String())
			}
		}
	}
	return nil
}

func sortValues(values []dataframe.Value) {
	sort.Slice(values, func(i, j int) bool { return dataframe.Compare(values[i], values[j]) < 0 })
}
