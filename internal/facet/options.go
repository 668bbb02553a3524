package facet

import (
	"fmt"
	"sort"

	"marketlens/domain/core"
	"marketlens/domain/dataframe"
)

// DependencyKind says where a dependent facet's valid values come from
type DependencyKind uint8

const (
	// DerivedFromData narrows B to the values co-occurring with selected A
	// values in the dataframe rows (country depends on region).
	DerivedFromData DependencyKind = iota + 1
	// StaticLookup narrows B through a fixed many-to-many table that is not
	// derived from the rows (brand depends on disease).
	StaticLookup
)

func (k DependencyKind) String() string {
	switch k {
	case DerivedFromData:
		return "derived"
	case StaticLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// LookupTable maps each dependent value to the independent values it belongs
// to, e.g. brand -> diseases the brand treats.
type LookupTable map[string][]string

// Dependency ties a dependent facet to an independent one
type Dependency struct {
	Independent string
	Dependent   string
	Kind        DependencyKind
	Table       LookupTable
}

// Derived declares a dependency resolved from the dataframe rows
func Derived(independent, dependent string) Dependency {
	return Dependency{Independent: independent, Dependent: dependent, Kind: DerivedFromData}
}

// Lookup declares a dependency resolved through a static table
func Lookup(independent, dependent string, table LookupTable) Dependency {
	return Dependency{Independent: independent, Dependent: dependent, Kind: StaticLookup, Table: table}
}

func (d Dependency) String() string {
	return fmt.Sprintf("%s->%s(%s)", d.Independent, d.Dependent, d.Kind)
}

// Validate checks both facets against schema
func (d Dependency) Validate(schema *dataframe.Schema) error {
	if err := schema.CheckFacet(d.Independent); err != nil {
		return err
	}
	if err := schema.CheckFacet(d.Dependent); err != nil {
		return err
	}
	if d.Kind != DerivedFromData && d.Kind != StaticLookup {
		return fmt.Errorf("%w: %s", core.ErrUnknownDependency, d)
	}
	return nil
}

// OptionGroup is one header of a grouped picker: an independent value and the
// dependent values reachable from it
type OptionGroup struct {
	Group dataframe.Value   `json:"group"`
	Items []dataframe.Value `json:"items"`
}

// DerivedOptions returns the sorted distinct dependent values found in rows
// whose independent value is selected. With no independent value selected,
// every dependent value present in the rows is reachable.
func DerivedOptions(records []dataframe.Record, independent, dependent string, selection Selection) []dataframe.Value {
	accepted := selection.facets[independent]
	found := make(map[dataframe.Value]struct{})
	for _, rec := range records {
		b, ok := rec.Get(dependent)
		if !ok {
			continue
		}
		if len(accepted) > 0 {
			a, ok := rec.Get(independent)
			if !ok {
				continue
			}
			if _, ok := accepted[a]; !ok {
				continue
			}
		}
		found[b] = struct{}{}
	}
	return dataframe.SortedValues(found)
}

// LookupOptions returns the sorted union of table keys whose entry contains
// any selected independent value. With nothing selected, every key is
// reachable.
func LookupOptions(table LookupTable, independent string, selection Selection) []dataframe.Value {
	accepted := selection.facets[independent]
	found := make(map[dataframe.Value]struct{})
	for key, owners := range table {
		if len(accepted) == 0 {
			found[dataframe.String(key)] = struct{}{}
			continue
		}
		for _, owner := range owners {
			if _, ok := accepted[dataframe.String(owner)]; ok {
				found[dataframe.String(key)] = struct{}{}
				break
			}
		}
	}
	return dataframe.SortedValues(found)
}

// ResolveOptions returns the valid values of dep.Dependent under selection
func ResolveOptions(records []dataframe.Record, dep Dependency, selection Selection) []dataframe.Value {
	if dep.Kind == StaticLookup {
		return LookupOptions(dep.Table, dep.Independent, selection)
	}
	return DerivedOptions(records, dep.Independent, dep.Dependent, selection)
}

// GroupByIndependent groups the reachable dependent values under their
// independent value, sorted by group. With nothing selected every
// independent value becomes a group; otherwise only selected values that
// reach at least one dependent value do.
func GroupByIndependent(records []dataframe.Record, dep Dependency, selection Selection) []OptionGroup {
	accepted := selection.facets[dep.Independent]
	groups := make(map[dataframe.Value]map[dataframe.Value]struct{})

	add := func(a, b dataframe.Value) {
		if len(accepted) > 0 {
			if _, ok := accepted[a]; !ok {
				return
			}
		}
		items, ok := groups[a]
		if !ok {
			items = make(map[dataframe.Value]struct{})
			groups[a] = items
		}
		items[b] = struct{}{}
	}

	if dep.Kind == StaticLookup {
		for key, owners := range dep.Table {
			for _, owner := range owners {
				add(dataframe.String(owner), dataframe.String(key))
			}
		}
	} else {
		for _, rec := range records {
			a, okA := rec.Get(dep.Independent)
			b, okB := rec.Get(dep.Dependent)
			if okA && okB {
				add(a, b)
			}
		}
	}

	out := make([]OptionGroup, 0, len(groups))
	for a, items := range groups {
		out = append(out, OptionGroup{Group: a, Items: dataframe.SortedValues(items)})
	}
	sort.Slice(out, func(i, j int) bool { return dataframe.Compare(out[i].Group, out[j].Group) < 0 })
	return out
}

// Pruned records a dependent value removed by Prune
type Pruned struct {
	Facet  string            `json:"facet"`
	Values []dataframe.Value `json:"values"`
}

// Prune drops dependent selections that are no longer reachable from their
// independent facet. Dependencies are re-applied until nothing changes so
// chains such as region -> country -> site settle in one call.
func Prune(records []dataframe.Record, deps []Dependency, selection Selection) (Selection, []Pruned) {
	var pruned []Pruned
	for pass := 0; pass <= len(deps); pass++ {
		changed := false
		for _, dep := range deps {
			if !selection.IsActive(dep.Dependent) {
				continue
			}
			valid := ResolveOptions(records, dep, selection)
			var dropped []dataframe.Value
			selection, dropped = selection.Restrict(dep.Dependent, valid)
			if len(dropped) > 0 {
				changed = true
				pruned = append(pruned, Pruned{Facet: dep.Dependent, Values: dropped})
			}
		}
		if !changed {
			break
		}
	}
	return selection, pruned
}

// Dependents returns the dependencies whose independent facet is facet
func Dependents(deps []Dependency, facet string) []Dependency {
	var out []Dependency
	for _, dep := range deps {
		if dep.Independent == facet {
			out = append(out, dep)
		}
	}
	return out
}

// DependencyFor returns the dependency that narrows facet, if any
func DependencyFor(deps []Dependency, facet string) (Dependency, bool) {
	for _, dep := range deps {
		if dep.Dependent == facet {
			return dep, true
		}
	}
	return Dependency{}, false
}
