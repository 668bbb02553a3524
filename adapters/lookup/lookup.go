// Package lookup loads static dependency tables (brand -> diseases and the
// like) from YAML files.
package lookup

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"marketlens/domain/core"
	"marketlens/ports"
)

// document is the file layout. The brands shorthand declares a
// disease -> brand table without naming the facets.
type document struct {
	Lookups []ports.LookupTable `yaml:"lookups"`
	Brands  map[string][]string `yaml:"brands"`
}

// FileProvider reads lookup tables from one YAML file
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider for path
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// LoadLookups implements ports.LookupProvider
func (p *FileProvider) LoadLookups(ctx context.Context) ([]ports.LookupTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewNotFoundError("lookup file", p.path)
		}
		return nil, fmt.Errorf("failed to read lookup file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a lookup document
func Parse(data []byte) ([]ports.LookupTable, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse lookup YAML: %w", err)
	}

	tables := doc.Lookups
	if len(doc.Brands) > 0 {
		tables = append(tables, ports.LookupTable{Independent: "disease", Dependent: "brand", Entries: doc.Brands})
	}

	seen := make(map[string]bool)
	for i := range tables {
		t := &tables[i]
		t.Independent = strings.TrimSpace(t.Independent)
		t.Dependent = strings.TrimSpace(t.Dependent)
		if t.Independent == "" || t.Dependent == "" {
			return nil, fmt.Errorf("%w: lookup %d must name independent and dependent facets", core.ErrUnknownDependency, i)
		}
		if seen[t.Dependent] {
			return nil, fmt.Errorf("%w: facet %s has more than one lookup table", core.ErrUnknownDependency, t.Dependent)
		}
		seen[t.Dependent] = true
		t.Entries = normalize(t.Entries)
	}
	return tables, nil
}

// normalize trims names and removes duplicate and empty owners
func normalize(entries map[string][]string) map[string][]string {
	out := make(map[string][]string, len(entries))
	for key, owners := range entries {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		set := make(map[string]struct{}, len(owners))
		for _, owner := range owners {
			if owner = strings.TrimSpace(owner); owner != "" {
				set[owner] = struct{}{}
			}
		}
		list := make([]string, 0, len(set))
		for owner := range set {
			list = append(list, owner)
		}
		sort.Strings(list)
		out[key] = list
	}
	return out
}
