package ports

import (
	"context"

	"marketlens/domain/dataframe"
	"marketlens/domain/export"
)

// FrameProvider supplies the session dataframe. Providers own schema
// coercion: the core assumes well-formed rows.
type FrameProvider interface {
	LoadFrame(ctx context.Context) (*dataframe.Dataframe, error)
}

// LookupTable is a static many-to-many relation such as brand -> diseases,
// keyed by dependent value
type LookupTable struct {
	Independent string              `yaml:"independent" json:"independent"`
	Dependent   string              `yaml:"dependent" json:"dependent"`
	Entries     map[string][]string `yaml:"entries" json:"entries"`
}

// LookupProvider supplies static dependency tables
type LookupProvider interface {
	LoadLookups(ctx context.Context) ([]LookupTable, error)
}

// AggregationSink persists an export and returns where it went: a file
// path or a stored id
type AggregationSink interface {
	Write(ctx context.Context, exp *export.Export) (string, error)
}

// ExportRepository reads back exports saved to a database
type ExportRepository interface {
	AggregationSink
	GetExport(ctx context.Context, id string) (*export.Export, error)
	ListExports(ctx context.Context, limit int) ([]*export.Export, error)
}
