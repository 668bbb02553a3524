package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"marketlens/adapters/excel"
	"marketlens/adapters/lookup"
	"marketlens/adapters/sqlstore"
	"marketlens/domain/dataframe"
	"marketlens/internal"
	"marketlens/internal/config"
	"marketlens/internal/errors"
	"marketlens/internal/facet"
	"marketlens/internal/session"
	"marketlens/ports"
)

// Runtime is everything a front end needs to serve one dashboard
type Runtime struct {
	Config  *config.Config
	Session *session.Session
	Service *DashboardService
	Store   *sqlstore.Store // nil without a database
}

// Close releases the database, if any
func (r *Runtime) Close() error {
	if r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// Sources are the providers a session is assembled from
type Sources struct {
	Frame   ports.FrameProvider
	Lookups ports.LookupProvider // optional
}

// Load reads the dataframe and lookup tables concurrently and builds the
// facet dependencies: derived pairs first, then one per lookup table.
func Load(ctx context.Context, src Sources, pairs []config.DependencyPair) (*dataframe.Dataframe, []facet.Dependency, error) {
	var (
		frame  *dataframe.Dataframe
		tables []ports.LookupTable
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		df, err := src.Frame.LoadFrame(gctx)
		if err != nil {
			return errors.LoadFailed("dataframe", err)
		}
		frame = df
		return nil
	})
	if src.Lookups != nil {
		g.Go(func() error {
			t, err := src.Lookups.LoadLookups(gctx)
			if err != nil {
				return errors.LoadFailed("lookup tables", err)
			}
			tables = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	deps := make([]facet.Dependency, 0, len(pairs)+len(tables))
	for _, p := range pairs {
		deps = append(deps, facet.Derived(p.Independent, p.Dependent))
	}
	for _, t := range tables {
		deps = append(deps, facet.Lookup(t.Independent, t.Dependent, facet.LookupTable(t.Entries)))
	}
	return frame, deps, nil
}

// Bootstrap wires a runtime from configuration
func Bootstrap(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*Runtime, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	rt := &Runtime{Config: cfg}

	var schema *dataframe.Schema
	if cfg.Data.Schema != "infer" {
		s, err := dataframe.SchemaFor(cfg.Data.Schema)
		if err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, err)
		}
		schema = s
	}

	if cfg.Database.Driver != "" && cfg.Database.URL != "" {
		store, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.URL, logger)
		if err != nil {
			return nil, errors.WithCode(errors.CodeDatabaseError, err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, errors.WithCode(errors.CodeDatabaseError, err)
		}
		rt.Store = store
	}

	src := Sources{}
	if cfg.UsesDatabase() {
		src.Frame = rt.Store.Table(cfg.Data.Table, schema)
	} else {
		src.Frame = excel.NewDataReader(cfg.Data.File,
			excel.WithSheet(cfg.Data.Sheet),
			excel.WithSchema(schema),
			excel.WithLogger(logger))
	}
	if cfg.Data.LookupFile != "" {
		src.Lookups = lookup.NewFileProvider(cfg.Data.LookupFile)
	}

	frame, deps, err := Load(ctx, src, cfg.Data.Dependencies)
	if err != nil {
		rt.Close()
		return nil, err
	}

	sess, err := session.New(frame, deps,
		session.WithMemoSize(cfg.Engine.MemoSize),
		session.WithStrict(cfg.Engine.StrictFields),
		session.WithLogger(logger))
	if err != nil {
		rt.Close()
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	rt.Session = sess

	sinks, err := Sinks(cfg.Export.Dir, rt.Store, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = NewDashboardService(sess, sinks, cfg.Engine.WeightFloor, logger)

	logger.Info("[Bootstrap] session %s: %d rows, %d dependencies", sess.ID, frame.Len(), len(deps))
	return rt, nil
}

// Sinks builds the file sinks under dir plus a "db" sink when store is set
func Sinks(dir string, store *sqlstore.Store, logger *internal.Logger) (map[string]ports.AggregationSink, error) {
	sinks := make(map[string]ports.AggregationSink)
	for _, format := range []string{"xlsx", "csv"} {
		w, err := excel.NewWriter(dir, format, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s writer: %w", format, err)
		}
		sinks[format] = w
	}
	if store != nil {
		sinks["db"] = store
	}
	return sinks, nil
}
