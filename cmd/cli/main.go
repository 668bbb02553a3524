package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"marketlens/adapters/excel"
	"marketlens/adapters/lookup"
	"marketlens/app"
	"marketlens/domain/dataframe"
	"marketlens/domain/export"
	"marketlens/internal"
	"marketlens/internal/config"
	"marketlens/internal/facet"
	"marketlens/internal/session"
)

// globalOptions are the flags every subcommand shares
type globalOptions struct {
	data     string
	sheet    string
	schema   string
	lookup   string
	deps     string
	selectJS string
	strict   bool
	logLevel string
	out      string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "marketlens-cli",
		Short:         "Filter and aggregate market analytics tables from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.data, "data", "", "Excel (.xlsx) or CSV file to load")
	flags.StringVar(&opts.sheet, "sheet", "", "Sheet to read (default: first sheet)")
	flags.StringVar(&opts.schema, "schema", "infer", "Schema: epidemiology|pricing|procurement|infer")
	flags.StringVar(&opts.lookup, "lookup", "", "YAML file with static lookup tables")
	flags.StringVar(&opts.deps, "deps", "region:country", "Derived dependencies as independent:dependent pairs")
	flags.StringVar(&opts.selectJS, "select", "", `Selection as JSON, e.g. '{"region":["APAC"]}'`)
	flags.BoolVar(&opts.strict, "strict", false, "Fail on unknown fields instead of warning")
	flags.StringVar(&opts.logLevel, "log-level", "WARN", "Log level: ERROR|WARN|INFO|DEBUG|TRACE")
	flags.StringVar(&opts.out, "out", "./exports", "Directory for file exports")
	_ = rootCmd.MarkPersistentFlagRequired("data")

	rootCmd.AddCommand(
		newFilterCmd(opts),
		newOptionsCmd(opts),
		newAggregateCmd(opts),
		newTopCmd(opts),
		newPivotCmd(opts),
		newSummaryCmd(opts),
		newProfileCmd(opts),
		newExportCmd(opts),
	)
	return rootCmd
}

// open loads the dataframe and lookups and applies --select
func (o *globalOptions) open(ctx context.Context) (*app.DashboardService, error) {
	logger := internal.NewLoggerTo(os.Stderr, internal.ParseLogLevel(o.logLevel))

	var schema *dataframe.Schema
	if o.schema != "infer" {
		s, err := dataframe.SchemaFor(o.schema)
		if err != nil {
			return nil, err
		}
		schema = s
	}
	pairs, err := config.ParseDependencies(o.deps)
	if err != nil {
		return nil, err
	}
	selection, err := parseSelection(o.selectJS)
	if err != nil {
		return nil, err
	}

	src := app.Sources{Frame: excel.NewDataReader(o.data,
		excel.WithSheet(o.sheet), excel.WithSchema(schema), excel.WithLogger(logger))}
	if o.lookup != "" {
		src.Lookups = lookup.NewFileProvider(o.lookup)
	}
	frame, deps, err := app.Load(ctx, src, pairs)
	if err != nil {
		return nil, err
	}

	sess, err := session.New(frame, deps, session.WithStrict(o.strict), session.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	change, err := sess.Replace(selection)
	if err != nil {
		return nil, err
	}
	for _, p := range change.Pruned {
		logger.Warn("--select: dropped %s values %v", p.Facet, p.Values)
	}

	sinks, err := app.Sinks(o.out, nil, logger)
	if err != nil {
		return nil, err
	}
	return app.NewDashboardService(sess, sinks, facet.DefaultWeightFloor, logger), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFilterCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Print the rows matching --select",
		Long: `Print the rows of the dataframe that match the selection.

Example: marketlens-cli filter --data pricing.xlsx --schema pricing --select '{"region":["EU"]}' --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			df, err := svc.Session().Filtered()
			if err != nil {
				return err
			}
			rows := df.Rows()
			total := len(rows)
			if limit >= 0 && limit < total {
				rows = rows[:limit]
			}
			return printJSON(cmd, map[string]interface{}{"total": total, "rows": rows})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to print (-1 for all)")
	return cmd
}

func newOptionsCmd(opts *globalOptions) *cobra.Command {
	var grouped bool

	cmd := &cobra.Command{
		Use:   "options [facet]",
		Short: "List the values a facet may take under --select",
		Long: `List the valid options of a facet given the current selection.

With --grouped, a dependent facet's options are grouped by independent value.

Example: marketlens-cli options country --data pricing.csv --select '{"region":["APAC"]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			if grouped {
				groups, err := svc.Session().GroupedOptions(args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, groups)
			}
			options, err := svc.Session().Options(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, options)
		},
	}

	cmd.Flags().BoolVar(&grouped, "grouped", false, "Group options by independent facet value")
	return cmd
}

// aggregateFlags binds the request fields shared by aggregate and export
func aggregateFlags(cmd *cobra.Command, req *app.AggregateRequest, dir *string) {
	cmd.Flags().StringVar(&req.Group, "group", "", "Group facet (row facet for pivot)")
	cmd.Flags().StringVar(&req.Column, "col", "", "Column facet for pivot")
	cmd.Flags().StringVar(&req.Metric, "metric", "", "Metric field")
	cmd.Flags().IntVar(&req.N, "n", 10, "Number of groups for top")
	cmd.Flags().StringVar(dir, "dir", "desc", "Sort direction for top: asc|desc")
	cmd.Flags().IntVar(&req.FromYear, "from", 0, "First year for cagr")
	cmd.Flags().IntVar(&req.ToYear, "to", 0, "Last year for cagr")
	cmd.Flags().StringVar(&req.Weight.Kind, "weight", "constant", "Weight for weighted: constant|field|scaled|recency")
	cmd.Flags().StringVar(&req.Weight.Field, "weight-field", "", "Field read by field and scaled weights")
	cmd.Flags().Float64Var(&req.Weight.Divisor, "divisor", 1, "Divisor for scaled weights")
	cmd.Flags().IntVar(&req.Weight.BaseYear, "base-year", 0, "Base year for recency weights")
	cmd.Flags().Float64Var(&req.Weight.Step, "step", 0.1, "Per-year step for recency weights")
}

func finishRequest(req *app.AggregateRequest, opName, dir string) error {
	op, err := export.ParseOp(opName)
	if err != nil {
		return err
	}
	req.Op = op
	req.Direction, err = facet.ParseDirection(dir)
	return err
}

func newAggregateCmd(opts *globalOptions) *cobra.Command {
	var (
		req app.AggregateRequest
		dir string
	)

	cmd := &cobra.Command{
		Use:   "aggregate [sum|count|average|percentage|weighted|top|pivot|cagr]",
		Short: "Aggregate a metric over the selected rows",
		Long: `Aggregate a metric per group over the rows matching the selection.

Example: marketlens-cli aggregate average --data pricing.xlsx --group brand --metric price
         marketlens-cli aggregate weighted --data pricing.xlsx --group region --metric price --weight recency --base-year 2020`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := finishRequest(&req, args[0], dir); err != nil {
				return err
			}
			svc, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.Aggregate(req)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	aggregateFlags(cmd, &req, &dir)
	return cmd
}

func newTopCmd(opts *globalOptions) *cobra.Command {
	var (
		n   int
		dir string
	)

	cmd := &cobra.Command{
		Use:   "top [group] [metric]",
		Short: "Rank groups by a summed metric",
		Long: `Rank groups by the sum of a metric and keep the first n.

Example: marketlens-cli top country revenue --data pricing.csv --n 5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, err := facet.ParseDirection(dir)
			if err != nil {
				return err
			}
			svc, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			ranked, err := svc.Session().TopN(args[0], args[1], n, direction)
			if err != nil {
				return err
			}
			return printJSON(cmd, ranked)
		},
	}

	cmd.Flags().IntVar(&n, "n", 10, "Number of groups to keep")
	cmd.Flags().StringVar(&dir, "dir", "desc", "Sort direction: asc|desc")
	return cmd
}

func newPivotCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pivot [row-facet] [col-facet] [metric]",
		Short: "Cross-tabulate a metric by two facets",
		Long: `Sum a metric by two facets. Only observed combinations are printed.

Example: marketlens-cli pivot dosageForm route revenue --data pricing.csv`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			table, err := svc.Session().Pivot(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printJSON(cmd, table)
		},
	}
	return cmd
}

func newSummaryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary [metric]",
		Short: "Describe a metric over the selected rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := svc.Session().Summarize(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	}
	return cmd
}

func newProfileCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Describe coverage and distribution of every column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			profiles, err := svc.Session().Profile()
			if err != nil {
				return err
			}
			return printJSON(cmd, profiles)
		},
	}
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		req    app.AggregateRequest
		dir    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export [sum|count|average|percentage|weighted|top|pivot|cagr]",
		Short: "Aggregate and write the result to an xlsx or csv file",
		Long: `Aggregate and write the result, with the selection it was computed under,
to a file in --out.

Example: marketlens-cli export sum --data pricing.xlsx --group region --metric revenue --format xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := finishRequest(&req, args[0], dir); err != nil {
				return err
			}
			svc, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.Export(cmd.Context(), req, format)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	aggregateFlags(cmd, &req, &dir)
	cmd.Flags().StringVar(&format, "format", "xlsx", "File format: xlsx|csv")
	return cmd
}
