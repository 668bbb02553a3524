package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"marketlens/adapters/excel"
	"marketlens/adapters/sqlstore"
	"marketlens/domain/dataframe"
	"marketlens/internal"
)

func main() {
	var (
		driver string
		load   string
		table  string
		schema string
		sheet  string
	)

	cmd := &cobra.Command{
		Use:   "migrate [database-url]",
		Short: "Create the export tables and optionally import a source table",
		Long: `Create the aggregation export tables. With --load, also import an Excel or
CSV file into --table so the server can read it through DATA_TABLE.

Example: migrate postgres://localhost/marketlens --load pricing.xlsx --table pricing --schema pricing`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := internal.DefaultLogger

			store, err := sqlstore.Open(ctx, driver, args[0], logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return err
			}
			if load == "" {
				return nil
			}
			if table == "" {
				return fmt.Errorf("--table is required with --load")
			}
			return importFile(ctx, store, load, table, schema, sheet, logger)
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "postgres", "Database driver: postgres|sqlite")
	cmd.Flags().StringVar(&load, "load", "", "Excel or CSV file to import")
	cmd.Flags().StringVar(&table, "table", "", "Table to create for --load")
	cmd.Flags().StringVar(&schema, "schema", "infer", "Schema: epidemiology|pricing|procurement|infer")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: first sheet)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func importFile(ctx context.Context, store *sqlstore.Store, path, table, shape, sheet string, logger *internal.Logger) error {
	var schema *dataframe.Schema
	if shape != "infer" {
		s, err := dataframe.SchemaFor(shape)
		if err != nil {
			return err
		}
		schema = s
	}

	df, err := excel.NewDataReader(path,
		excel.WithSheet(sheet), excel.WithSchema(schema), excel.WithLogger(logger)).LoadFrame(ctx)
	if err != nil {
		return err
	}
	n, err := store.ImportFrame(ctx, table, df)
	if err != nil {
		return err
	}
	logger.Info("[Migrate] imported %d rows from %s into %s", n, path, table)
	return nil
}
