package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/registry-ingest/internal/fetcher"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context(), "admin")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("schema is up to date", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var truncateCmd = &cobra.Command{
	Use:   "truncate",
	Short: "Delete all ingested data",
	Long:  "Empties every ingestion table, children first. The legend catalog is kept.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return eris.New("truncate: refusing to run without --yes")
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, "admin")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Truncate(ctx); err != nil {
			return err
		}
		zap.L().Info("ingestion tables truncated")
		return nil
	},
}

var legendCmd = &cobra.Command{
	Use:   "legend",
	Short: "Manage the financial code legend",
}

var legendLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a legend catalog (.csv, .xlsx, .yaml, .json)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")

		entries, err := fetcher.ReadLegend(ctx, path)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return eris.Errorf("legend: %s has no usable entries", path)
		}

		st, err := openStore(ctx, "admin")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.LoadLegend(ctx, entries)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "loaded %d legend entries from %s\n", n, path)
		return nil
	},
}

func init() {
	truncateCmd.Flags().Bool("yes", false, "confirm deletion of all ingested data")

	legendLoadCmd.Flags().String("file", "", "catalog file with family, code, description")
	_ = legendLoadCmd.MarkFlagRequired("file")
	legendCmd.AddCommand(legendLoadCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(truncateCmd)
	rootCmd.AddCommand(legendCmd)
}
