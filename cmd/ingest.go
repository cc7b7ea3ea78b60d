package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/registry-ingest/internal/config"
	"github.com/sells-group/registry-ingest/internal/fetcher"
	"github.com/sells-group/registry-ingest/internal/ingest"
	"github.com/sells-group/registry-ingest/internal/store"
)

var ingestDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest registry documents",
	Long: "Ingests one JSON document per file. A file holding a JSON array is treated as a batch. " +
		"Prints one {entity_id, run_summary} object per document.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		paths := args
		if ingestDir != "" {
			found, err := fetcher.ListJSON(ingestDir)
			if err != nil {
				return err
			}
			paths = append(paths, found...)
		}
		if len(paths) == 0 {
			return eris.New("ingest: no input files (pass paths or --dir)")
		}

		docs, err := fetcher.ReadDocuments(ctx, paths)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, "ingest")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return runIngest(ctx, st, cfg.Ingest, docs, os.Stdout)
	},
}

// runIngest ingests docs and writes each outcome to out. It fails when any
// document failed.
func runIngest(ctx context.Context, st store.Store, icfg config.IngestConfig, docs []fetcher.Document, out io.Writer) error {
	batch := make([]ingest.Document, len(docs))
	for i, d := range docs {
		batch[i] = ingest.Document(d)
	}

	results := ingest.New(st, icfg).IngestAll(ctx, batch, icfg.Concurrency)

	enc := json.NewEncoder(out)
	for _, r := range results {
		if r.Result == nil {
			// Rejected before a run was recorded.
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Source, r.Err)
			continue
		}
		if err := enc.Encode(r.Result); err != nil {
			return eris.Wrap(err, "ingest: write result")
		}
	}

	if n := ingest.Failed(results); n > 0 {
		zap.L().Error("ingest: documents failed", zap.Int("failed", n), zap.Int("total", len(results)))
		return eris.Errorf("ingest: %d of %d documents failed", n, len(results))
	}
	return nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "ingest every *.json file in this directory")
	rootCmd.AddCommand(ingestCmd)
}
