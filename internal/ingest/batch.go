package ingest

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Document is one input of a batch.
type Document struct {
	Source string
	Data   []byte
}

// BatchResult pairs a document with its outcome.
type BatchResult struct {
	Source string
	Result *Result
	Err    error
}

// IngestAll ingests docs with up to concurrency runs in flight. A failed
// document does not stop the others. Results are in input order.
func (in *Ingester) IngestAll(ctx context.Context, docs []Document, concurrency int) []BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]BatchResult, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			res, err := in.Ingest(gctx, doc.Data)
			results[i] = BatchResult{Source: doc.Source, Result: res, Err: err}
			if err != nil {
				zap.L().Warn("ingest: document failed",
					zap.String("source", doc.Source),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Failed counts the results that carry an error.
func Failed(results []BatchResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
