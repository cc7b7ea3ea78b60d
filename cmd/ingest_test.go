package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/registry-ingest/internal/config"
	"github.com/sells-group/registry-ingest/internal/fetcher"
	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var testIngestConfig = config.IngestConfig{
	DeepContactScan:  true,
	DefaultCurrency:  "EUR",
	MaxUnknownFields: 100,
	Concurrency:      2,
}

func TestRunIngest_PrintsOneResultPerDocument(t *testing.T) {
	st := newTestStore(t)
	docs := fetcher.SplitDocuments(context.Background(), "batch.json",
		[]byte(`[{"vatCode":"IT01","companyName":"Uno"},{"vatCode":"IT02","companyName":"Due"}]`))

	var out bytes.Buffer
	require.NoError(t, runIngest(context.Background(), st, testIngestConfig, docs, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var res struct {
			EntityID string           `json:"entity_id"`
			Summary  model.RunSummary `json:"run_summary"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &res))
		assert.NotEmpty(t, res.EntityID)
		assert.Equal(t, model.RunStatusUpdated, res.Summary.Status)
	}
}

func TestRunIngest_FailsOnInvalidDocument(t *testing.T) {
	st := newTestStore(t)
	docs := []fetcher.Document{
		{Source: "ok.json", Data: []byte(`{"vatCode":"IT03"}`)},
		{Source: "bad.json", Data: []byte(`{"vatCode":`)},
	}

	var out bytes.Buffer
	err := runIngest(context.Background(), st, testIngestConfig, docs, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}
