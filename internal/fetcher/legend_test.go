package fetcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/registry-ingest/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func legendFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, writeTestFile(path, content))
	return path
}

func TestReadLegend_CSVWithItalianHeader(t *testing.T) {
	path := legendFile(t, "legend.csv", "descrizione,famiglia,codice\nCrediti verso soci,spa,A1\nServizi,CE,B7\n")

	entries, err := ReadLegend(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []model.LegendEntry{
		{Family: "SPA", Code: "A1", Description: "Crediti verso soci"},
		{Family: "CE", Code: "B7", Description: "Servizi"},
	}, entries)
}

func TestReadLegend_CSVPositional(t *testing.T) {
	path := legendFile(t, "legend.csv", "SP_A,A1,Crediti\nSPA,A1,Crediti verso soci\nXX,Z,Ignored\nCE,,No code\n")

	entries, err := ReadLegend(context.Background(), path)
	require.NoError(t, err)
	// Duplicate keys keep the last description in the first position.
	assert.Equal(t, []model.LegendEntry{
		{Family: "SPA", Code: "A1", Description: "Crediti verso soci"},
	}, entries)
}

func TestReadLegend_YAMLList(t *testing.T) {
	path := legendFile(t, "legend.yaml", `
- family: SPP
  code: A
  description: Patrimonio netto
- family: ce
  code: A1
  description: Ricavi delle vendite
`)

	entries, err := ReadLegend(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "CE", entries[1].Family)
}

func TestReadLegend_YAMLMap(t *testing.T) {
	path := legendFile(t, "legend.yml", `
SPP:
  A: Patrimonio netto
SPA:
  B2: Immobilizzazioni materiali
  A1: Crediti verso soci
`)

	entries, err := ReadLegend(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []model.LegendEntry{
		{Family: "SPA", Code: "A1", Description: "Crediti verso soci"},
		{Family: "SPA", Code: "B2", Description: "Immobilizzazioni materiali"},
		{Family: "SPP", Code: "A", Description: "Patrimonio netto"},
	}, entries)
}

func TestReadLegend_JSON(t *testing.T) {
	path := legendFile(t, "legend.json", `[{"family":"CE","code":"B6","description":"Materie prime"}]`)

	entries, err := ReadLegend(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []model.LegendEntry{{Family: "CE", Code: "B6", Description: "Materie prime"}}, entries)
}

func TestReadLegend_XLSX(t *testing.T) {
	path := createTestXLSX(t, []string{"Legenda"}, map[string][][]string{
		"Legenda": {
			{"Family", "Code", "Description"},
			{"SPP", "D", "Debiti"},
		},
	})

	entries, err := ReadLegend(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []model.LegendEntry{{Family: "SPP", Code: "D", Description: "Debiti"}}, entries)
}

func TestReadLegend_UnsupportedFormat(t *testing.T) {
	path := legendFile(t, "legend.txt", "SPA A1 x")
	_, err := ReadLegend(context.Background(), path)
	assert.ErrorContains(t, err, "unsupported legend format")
}

func TestReadLegend_MissingFile(t *testing.T) {
	_, err := ReadLegend(context.Background(), filepath.Join(t.TempDir(), "none.csv"))
	assert.Error(t, err)
}
