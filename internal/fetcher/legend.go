package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/registry-ingest/internal/model"
)

var legendFamilies = map[string]bool{"SPA": true, "SPP": true, "CE": true}

// Header aliases of the legend columns.
var (
	familyHeaders      = []string{"family", "famiglia", "statement"}
	codeHeaders        = []string{"code", "codice"}
	descriptionHeaders = []string{"description", "descrizione"}
)

// ReadLegend loads a legend catalog, picking the format from the file
// extension. Tabular files have the columns family, code, description; a
// header row naming them is optional. Entries are normalized and
// deduplicated on (family, code), the last one winning.
func ReadLegend(ctx context.Context, path string) ([]model.LegendEntry, error) {
	var (
		entries []model.LegendEntry
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		entries, err = readCSVLegend(ctx, path)
	case ".xlsx":
		var rows [][]string
		if rows, err = ReadXLSX(path, XLSXOptions{}); err == nil {
			entries = legendFromRows(rows)
		}
	case ".yaml", ".yml":
		entries, err = readYAMLLegend(path)
	case ".json":
		entries, err = readJSONLegend(ctx, path)
	default:
		return nil, eris.Errorf("fetcher: unsupported legend format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read legend %s", path)
	}
	return normalizeLegend(entries), nil
}

func readCSVLegend(ctx context.Context, path string) ([]model.LegendEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	rows, err := ReadCSV(ctx, f, CSVOptions{TrimSpace: true, LazyQuotes: true, Comment: '#'})
	if err != nil {
		return nil, err
	}
	return legendFromRows(rows), nil
}

func readJSONLegend(ctx context.Context, path string) ([]model.LegendEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	return collect(DecodeJSONArray[model.LegendEntry](ctx, f))
}

// readYAMLLegend accepts a list of entries or a family → code → description map.
func readYAMLLegend(path string) ([]model.LegendEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []model.LegendEntry
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var byFamily map[string]map[string]string
	if err := yaml.Unmarshal(data, &byFamily); err != nil {
		return nil, eris.Wrap(err, "yaml: decode legend")
	}
	var out []model.LegendEntry
	for family, codes := range byFamily {
		for code, desc := range codes {
			out = append(out, model.LegendEntry{Family: family, Code: code, Description: desc})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func legendFromRows(rows [][]string) []model.LegendEntry {
	if len(rows) == 0 {
		return nil
	}
	fam, code, desc := 0, 1, 2
	if f, c, d, ok := headerIndexes(rows[0]); ok {
		fam, code, desc = f, c, d
		rows = rows[1:]
	}

	var out []model.LegendEntry
	for _, row := range rows {
		if len(row) <= fam || len(row) <= code || len(row) <= desc {
			continue
		}
		out = append(out, model.LegendEntry{Family: row[fam], Code: row[code], Description: row[desc]})
	}
	return out
}

func headerIndexes(header []string) (fam, code, desc int, ok bool) {
	find := func(aliases []string) int {
		for i, h := range header {
			h = strings.ToLower(strings.TrimSpace(h))
			for _, a := range aliases {
				if h == a {
					return i
				}
			}
		}
		return -1
	}
	fam, code, desc = find(familyHeaders), find(codeHeaders), find(descriptionHeaders)
	return fam, code, desc, fam >= 0 && code >= 0 && desc >= 0
}

func normalizeLegend(entries []model.LegendEntry) []model.LegendEntry {
	index := make(map[string]int, len(entries))
	out := make([]model.LegendEntry, 0, len(entries))
	for _, e := range entries {
		e.Family = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(e.Family), "_", ""))
		e.Code = strings.TrimSpace(e.Code)
		e.Description = strings.TrimSpace(e.Description)
		if !legendFamilies[e.Family] || e.Code == "" || e.Description == "" {
			zap.L().Warn("fetcher: skipping legend entry",
				zap.String("family", e.Family),
				zap.String("code", e.Code),
			)
			continue
		}
		key := e.Family + "/" + e.Code
		if i, ok := index[key]; ok {
			out[i] = e
			continue
		}
		index[key] = len(out)
		out = append(out, e)
	}
	return out
}
