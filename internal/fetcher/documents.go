// Package fetcher reads ingestion inputs from local files: registry
// documents and legend catalogs in CSV, XLSX, JSON or YAML.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Document is the raw text of one registry document.
type Document struct {
	Source string
	Data   []byte
}

// ReadDocuments reads every path. A file holding a JSON array yields one
// document per element; any other content is passed through untouched.
func ReadDocuments(ctx context.Context, paths []string) ([]Document, error) {
	var docs []Document
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: read %s", path)
		}
		docs = append(docs, SplitDocuments(ctx, path, data)...)
	}
	return docs, nil
}

// SplitDocuments splits a top-level JSON array into its elements, keeping
// each element's bytes as written. Input that is not a well-formed array is
// returned as a single document so the caller reports it.
func SplitDocuments(ctx context.Context, source string, data []byte) []Document {
	whole := []Document{{Source: source, Data: data}}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return whole
	}

	items, err := collect(DecodeJSONArray[json.RawMessage](ctx, bytes.NewReader(data)))
	if err != nil || len(items) == 0 {
		return whole
	}
	docs := make([]Document, len(items))
	for i, item := range items {
		docs[i] = Document{Source: fmt.Sprintf("%s[%d]", source, i), Data: item}
	}
	return docs
}

// ListJSON returns the *.json files directly inside dir, sorted by name.
func ListJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: list %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
