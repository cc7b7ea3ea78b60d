// Package extract pulls normalized facet rows out of registry documents of
// varying shape. Extractors are pure: they read the document and return
// rows and warnings, nothing else.
package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/payload"
)

// Options tunes extraction.
type Options struct {
	// DeepContactScan enables the recursive contacts tier.
	DeepContactScan bool
	// FallbackFiscalYear applies when neither a line item nor its document
	// carries a year. Zero means the year before Now.
	FallbackFiscalYear int
	DefaultCurrency    string
	MaxUnknownFields   int
	Now                time.Time
}

// fallbackYear resolves the configured fallback fiscal year.
func (o Options) fallbackYear() int {
	if o.FallbackFiscalYear > 0 {
		return o.FallbackFiscalYear
	}
	now := o.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.UTC().Year() - 1
}

// Doc is a parsed document plus its document-level effective date.
type Doc struct {
	Root gjson.Result
	Date time.Time
}

// NewDoc computes the document-level effective date, falling back to now.
func NewDoc(root gjson.Result, now time.Time) Doc {
	return Doc{Root: root, Date: EffectiveDate(root, now)}
}

// Tier is one strategy of a tiered extractor. A tier that does not match
// returns no rows.
type Tier[T any] struct {
	Name string
	Run  func(doc Doc, opts Options) ([]T, []model.Warning)
}

// Outcome is the result of running a tier chain.
type Outcome[T any] struct {
	Rows     []T
	Tier     string
	Warnings []model.Warning
}

// RunTiers tries tiers in order and stops at the first one that yields rows.
// Tiers are exclusive: rows from later tiers are never merged in. Warnings
// from every tier that ran are kept.
func RunTiers[T any](doc Doc, opts Options, tiers []Tier[T]) Outcome[T] {
	var out Outcome[T]
	for _, t := range tiers {
		rows, warnings := t.Run(doc, opts)
		out.Warnings = append(out.Warnings, warnings...)
		if len(rows) > 0 {
			out.Rows = rows
			out.Tier = t.Name
			return out
		}
	}
	return out
}

// RowHash identifies a facet row by content and effective date, so that
// re-extracting identical content maps to the same row.
func RowHash(row model.FacetRow) string {
	parts := []string{row.Table, row.EffectiveDate.UTC().Format(time.DateOnly)}
	for _, f := range row.Columns {
		parts = append(parts, f.Name+"="+fmt.Sprint(f.Value))
	}
	for _, f := range row.Extra {
		parts = append(parts, "+"+f.Name+"="+fmt.Sprint(f.Value))
	}
	if len(row.Raw) > 0 {
		parts = append(parts, payload.ContentHash(row.Raw))
	}
	return payload.Digest(parts...)
}

// block returns the first object found under any of keys in the containers,
// searched in order.
func block(containers []gjson.Result, keys ...string) (gjson.Result, string, bool) {
	for _, c := range containers {
		if v, k, ok := payload.First(c, keys...); ok && v.IsObject() {
			return v, k, true
		}
	}
	return gjson.Result{}, "", false
}

// companyBlocks returns the root followed by the nested company blocks present.
func companyBlocks(root gjson.Result) []gjson.Result {
	out := []gjson.Result{root}
	for _, k := range companyBlockKeys {
		if v, ok := payload.Get(root, k); ok && v.IsObject() {
			out = append(out, v)
		}
	}
	return out
}

// extraScalars returns top-level scalar fields of obj whose key is not in
// known, in document order.
func extraScalars(obj gjson.Result, known map[string]bool) []model.Field {
	var out []model.Field
	obj.ForEach(func(k, v gjson.Result) bool {
		if known[strings.ToLower(k.Str)] || !payload.IsScalar(v) {
			return true
		}
		val, _ := payload.Scalar(v)
		out = append(out, model.Field{Name: k.Str, Value: val})
		return true
	})
	return out
}

func keySet(groups ...[]string) map[string]bool {
	out := make(map[string]bool)
	for _, g := range groups {
		for _, k := range g {
			out[strings.ToLower(k)] = true
		}
	}
	return out
}
