package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/registry-ingest/internal/enrich"
	"github.com/sells-group/registry-ingest/internal/extract"
	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/schema"
	"github.com/sells-group/registry-ingest/internal/store"
)

// writer carries the per-run state shared by the section writers.
type writer struct {
	tx       store.Tx
	schema   *schema.Manager
	resolver *enrich.Resolver
	summary  *model.RunSummary
	entityID string
	log      *zap.Logger
}

// facet is one extractor's output in storage shape.
type facet struct {
	section  string
	tier     string
	rows     []model.FacetRow
	warnings []model.Warning
}

type rowSource interface {
	Row() model.FacetRow
}

func facetOf[T rowSource](section string, out extract.Outcome[T]) facet {
	f := facet{section: section, tier: out.Tier, warnings: out.Warnings}
	for _, r := range out.Rows {
		f.rows = append(f.rows, r.Row())
	}
	return f
}

func (w *writer) warn(section, reason string, row any) {
	w.summary.Warn(section, reason, row)
	w.log.Debug("ingest: warning", zap.String("section", section), zap.String("reason", reason))
}

func (w *writer) addWarnings(warnings []model.Warning) {
	for _, wn := range warnings {
		w.warn(wn.Table, wn.Reason, wn.Row)
	}
}

// guard runs fn inside a savepoint named after the section. A failure rolls
// back the section's writes, including its schema promotions, and becomes a
// warning.
func (w *writer) guard(ctx context.Context, section string, fn func() error) bool {
	mark := w.schema.Checkpoint()
	if err := w.tx.Savepoint(ctx, section, fn); err != nil {
		w.schema.Rewind(mark)
		w.summary.Warn(section, err.Error(), nil)
		w.log.Warn("ingest: section rolled back", zap.String("section", section), zap.Error(err))
		return false
	}
	return true
}

func (w *writer) writeCompany(ctx context.Context, c model.Company) error {
	extra, err := w.promote(ctx, model.TableCompanies, c.Extra, store.ReservedCompanyColumns)
	if err != nil {
		return err
	}
	c.Extra = extra
	return w.tx.UpsertCompany(ctx, c)
}

// promote maps source-named scalars to columns of table, creating the
// columns it needs. Fields that cannot be named or stored are dropped with a
// warning; the first field wins when two normalize to the same column.
func (w *writer) promote(ctx context.Context, table string, fields []model.Field, reserved map[string]bool) ([]model.Field, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	out := make([]model.Field, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		name := schema.PromotedName(f.Name, reserved)
		if !schema.ValidIdentifier(name) {
			w.warn(table, fmt.Sprintf("field %q has no usable column name", f.Name), f)
			continue
		}
		if seen[name] {
			w.warn(table, fmt.Sprintf("field %q collides with column %s", f.Name, name), f)
			continue
		}
		seen[name] = true

		res, err := w.schema.EnsureTypedColumn(ctx, table, name, schema.InferType(f.Value))
		if err != nil {
			return nil, err
		}
		v, err := schema.Coerce(f.Value, res.Type)
		if err != nil {
			w.warn(table, err.Error(), f)
			continue
		}
		out = append(out, model.Field{Name: res.Column, Value: v})
	}
	return out, nil
}

// writeFacet appends the facet's rows. An empty extraction counts as one skip.
func (w *writer) writeFacet(ctx context.Context, f facet) {
	w.addWarnings(f.warnings)
	if len(f.rows) == 0 {
		w.summary.AddSkips(f.section, 1)
		return
	}

	var inserted, skipped int
	ok := w.guard(ctx, f.section, func() error {
		for _, row := range f.rows {
			written, err := w.writeRow(ctx, row)
			if err != nil {
				return err
			}
			if written {
				inserted++
			} else {
				skipped++
			}
		}
		return nil
	})
	if !ok {
		return
	}
	w.summary.AddInserts(f.section, inserted)
	w.summary.AddSkips(f.section, skipped)
	w.log.Debug("ingest: facet written",
		zap.String("section", f.section),
		zap.String("tier", f.tier),
		zap.Int("inserted", inserted),
		zap.Int("skipped", skipped),
	)
}

func (w *writer) writeRow(ctx context.Context, row model.FacetRow) (bool, error) {
	if _, err := w.schema.EnsureTable(ctx, row.Table); err != nil {
		return false, err
	}

	reserved := make(map[string]bool, len(schema.BaseColumns)+len(row.Columns))
	for _, c := range schema.BaseColumns {
		reserved[c] = true
	}
	for _, f := range row.Columns {
		reserved[f.Name] = true
		if _, err := w.schema.EnsureTypedColumn(ctx, row.Table, f.Name, schema.Text); err != nil {
			return false, err
		}
	}

	extra, err := w.promote(ctx, row.Table, row.Extra, reserved)
	if err != nil {
		return false, err
	}
	row.Extra = extra
	row.Hash = extract.RowHash(row)
	return w.tx.InsertFacetRow(ctx, w.entityID, row)
}

func (w *writer) writeLineItems(ctx context.Context, out extract.Outcome[model.LineItem]) {
	w.addWarnings(out.Warnings)
	if len(out.Rows) == 0 {
		w.summary.AddSkips(model.TableLineItems, 1)
		return
	}

	var written, skipped int
	ok := w.guard(ctx, model.TableLineItems, func() error {
		for _, item := range out.Rows {
			item.EntityID = w.entityID
			if _, err := w.resolver.Enrich(ctx, &item); err != nil {
				return err
			}
			changed, err := w.tx.UpsertLineItem(ctx, item)
			if err != nil {
				return err
			}
			if changed {
				written++
			} else {
				skipped++
			}
		}
		return nil
	})
	if !ok {
		return
	}
	w.summary.AddInserts(model.TableLineItems, written)
	w.summary.AddSkips(model.TableLineItems, skipped)
	w.log.Debug("ingest: line items written",
		zap.String("tier", out.Tier),
		zap.Int("written", written),
		zap.Int("skipped", skipped),
		zap.Int("unmapped", w.resolver.Unmapped()),
	)
}

// writeUnknownFields bumps the per-path counters. They are not facet rows and
// do not count as writes.
func (w *writer) writeUnknownFields(ctx context.Context, doc extract.Doc, limit int) {
	fields, truncated := extract.UnknownFields(doc, limit)
	if truncated {
		w.warn(sectionUnknownFields, fmt.Sprintf("more than %d unknown fields; the rest were not recorded", limit), nil)
	}
	if len(fields) == 0 {
		return
	}
	w.guard(ctx, sectionUnknownFields, func() error {
		for _, f := range fields {
			f.EntityID = w.entityID
			if err := w.tx.RecordUnknownField(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
}
