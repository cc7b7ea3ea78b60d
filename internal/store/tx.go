package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/registry-ingest/internal/db"
	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/schema"
)

// sqlTx implements Tx for both backends over an execer bound to an open
// transaction.
type sqlTx struct {
	ex       execer
	d        dialect
	commit   func(ctx context.Context) error
	rollback func(ctx context.Context) error
	done     bool
}

var companyColumns = []string{
	"entity_id", "vat_code", "tax_code", "identity_source", "name", "legal_form",
	"status", "rea_code", "incorporation_date", "created_at", "updated_at",
}

// ReservedCompanyColumns are the modeled company columns a promoted field
// must not shadow.
var ReservedCompanyColumns = func() map[string]bool {
	out := make(map[string]bool, len(companyColumns))
	for _, c := range companyColumns {
		out[c] = true
	}
	return out
}()

func (t *sqlTx) TableColumns(ctx context.Context, table string) (map[string]schema.ColumnType, error) {
	rows, err := t.ex.query(ctx, t.d.columnsSQL, table)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read columns of %s", table)
	}
	defer rows.Close()

	cols := make(map[string]schema.ColumnType)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, eris.Wrapf(err, "store: scan column of %s", table)
		}
		cols[name] = schema.ParseColumnType(typ)
	}
	return cols, eris.Wrapf(rows.Err(), "store: iterate columns of %s", table)
}

func (t *sqlTx) CreateTable(ctx context.Context, table string) error {
	err := t.Savepoint(ctx, "ddl", func() error {
		_, err := t.ex.exec(ctx, t.d.createFacetTableSQL(table))
		return err
	})
	if err != nil && !t.d.isDuplicate(err) {
		return eris.Wrapf(err, "store: create table %s", table)
	}
	return nil
}

func (t *sqlTx) AddColumn(ctx context.Context, table, column string, typ schema.ColumnType) (bool, error) {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		db.QuoteIdent(table), db.QuoteIdent(column), t.d.columnType(typ))
	err := t.Savepoint(ctx, "ddl", func() error {
		_, err := t.ex.exec(ctx, stmt)
		return err
	})
	if err != nil {
		if t.d.isDuplicate(err) {
			return false, nil
		}
		return false, eris.Wrapf(err, "store: add column %s.%s", table, column)
	}
	return true, nil
}

func (t *sqlTx) UpsertCompany(ctx context.Context, c model.Company) error {
	now := time.Now().UTC()
	cols := append([]string(nil), companyColumns...)
	args := []any{
		c.EntityID, nullString(c.VATCode), nullString(c.TaxCode), string(c.IdentitySource),
		nullString(c.Name), nullString(c.LegalForm), nullString(c.Status), nullString(c.REACode),
		dateArg(c.IncorporationDate), now, now,
	}
	for _, f := range c.Extra {
		cols = append(cols, f.Name)
		args = append(args, f.Value)
	}

	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		switch col {
		case "entity_id", "created_at":
			continue
		case "updated_at", "identity_source":
			sets = append(sets, fmt.Sprintf("%[1]s = excluded.%[1]s", db.QuoteIdent(col)))
		default:
			sets = append(sets, fmt.Sprintf("%[1]s = COALESCE(excluded.%[1]s, companies.%[1]s)", db.QuoteIdent(col)))
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO companies (%s) VALUES (%s) ON CONFLICT (entity_id) DO UPDATE SET %s",
		db.QuoteJoin(cols), placeholders(1, len(cols)), strings.Join(sets, ", "),
	)
	if _, err := t.ex.exec(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "store: upsert company %s", c.EntityID)
	}
	return nil
}

func (t *sqlTx) RecordVersion(ctx context.Context, v model.EntityVersion) (bool, error) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	n, err := t.ex.exec(ctx,
		`INSERT INTO entity_versions (id, entity_id, effective_date, content_hash, raw_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entity_id, content_hash) DO NOTHING`,
		v.ID, v.EntityID, dayArg(v.EffectiveDate), v.ContentHash, string(v.RawPayload), time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "store: record version for %s", v.EntityID)
	}
	return n > 0, nil
}

func (t *sqlTx) VersionDate(ctx context.Context, entityID, contentHash string) (time.Time, bool, error) {
	var d time.Time
	err := t.ex.queryRow(ctx,
		`SELECT effective_date FROM entity_versions WHERE entity_id = $1 AND content_hash = $2`,
		entityID, contentHash,
	).Scan(&d)
	if isNoRows(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, eris.Wrapf(err, "store: version date for %s", entityID)
	}
	return d.UTC(), true, nil
}

func (t *sqlTx) InsertRawSection(ctx context.Context, s model.RawSection) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := t.ex.exec(ctx,
		`INSERT INTO raw_sections (id, entity_id, ingestion_id, section_name, effective_date, raw_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.EntityID, s.IngestionID, s.SectionName, dayArg(s.EffectiveDate), string(s.RawPayload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: insert raw section %s for %s", s.SectionName, s.EntityID)
}

func (t *sqlTx) InsertFacetRow(ctx context.Context, entityID string, row model.FacetRow) (bool, error) {
	var raw any
	if len(row.Raw) > 0 {
		raw = string(row.Raw)
	}
	cols := []string{"id", "entity_id", "effective_date", "raw_payload", "row_hash", "created_at"}
	args := []any{uuid.New().String(), entityID, dayArg(row.EffectiveDate), raw, row.Hash, time.Now().UTC()}
	for _, fields := range [][]model.Field{row.Columns, row.Extra} {
		for _, f := range fields {
			cols = append(cols, f.Name)
			args = append(args, f.Value)
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (entity_id, row_hash) DO NOTHING",
		db.QuoteIdent(row.Table), db.QuoteJoin(cols), placeholders(1, len(cols)),
	)
	n, err := t.ex.exec(ctx, query, args...)
	if err != nil {
		return false, eris.Wrapf(err, "store: insert %s row for %s", row.Table, entityID)
	}
	return n > 0, nil
}

func (t *sqlTx) UpsertLineItem(ctx context.Context, item model.LineItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO financial_line_items
		(id, entity_id, fiscal_year, statement, code, amount, description, currency, effective_date, source_tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (entity_id, fiscal_year, statement, code) DO UPDATE SET
			amount = excluded.amount,
			description = COALESCE(excluded.description, financial_line_items.description),
			currency = excluded.currency,
			effective_date = excluded.effective_date,
			source_tier = excluded.source_tier,
			updated_at = excluded.updated_at
		WHERE financial_line_items.amount %[1]s excluded.amount
			OR financial_line_items.currency %[1]s excluded.currency
			OR (excluded.description IS NOT NULL AND financial_line_items.description %[1]s excluded.description)`,
		t.d.distinct)

	n, err := t.ex.exec(ctx, query,
		item.ID, item.EntityID, item.FiscalYear, string(item.Statement), item.Code, item.Amount,
		nullString(item.Description), nullString(item.Currency), dayArg(item.EffectiveDate),
		nullString(item.SourceTier), now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "store: upsert line item %d/%s/%s for %s",
			item.FiscalYear, item.Statement, item.Code, item.EntityID)
	}
	return n > 0, nil
}

func (t *sqlTx) LookupLegend(ctx context.Context, family, code string) (string, bool, error) {
	return lookupLegend(ctx, t.ex, family, code)
}

func (t *sqlTx) IncrementUnmappedCode(ctx context.Context, code string, statement model.Statement) error {
	_, err := t.ex.exec(ctx,
		`INSERT INTO unmapped_codes (code, statement_guess, occurrences, first_seen_at, last_seen_at)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (code) DO UPDATE SET
			occurrences = unmapped_codes.occurrences + 1,
			statement_guess = excluded.statement_guess,
			last_seen_at = excluded.last_seen_at`,
		code, string(statement), time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: increment unmapped code %s", code)
}

func (t *sqlTx) RecordUnknownField(ctx context.Context, f model.UnknownField) error {
	_, err := t.ex.exec(ctx,
		`INSERT INTO unknown_fields (entity_id, section_name, json_path, last_value, occurrences, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (entity_id, section_name, json_path) DO UPDATE SET
			occurrences = unknown_fields.occurrences + 1,
			last_value = excluded.last_value,
			last_seen_at = excluded.last_seen_at`,
		f.EntityID, f.SectionName, f.JSONPath, f.Value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: record unknown field %s", f.JSONPath)
}

func (t *sqlTx) SaveRun(ctx context.Context, run *model.IngestionRun) error {
	return saveRun(ctx, t.ex, run)
}

func (t *sqlTx) Savepoint(ctx context.Context, name string, fn func() error) error {
	sp := db.QuoteIdent("sp_" + name)
	if _, err := t.ex.exec(ctx, "SAVEPOINT "+sp); err != nil {
		return eris.Wrapf(err, "store: savepoint %s", name)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.ex.exec(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return eris.Wrapf(rbErr, "store: rollback to savepoint %s after %v", name, err)
		}
		if _, relErr := t.ex.exec(ctx, "RELEASE SAVEPOINT "+sp); relErr != nil {
			return eris.Wrapf(relErr, "store: release savepoint %s after %v", name, err)
		}
		return err
	}
	if _, err := t.ex.exec(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return eris.Wrapf(err, "store: release savepoint %s", name)
	}
	return nil
}

func (t *sqlTx) Commit(ctx context.Context) error {
	if t.done {
		return eris.New("store: transaction already finished")
	}
	t.done = true
	return eris.Wrap(t.commit(ctx), "store: commit")
}

// Rollback is a no-op once the transaction finished.
func (t *sqlTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return eris.Wrap(t.rollback(ctx), "store: rollback")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// dayArg binds a date as midnight UTC, or NULL for the zero time.
func dayArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dayArg(*t)
}
