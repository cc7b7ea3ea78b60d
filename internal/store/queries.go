package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/registry-ingest/internal/model"
)

// Queries shared by both backends. They run against whichever execer the
// caller holds, so a run can be saved inside or outside a transaction.

const runColumns = `ingestion_id, COALESCE(entity_id, ''), status, started_at, finished_at, summary`

func saveRun(ctx context.Context, ex execer, run *model.IngestionRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Summary.IngestionID = run.ID
	run.Summary.EntityID = run.EntityID
	run.Summary.Status = run.Status

	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return eris.Wrap(err, "store: marshal run summary")
	}

	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	_, err = ex.exec(ctx,
		`INSERT INTO ingestion_runs (ingestion_id, entity_id, status, started_at, finished_at, summary)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ingestion_id) DO UPDATE SET
			entity_id = excluded.entity_id,
			status = excluded.status,
			finished_at = excluded.finished_at,
			summary = excluded.summary`,
		run.ID, nullString(run.EntityID), string(run.Status), run.StartedAt.UTC(), finished, string(summary),
	)
	return eris.Wrapf(err, "store: save run %s", run.ID)
}

func scanRun(s scanner) (*model.IngestionRun, error) {
	var (
		run      model.IngestionRun
		status   string
		finished *time.Time
		summary  string
	)
	if err := s.Scan(&run.ID, &run.EntityID, &status, &run.StartedAt, &finished, &summary); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	run.FinishedAt = finished
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, eris.Wrapf(err, "store: decode summary of run %s", run.ID)
	}
	return &run, nil
}

func getRun(ctx context.Context, ex execer, ingestionID string) (*model.IngestionRun, error) {
	run, err := scanRun(ex.queryRow(ctx,
		`SELECT `+runColumns+` FROM ingestion_runs WHERE ingestion_id = $1`, ingestionID))
	if isNoRows(err) {
		return nil, eris.Wrapf(ErrNotFound, "store: get run %s", ingestionID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get run %s", ingestionID)
	}
	return run, nil
}

func listRuns(ctx context.Context, ex execer, filter RunFilter) ([]model.IngestionRun, error) {
	query := `SELECT ` + runColumns + ` FROM ingestion_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		query += fmt.Sprintf(` AND entity_id = $%d`, len(args))
	}
	query += ` ORDER BY started_at DESC, ingestion_id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := ex.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	runs := []model.IngestionRun{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "store: list runs iterate")
}

func lookupLegend(ctx context.Context, ex execer, family, code string) (string, bool, error) {
	var desc string
	err := ex.queryRow(ctx,
		`SELECT description FROM balance_legend WHERE family = $1 AND code = $2`,
		family, code,
	).Scan(&desc)
	if isNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "store: lookup legend %s/%s", family, code)
	}
	return desc, true, nil
}

func unmappedCodes(ctx context.Context, ex execer, limit int) ([]model.UnmappedCode, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := ex.query(ctx,
		`SELECT code, COALESCE(statement_guess, ''), occurrences, first_seen_at, last_seen_at
		FROM unmapped_codes ORDER BY occurrences DESC, code LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list unmapped codes")
	}
	defer rows.Close()

	out := []model.UnmappedCode{}
	for rows.Next() {
		var (
			u     model.UnmappedCode
			guess string
		)
		if err := rows.Scan(&u.Code, &guess, &u.Occurrences, &u.FirstSeenAt, &u.LastSeenAt); err != nil {
			return nil, eris.Wrap(err, "store: scan unmapped code")
		}
		u.StatementGuess = model.Statement(guess)
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "store: unmapped codes iterate")
}

func financialSummary(ctx context.Context, ex execer, entityID string) ([]model.FinancialGroup, error) {
	rows, err := ex.query(ctx,
		`SELECT fiscal_year, statement, COALESCE(currency, ''), SUM(amount), COUNT(*)
		FROM financial_line_items
		WHERE entity_id = $1
		GROUP BY fiscal_year, statement, currency
		ORDER BY fiscal_year DESC, statement, currency`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: financial summary for %s", entityID)
	}
	defer rows.Close()

	out := []model.FinancialGroup{}
	for rows.Next() {
		var (
			g         model.FinancialGroup
			statement string
		)
		if err := rows.Scan(&g.FiscalYear, &statement, &g.Currency, &g.Total, &g.Items); err != nil {
			return nil, eris.Wrap(err, "store: scan financial group")
		}
		g.Statement = model.Statement(statement)
		out = append(out, g)
	}
	return out, eris.Wrap(rows.Err(), "store: financial summary iterate")
}

// reportCountTables are counted for the company report, children first.
var reportCountTables = []string{
	model.TableContacts, model.TableAddresses, model.TableClassifications, model.TableLineItems,
	"entity_versions", "raw_sections", "unknown_fields", "ingestion_runs",
}

// latestCompany assembles the report of the most recently created entity.
func latestCompany(ctx context.Context, ex execer) (*model.CompanyReport, error) {
	var (
		r      model.CompanyReport
		source string
	)
	c := &r.Company
	err := ex.queryRow(ctx,
		`SELECT entity_id, COALESCE(vat_code, ''), COALESCE(tax_code, ''), identity_source,
			COALESCE(name, ''), COALESCE(legal_form, ''), COALESCE(status, ''), COALESCE(rea_code, ''),
			incorporation_date, created_at, updated_at
		FROM companies ORDER BY created_at DESC, entity_id DESC LIMIT 1`,
	).Scan(&c.EntityID, &c.VATCode, &c.TaxCode, &source, &c.Name, &c.LegalForm, &c.Status, &c.REACode,
		&c.IncorporationDate, &c.CreatedAt, &c.UpdatedAt)
	if isNoRows(err) {
		return nil, eris.Wrap(ErrNotFound, "store: latest company")
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: latest company")
	}
	c.IdentitySource = model.IdentitySource(source)
	id := c.EntityID

	if r.Contacts, err = reportContacts(ctx, ex, id); err != nil {
		return nil, err
	}
	if r.Addresses, err = reportAddresses(ctx, ex, id); err != nil {
		return nil, err
	}
	if r.Classifications, err = reportClassifications(ctx, ex, id); err != nil {
		return nil, err
	}
	if r.LineItems, err = reportLineItems(ctx, ex, id); err != nil {
		return nil, err
	}
	if r.Versions, err = reportVersions(ctx, ex, id); err != nil {
		return nil, err
	}
	if r.Runs, err = listRuns(ctx, ex, RunFilter{EntityID: id}); err != nil {
		return nil, err
	}

	r.Counts = make(map[string]int64, len(reportCountTables))
	for _, table := range reportCountTables {
		var n int64
		if err := ex.queryRow(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE entity_id = $1`, table), id,
		).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "store: count %s", table)
		}
		r.Counts[table] = n
	}
	r.RawSections = r.Counts["raw_sections"]
	return &r, nil
}

func reportContacts(ctx context.Context, ex execer, entityID string) ([]model.Contacts, error) {
	rows, err := ex.query(ctx,
		`SELECT id, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(pec, ''), COALESCE(website, ''),
			effective_date, created_at
		FROM contacts WHERE entity_id = $1 ORDER BY effective_date DESC, created_at DESC`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: report contacts")
	}
	defer rows.Close()

	out := []model.Contacts{}
	for rows.Next() {
		var c model.Contacts
		if err := rows.Scan(&c.ID, &c.Phone, &c.Email, &c.PEC, &c.Website, &c.EffectiveDate, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan contacts")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: report contacts iterate")
}

func reportAddresses(ctx context.Context, ex execer, entityID string) ([]model.Address, error) {
	rows, err := ex.query(ctx,
		`SELECT id, address_type, COALESCE(street, ''), COALESCE(zip_code, ''), COALESCE(town, ''),
			COALESCE(province, ''), COALESCE(region, ''), COALESCE(country, ''), effective_date, created_at
		FROM addresses WHERE entity_id = $1 ORDER BY effective_date DESC, address_type, created_at`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: report addresses")
	}
	defer rows.Close()

	out := []model.Address{}
	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.AddressType, &a.Street, &a.ZipCode, &a.Town,
			&a.Province, &a.Region, &a.Country, &a.EffectiveDate, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan address")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "store: report addresses iterate")
}

func reportClassifications(ctx context.Context, ex execer, entityID string) ([]model.Classification, error) {
	rows, err := ex.query(ctx,
		`SELECT id, classification_type, code, COALESCE(description, ''), effective_date, created_at
		FROM classifications WHERE entity_id = $1 ORDER BY effective_date DESC, classification_type, code`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: report classifications")
	}
	defer rows.Close()

	out := []model.Classification{}
	for rows.Next() {
		var c model.Classification
		if err := rows.Scan(&c.ID, &c.ClassificationType, &c.Code, &c.Description, &c.EffectiveDate, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan classification")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: report classifications iterate")
}

func reportLineItems(ctx context.Context, ex execer, entityID string) ([]model.LineItem, error) {
	rows, err := ex.query(ctx,
		`SELECT id, entity_id, fiscal_year, statement, code, amount, COALESCE(description, ''),
			COALESCE(currency, ''), effective_date, COALESCE(source_tier, ''), created_at, updated_at
		FROM financial_line_items WHERE entity_id = $1 ORDER BY fiscal_year DESC, statement, code`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: report line items")
	}
	defer rows.Close()

	out := []model.LineItem{}
	for rows.Next() {
		var (
			it        model.LineItem
			statement string
			amount    decimal.Decimal
		)
		if err := rows.Scan(&it.ID, &it.EntityID, &it.FiscalYear, &statement, &it.Code, &amount, &it.Description,
			&it.Currency, &it.EffectiveDate, &it.SourceTier, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan line item")
		}
		it.Statement = model.Statement(statement)
		it.Amount = amount
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "store: report line items iterate")
}

func reportVersions(ctx context.Context, ex execer, entityID string) ([]model.EntityVersion, error) {
	rows, err := ex.query(ctx,
		`SELECT id, entity_id, effective_date, content_hash, created_at
		FROM entity_versions WHERE entity_id = $1 ORDER BY created_at DESC`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: report versions")
	}
	defer rows.Close()

	out := []model.EntityVersion{}
	for rows.Next() {
		var v model.EntityVersion
		if err := rows.Scan(&v.ID, &v.EntityID, &v.EffectiveDate, &v.ContentHash, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan version")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "store: report versions iterate")
}
