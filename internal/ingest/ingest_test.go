package ingest

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/registry-ingest/internal/config"
	"github.com/sells-group/registry-ingest/internal/identity"
	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

const e2eDoc = `{
	"companyDetails": {"vatCode": "IT12345678901"},
	"address": {"street": "Via Roma 1", "zipCode": "00100", "town": "Roma"},
	"balance": {"year": 2023, "assetsAggregateValues": {"A1": 500}}
}`

type testEnv struct {
	in    *Ingester
	store *store.SQLiteStore
	path  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ingest.db")
	st, err := store.NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	in := New(st, config.IngestConfig{
		DeepContactScan:  true,
		DefaultCurrency:  "EUR",
		MaxUnknownFields: 100,
	})
	in.now = func() time.Time { return testNow }
	return &testEnv{in: in, store: st, path: path}
}

// rawDB opens a second connection for assertions the store does not expose.
func (e *testEnv) rawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", e.path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	return db
}

func (e *testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, e.rawDB(t).QueryRow(query, args...).Scan(&n))
	return n
}

func (e *testEnv) ingest(t *testing.T, doc string) *Result {
	t.Helper()
	res, err := e.in.Ingest(context.Background(), []byte(doc))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestIngest_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.ingest(t, e2eDoc)
	assert.Equal(t, identity.EntityID("IT12345678901"), res.EntityID)
	assert.Equal(t, model.RunStatusUpdated, res.Summary.Status)
	assert.Equal(t, 1, res.Summary.Inserts[model.TableAddresses])
	assert.Equal(t, 1, res.Summary.Inserts[model.TableLineItems])
	assert.Equal(t, 1, res.Summary.Skips[model.TableContacts])
	assert.Equal(t, 1, res.Summary.Skips[model.TableClassifications])
	assert.Empty(t, res.Summary.CreatedColumns)
	assert.Empty(t, res.Summary.Error)

	report, err := env.store.LatestCompany(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.EntityID, report.Company.EntityID)
	assert.Equal(t, "IT12345678901", report.Company.VATCode)
	assert.Equal(t, model.IdentityVAT, report.Company.IdentitySource)

	require.Len(t, report.Addresses, 1)
	addr := report.Addresses[0]
	assert.Equal(t, model.AddressRegisteredOffice, addr.AddressType)
	assert.Equal(t, "Via Roma 1", addr.Street)
	assert.Equal(t, "00100", addr.ZipCode)
	assert.Equal(t, "Roma", addr.Town)

	require.Len(t, report.LineItems, 1)
	li := report.LineItems[0]
	assert.Equal(t, 2023, li.FiscalYear)
	assert.Equal(t, model.StatementAssets, li.Statement)
	assert.Equal(t, "A1", li.Code)
	assert.True(t, decimal.NewFromInt(500).Equal(li.Amount))
	assert.Equal(t, "EUR", li.Currency)

	require.Len(t, report.Runs, 1)
	assert.Equal(t, model.RunStatusUpdated, report.Runs[0].Status)
	assert.NotNil(t, report.Runs[0].FinishedAt)
	assert.Equal(t, int64(1), report.RawSections)

	run, err := env.store.GetRun(ctx, res.Summary.IngestionID)
	require.NoError(t, err)
	assert.Equal(t, res.Summary.Inserts, run.Summary.Inserts)
}

func TestIngest_IdempotentOnReingestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.ingest(t, e2eDoc)
	assert.Equal(t, model.RunStatusUpdated, first.Summary.Status)

	// A later day must not change the facets of an undated document.
	env.in.now = func() time.Time { return testNow.Add(72 * time.Hour) }
	second := env.ingest(t, e2eDoc)
	assert.Equal(t, first.EntityID, second.EntityID)
	assert.Equal(t, model.RunStatusUnchanged, second.Summary.Status)
	assert.Zero(t, second.Summary.Written())
	assert.NotEqual(t, first.Summary.IngestionID, second.Summary.IngestionID)

	report, err := env.store.LatestCompany(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Versions, 1)
	assert.Len(t, report.Addresses, 1)
	assert.Len(t, report.LineItems, 1)
	assert.Len(t, report.Runs, 2)
	assert.Equal(t, int64(2), report.RawSections, "one raw capture per ingestion")

	assert.Equal(t, 1, env.count(t, `SELECT COUNT(*) FROM companies`))
}

func TestIngest_DeterministicEntityID(t *testing.T) {
	env := newTestEnv(t)

	a := env.ingest(t, `{"vatCode": "IT 0001", "companyName": "Alpha"}`)
	b := env.ingest(t, `{"company": {"vatNumber": "it0001", "companyName": "Alpha S.p.A."}}`)
	c := env.ingest(t, `{"taxCode": "IT0001"}`)

	assert.Equal(t, a.EntityID, b.EntityID)
	assert.Equal(t, a.EntityID, c.EntityID)
	assert.Equal(t, identity.EntityID("IT0001"), a.EntityID)
	assert.Equal(t, 3, env.count(t, `SELECT COUNT(*) FROM entity_versions WHERE entity_id = ?`, a.EntityID))
	assert.Equal(t, 1, env.count(t, `SELECT COUNT(*) FROM companies`))
}

func TestIngest_NoNaturalKey(t *testing.T) {
	env := newTestEnv(t)

	a := env.ingest(t, `{"companyName": "Nameless"}`)
	b := env.ingest(t, `{"companyName": "Nameless"}`)

	assert.NotEqual(t, a.EntityID, b.EntityID)
	assert.Equal(t, model.RunStatusUpdated, a.Summary.Status)
	require.NotEmpty(t, a.Summary.Warnings)
	assert.Equal(t, "identity", a.Summary.Warnings[0].Table)
	assert.Equal(t, 2, env.count(t, `SELECT COUNT(*) FROM companies WHERE identity_source = 'random'`))
}

func TestIngest_LosslessRawCapture(t *testing.T) {
	env := newTestEnv(t)
	doc := "{\"zeta\": {\"nested\": [1, 2.50, {\"x\": null}]},\n  \"vatCode\":\"IT9\",   \"alpha\": \"\\u00e8\"}"

	res := env.ingest(t, doc)

	var stored string
	require.NoError(t, env.rawDB(t).QueryRow(
		`SELECT raw_payload FROM raw_sections WHERE ingestion_id = ? AND section_name = 'root'`,
		res.Summary.IngestionID,
	).Scan(&stored))
	assert.Equal(t, doc, stored)
	assert.Equal(t, gjson.Parse(doc).Value(), gjson.Parse(stored).Value())
}

func TestIngest_SchemaGrowth(t *testing.T) {
	env := newTestEnv(t)

	first := env.ingest(t, `{
		"companyDetails": {"vatCode": "IT1", "foundingYear": 1999},
		"address": {"street": "Via Po 2", "town": "Torino", "floor": 3}
	}`)
	assert.Equal(t, []model.CreatedColumn{
		{Table: model.TableCompanies, Column: "founding_year", Type: "integer"},
		{Table: model.TableAddresses, Column: "floor", Type: "integer"},
	}, first.Summary.CreatedColumns)

	second := env.ingest(t, `{
		"companyDetails": {"vatCode": "IT1", "foundingYear": 2001},
		"address": {"street": "Via Po 2", "town": "Torino", "floor": 4}
	}`)
	assert.Empty(t, second.Summary.CreatedColumns)
	assert.Equal(t, model.RunStatusUpdated, second.Summary.Status)

	assert.Equal(t, 1, env.count(t, `SELECT COUNT(*) FROM companies WHERE founding_year = 2001`))
	assert.Equal(t, 2, env.count(t, `SELECT COUNT(*) FROM addresses WHERE floor IS NOT NULL`))
}

func TestIngest_ReservedNameGetsPrefix(t *testing.T) {
	env := newTestEnv(t)

	res := env.ingest(t, `{"companyDetails": {"vatCode": "IT1", "createdAt": "2020-01-01"}}`)
	require.Len(t, res.Summary.CreatedColumns, 1)
	assert.Equal(t, "src_created_at", res.Summary.CreatedColumns[0].Column)
	assert.Equal(t, "date", res.Summary.CreatedColumns[0].Type)
}

func TestIngest_LineItemUpsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.ingest(t, `{"vatCode": "IT7", "balance": {"year": 2023, "incomeStatementAggregateValues": {"A1": 100}}}`)
	second := env.ingest(t, `{"vatCode": "IT7", "balance": {"year": 2023, "incomeStatementAggregateValues": {"A1": 150}}}`)
	assert.Equal(t, 1, second.Summary.Inserts[model.TableLineItems])

	report, err := env.store.LatestCompany(ctx)
	require.NoError(t, err)
	require.Len(t, report.LineItems, 1)
	li := report.LineItems[0]
	assert.Equal(t, model.StatementIncome, li.Statement)
	assert.True(t, decimal.NewFromInt(150).Equal(li.Amount))

	groups, err := env.store.FinancialSummary(ctx, second.EntityID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, decimal.NewFromInt(150).Equal(groups[0].Total))
}

func TestIngest_UnmappedCodeOncePerIngestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.store.LoadLegend(ctx, []model.LegendEntry{
		{Family: "SPA", Code: "A1", Description: "Crediti verso soci"},
	})
	require.NoError(t, err)

	doc := `{"vatCode": "IT3", "balance": {"year": 2023,
		"assetsAggregateValues": {"A1": 10, "ZZ99": 1},
		"liabilitiesAggregateValues": {"ZZ99": 2}}}`

	env.ingest(t, doc)
	codes, err := env.store.UnmappedCodes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "ZZ99", codes[0].Code)
	assert.Equal(t, int64(1), codes[0].Occurrences)

	env.ingest(t, doc)
	codes, err = env.store.UnmappedCodes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, int64(2), codes[0].Occurrences)

	report, err := env.store.LatestCompany(ctx)
	require.NoError(t, err)
	for _, li := range report.LineItems {
		if li.Code == "A1" {
			assert.Equal(t, "Crediti verso soci", li.Description)
		}
	}
}

func TestIngest_CodePatternTierOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.ingest(t, `{"vatCode": "IT4", "filings": {"fy2022": {"CE0010": 10, "SPP020": "20"}}}`)
	assert.Equal(t, 2, res.Summary.Inserts[model.TableLineItems])

	report, err := env.store.LatestCompany(ctx)
	require.NoError(t, err)
	require.Len(t, report.LineItems, 2)
	for _, li := range report.LineItems {
		assert.Equal(t, 2022, li.FiscalYear)
		assert.Equal(t, "code_pattern_scan", li.SourceTier)
	}
}

func TestIngest_UnknownFieldsAreCountedNotWritten(t *testing.T) {
	env := newTestEnv(t)
	doc := `{"vatCode": "IT5", "vendor": "acme", "meta": {"tags": ["a", "b"]}}`

	first := env.ingest(t, doc)
	second := env.ingest(t, doc)
	assert.Equal(t, model.RunStatusUnchanged, second.Summary.Status)

	var occ int
	require.NoError(t, env.rawDB(t).QueryRow(
		`SELECT occurrences FROM unknown_fields WHERE entity_id = ? AND json_path = '$.vendor'`,
		first.EntityID,
	).Scan(&occ))
	assert.Equal(t, 2, occ)
	assert.Equal(t, 1, env.count(t, `SELECT COUNT(*) FROM unknown_fields WHERE json_path = '$.meta.tags[]'`))
}

func TestIngest_InvalidDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, doc := range []string{"", "not json", `[{"vatCode": "IT1"}]`, `{"a":`} {
		res, err := env.in.Ingest(ctx, []byte(doc))
		assert.Nil(t, res)
		assert.True(t, errors.Is(err, ErrInvalidDocument), "input %q", doc)
	}

	runs, err := env.store.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs, "invalid input never reaches the store")
}

// failingStore wraps every transaction it opens.
type failingStore struct {
	store.Store
	wrap func(store.Tx) store.Tx
}

func (s *failingStore) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return s.wrap(tx), nil
}

type versionFailTx struct{ store.Tx }

func (versionFailTx) RecordVersion(context.Context, model.EntityVersion) (bool, error) {
	return false, errors.New("connection reset")
}

type facetFailTx struct {
	store.Tx
	table string
}

func (t facetFailTx) InsertFacetRow(ctx context.Context, entityID string, row model.FacetRow) (bool, error) {
	if row.Table == t.table {
		return false, errors.New("disk full")
	}
	return t.Tx.InsertFacetRow(ctx, entityID, row)
}

func TestIngest_PersistenceErrorRecordsErrorRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.in.store = &failingStore{Store: env.store, wrap: func(tx store.Tx) store.Tx { return versionFailTx{tx} }}

	res, err := env.in.Ingest(ctx, []byte(e2eDoc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NotNil(t, res)
	assert.Equal(t, model.RunStatusError, res.Summary.Status)
	assert.Equal(t, "connection reset", res.Summary.Error)

	run, err := env.store.GetRun(ctx, res.Summary.IngestionID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusError, run.Status)
	assert.Equal(t, "connection reset", run.Summary.Error)
	assert.NotNil(t, run.FinishedAt)

	_, err = env.store.LatestCompany(ctx)
	assert.True(t, errors.Is(err, store.ErrNotFound), "company write was rolled back")
	assert.Zero(t, env.count(t, `SELECT COUNT(*) FROM raw_sections`))
}

func TestIngest_FacetFailureBecomesWarning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.in.store = &failingStore{Store: env.store, wrap: func(tx store.Tx) store.Tx {
		return facetFailTx{Tx: tx, table: model.TableAddresses}
	}}

	res, err := env.in.Ingest(ctx, []byte(e2eDoc))
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusUpdated, res.Summary.Status)
	assert.NotContains(t, res.Summary.Inserts, model.TableAddresses)
	assert.Equal(t, 1, res.Summary.Inserts[model.TableLineItems])

	var found bool
	for _, w := range res.Summary.Warnings {
		if w.Table == model.TableAddresses && w.Reason == "disk full" {
			found = true
		}
	}
	assert.True(t, found, "facet failure is reported as a warning")

	report, err := env.store.LatestCompany(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Addresses)
	assert.Len(t, report.LineItems, 1)
}

type mockStore struct {
	store.Store
	mock.Mock
}

func (m *mockStore) Begin(ctx context.Context) (store.Tx, error) {
	args := m.Called(ctx)
	tx, _ := args.Get(0).(store.Tx)
	return tx, args.Error(1)
}

func (m *mockStore) SaveRun(ctx context.Context, run *model.IngestionRun) error {
	return m.Called(ctx, run).Error(0)
}

func TestIngest_BeginFailureStillRecordsRun(t *testing.T) {
	st := &mockStore{}
	st.On("Begin", mock.Anything).Return(nil, errors.New("too many connections"))
	st.On("SaveRun", mock.Anything, mock.MatchedBy(func(run *model.IngestionRun) bool {
		return run.Status == model.RunStatusError && run.Summary.Error == "too many connections"
	})).Return(nil)

	in := New(st, config.IngestConfig{DefaultCurrency: "EUR"})
	in.now = func() time.Time { return testNow }

	res, err := in.Ingest(context.Background(), []byte(e2eDoc))
	require.Error(t, err)
	assert.Equal(t, model.RunStatusError, res.Summary.Status)
	st.AssertExpectations(t)
}

func TestIngestAll(t *testing.T) {
	env := newTestEnv(t)

	results := env.in.IngestAll(context.Background(), []Document{
		{Source: "a.json", Data: []byte(`{"vatCode": "IT10"}`)},
		{Source: "b.json", Data: []byte(`{"vatCode": `)},
		{Source: "c.json", Data: []byte(`{"vatCode": "IT11"}`)},
	}, 2)

	require.Len(t, results, 3)
	assert.Equal(t, 1, Failed(results))
	assert.Equal(t, "a.json", results[0].Source)
	assert.NoError(t, results[0].Err)
	assert.True(t, errors.Is(results[1].Err, ErrInvalidDocument))
	assert.Equal(t, identity.EntityID("IT11"), results[2].Result.EntityID)
	assert.Equal(t, 2, env.count(t, `SELECT COUNT(*) FROM companies`))
}
