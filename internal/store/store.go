// Package store persists entities, their facets and ingestion runs in
// Postgres or SQLite behind one transactional interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/registry-ingest/internal/config"
	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/resilience"
	"github.com/sells-group/registry-ingest/internal/schema"
)

// ErrNotFound is returned (wrapped) when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status   model.RunStatus `json:"status,omitempty"`
	EntityID string          `json:"entity_id,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	Offset   int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for document ingestion.
type Store interface {
	// Begin opens the transaction one ingestion writes through.
	Begin(ctx context.Context) (Tx, error)

	// Runs
	SaveRun(ctx context.Context, run *model.IngestionRun) error
	GetRun(ctx context.Context, ingestionID string) (*model.IngestionRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestionRun, error)

	// Reporting
	LatestCompany(ctx context.Context) (*model.CompanyReport, error)
	FinancialSummary(ctx context.Context, entityID string) ([]model.FinancialGroup, error)
	UnmappedCodes(ctx context.Context, limit int) ([]model.UnmappedCode, error)

	// Reference data
	LoadLegend(ctx context.Context, entries []model.LegendEntry) (int64, error)

	// Lifecycle
	Truncate(ctx context.Context) error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is one ingestion's unit of work. Nothing is visible to other readers
// until Commit.
type Tx interface {
	schema.Catalog

	// UpsertCompany inserts or refreshes the projection row. Empty fields
	// keep the stored value. c.Extra must name columns that already exist.
	UpsertCompany(ctx context.Context, c model.Company) error
	// RecordVersion stores a snapshot and reports whether its content hash
	// is new for the entity.
	RecordVersion(ctx context.Context, v model.EntityVersion) (bool, error)
	// VersionDate returns the effective date stored with a known snapshot.
	VersionDate(ctx context.Context, entityID, contentHash string) (time.Time, bool, error)
	InsertRawSection(ctx context.Context, s model.RawSection) error
	// InsertFacetRow appends a facet row unless an identical one (same
	// row hash) exists. Column names must already exist.
	InsertFacetRow(ctx context.Context, entityID string, row model.FacetRow) (bool, error)
	// UpsertLineItem reports whether the row was inserted or changed.
	UpsertLineItem(ctx context.Context, item model.LineItem) (bool, error)

	LookupLegend(ctx context.Context, family, code string) (string, bool, error)
	IncrementUnmappedCode(ctx context.Context, code string, statement model.Statement) error
	RecordUnknownField(ctx context.Context, f model.UnknownField) error

	SaveRun(ctx context.Context, run *model.IngestionRun) error

	// Savepoint runs fn inside a savepoint and rolls back to it when fn
	// fails. fn's error is returned unchanged.
	Savepoint(ctx context.Context, name string, fn func() error) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Open connects to the configured backend, retrying while the database is
// unreachable.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	retry := resilience.DefaultRetryConfig()
	if cfg.ConnectAttempts > 0 {
		retry.MaxAttempts = cfg.ConnectAttempts
	}
	retry.OnRetry = resilience.RetryLogger("store: connect " + cfg.Driver)

	switch cfg.Driver {
	case "postgres":
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (Store, error) {
			return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		})
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "registry.db"
		}
		return resilience.DoVal(ctx, retry, func(context.Context) (Store, error) {
			return NewSQLite(dsn)
		})
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}
