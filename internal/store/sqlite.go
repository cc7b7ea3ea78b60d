package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/registry-ingest/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. A single connection serializes writers.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ex() execer {
	return sqlExecer{q: s.db}
}

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	return &sqlTx{
		ex:       sqlExecer{q: tx},
		d:        sqliteDialect,
		commit:   func(context.Context) error { return tx.Commit() },
		rollback: func(context.Context) error { return tx.Rollback() },
	}, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.IngestionRun) error {
	return saveRun(ctx, s.ex(), run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, ingestionID string) (*model.IngestionRun, error) {
	return getRun(ctx, s.ex(), ingestionID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestionRun, error) {
	return listRuns(ctx, s.ex(), filter)
}

func (s *SQLiteStore) LatestCompany(ctx context.Context) (*model.CompanyReport, error) {
	return latestCompany(ctx, s.ex())
}

func (s *SQLiteStore) FinancialSummary(ctx context.Context, entityID string) ([]model.FinancialGroup, error) {
	return financialSummary(ctx, s.ex(), entityID)
}

func (s *SQLiteStore) UnmappedCodes(ctx context.Context, limit int) ([]model.UnmappedCode, error) {
	return unmappedCodes(ctx, s.ex(), limit)
}

// LoadLegend upserts the reference table in one transaction.
func (s *SQLiteStore) LoadLegend(ctx context.Context, entries []model.LegendEntry) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: load legend: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	ex := sqlExecer{q: tx}
	var total int64
	for _, e := range entries {
		n, err := ex.exec(ctx,
			`INSERT INTO balance_legend (family, code, description) VALUES ($1, $2, $3)
			ON CONFLICT (family, code) DO UPDATE SET description = excluded.description`,
			e.Family, e.Code, e.Description,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert legend %s/%s", e.Family, e.Code)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: load legend: commit")
	}
	zap.L().Info("sqlite: legend loaded", zap.Int("entries", len(entries)), zap.Int64("upserted", total))
	return total, nil
}

// Truncate deletes every ingestion row, children first. The legend is kept.
func (s *SQLiteStore) Truncate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: truncate: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range truncateTables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return eris.Wrapf(err, "sqlite: truncate %s", table)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: truncate: commit")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: migrate: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := applyMigrations(ctx, sqlExecer{q: tx}, sqliteDialect.name); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: migrate: commit")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
