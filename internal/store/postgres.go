package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/registry-ingest/internal/db"
	"github.com/sells-group/registry-ingest/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) ex() execer {
	return pgxExecer{q: s.pool}
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	return &sqlTx{
		ex:       pgxExecer{q: tx},
		d:        postgresDialect,
		commit:   tx.Commit,
		rollback: tx.Rollback,
	}, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.IngestionRun) error {
	return saveRun(ctx, s.ex(), run)
}

func (s *PostgresStore) GetRun(ctx context.Context, ingestionID string) (*model.IngestionRun, error) {
	return getRun(ctx, s.ex(), ingestionID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestionRun, error) {
	return listRuns(ctx, s.ex(), filter)
}

func (s *PostgresStore) LatestCompany(ctx context.Context) (*model.CompanyReport, error) {
	return latestCompany(ctx, s.ex())
}

func (s *PostgresStore) FinancialSummary(ctx context.Context, entityID string) ([]model.FinancialGroup, error) {
	return financialSummary(ctx, s.ex(), entityID)
}

func (s *PostgresStore) UnmappedCodes(ctx context.Context, limit int) ([]model.UnmappedCode, error) {
	return unmappedCodes(ctx, s.ex(), limit)
}

// LoadLegend bulk-upserts the reference table through a COPY staging table.
func (s *PostgresStore) LoadLegend(ctx context.Context, entries []model.LegendEntry) (int64, error) {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.Family, e.Code, e.Description})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "balance_legend",
		Columns:      []string{"family", "code", "description"},
		ConflictKeys: []string{"family", "code"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: load legend")
	}
	zap.L().Info("postgres: legend loaded", zap.Int("entries", len(entries)), zap.Int64("upserted", n))
	return n, nil
}

// Truncate empties every ingestion table in one statement. The legend is kept.
func (s *PostgresStore) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE TABLE "+db.QuoteJoin(truncateTables))
	return eris.Wrap(err, "postgres: truncate")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: migrate: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serializes concurrent migrators; released at commit.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration lock")
	}
	if err := applyMigrations(ctx, pgxExecer{q: tx}, postgresDialect.name); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: migrate: commit")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
