package store

import (
	"context"
	"embed"
	"io/fs"
	"path"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationFS embed.FS

// migrationLockID keys the Postgres advisory lock held while migrating.
const migrationLockID int64 = 7351902

// truncateTables lists every ingestion table, children before parents.
var truncateTables = []string{
	"unknown_fields", "financial_line_items", "classifications", "addresses", "contacts",
	"raw_sections", "entity_versions", "ingestion_runs", "unmapped_codes", "companies",
}

// applyMigrations runs the dialect's pending .sql files in lexicographic
// order and records each in schema_migrations.
func applyMigrations(ctx context.Context, ex execer, dialectName string) error {
	log := zap.L().With(zap.String("component", "store.migrate"), zap.String("dialect", dialectName))

	if _, err := ex.exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return eris.Wrap(err, "store: ensure migration table")
	}

	dir := path.Join("migrations", dialectName)
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return eris.Wrapf(err, "store: read migration dir %s", dir)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	applied, err := appliedMigrations(ctx, ex)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if applied[name] || path.Ext(name) != ".sql" {
			continue
		}
		data, err := migrationFS.ReadFile(path.Join(dir, name))
		if err != nil {
			return eris.Wrapf(err, "store: read migration %s", name)
		}

		log.Info("applying migration", zap.String("file", name))
		if _, err := ex.exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "store: apply migration %s", name)
		}
		if _, err := ex.exec(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, $2)`,
			name, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return eris.Wrapf(err, "store: record migration %s", name)
		}
	}
	return nil
}

func appliedMigrations(ctx context.Context, ex execer) (map[string]bool, error) {
	rows, err := ex.query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "store: scan migration row")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "store: iterate migrations")
}
