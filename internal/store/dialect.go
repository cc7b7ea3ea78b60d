package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sells-group/registry-ingest/internal/db"
	"github.com/sells-group/registry-ingest/internal/schema"
)

// dialect holds the SQL that differs between backends.
type dialect struct {
	name       string
	types      map[schema.ColumnType]string
	jsonType   string
	columnsSQL string
	// distinct is the null-safe inequality operator.
	distinct    string
	isDuplicate func(err error) bool
}

var postgresDialect = dialect{
	name: "postgres",
	types: map[schema.ColumnType]string{
		schema.Text:      "TEXT",
		schema.Boolean:   "BOOLEAN",
		schema.Integer:   "BIGINT",
		schema.Decimal:   "NUMERIC",
		schema.Timestamp: "TIMESTAMPTZ",
		schema.Date:      "DATE",
	},
	jsonType: "JSON",
	columnsSQL: `SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1`,
	distinct: "IS DISTINCT FROM",
	isDuplicate: func(err error) bool {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			return false
		}
		switch pgErr.Code {
		case "42701", "42P07", "23505": // duplicate_column, duplicate_table, unique_violation on catalogs
			return true
		}
		return false
	},
}

var sqliteDialect = dialect{
	name: "sqlite",
	types: map[schema.ColumnType]string{
		schema.Text:      "TEXT",
		schema.Boolean:   "BOOLEAN",
		schema.Integer:   "INTEGER",
		schema.Decimal:   "NUMERIC",
		schema.Timestamp: "DATETIME",
		schema.Date:      "DATE",
	},
	jsonType:   "TEXT",
	columnsSQL: `SELECT name, type FROM pragma_table_info($1)`,
	distinct:   "IS NOT",
	isDuplicate: func(err error) bool {
		msg := strings.ToLower(err.Error())
		return strings.Contains(msg, "duplicate column name") || strings.Contains(msg, "already exists")
	},
}

func (d dialect) columnType(t schema.ColumnType) string {
	if s, ok := d.types[t]; ok {
		return s
	}
	return d.types[schema.Text]
}

// createFacetTableSQL renders the minimal facet table shape.
func (d dialect) createFacetTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id             TEXT PRIMARY KEY,
	entity_id      TEXT NOT NULL REFERENCES companies (entity_id),
	effective_date %s,
	raw_payload    %s,
	row_hash       TEXT NOT NULL,
	created_at     %s NOT NULL,
	UNIQUE (entity_id, row_hash)
)`, db.QuoteIdent(table), d.columnType(schema.Date), d.jsonType, d.columnType(schema.Timestamp))
}

func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}
