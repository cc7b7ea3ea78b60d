package schema

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/registry-ingest/internal/model"
)

// BaseColumns is the minimal shape of a facet table created on first use.
var BaseColumns = []string{"id", "entity_id", "effective_date", "raw_payload", "row_hash", "created_at"}

// Catalog is the store capability the Manager evolves. Implementations must
// make CreateTable and AddColumn idempotent: a concurrent creation of the
// same table or column is reported as created=false, not as an error.
type Catalog interface {
	// TableColumns returns the table's columns; an empty map means no table.
	TableColumns(ctx context.Context, table string) (map[string]ColumnType, error)
	CreateTable(ctx context.Context, table string) error
	AddColumn(ctx context.Context, table, column string, typ ColumnType) (bool, error)
}

// Result describes the outcome of an ensure call.
type Result struct {
	Created bool
	Column  string
	Type    ColumnType
}

// Manager caches table shapes for the lifetime of one ingestion and records
// every promotion it performs. It is not safe for concurrent use.
type Manager struct {
	catalog Catalog
	tables  map[string]map[string]ColumnType
	created []model.CreatedColumn
}

// NewManager creates a Manager over the given catalog.
func NewManager(catalog Catalog) *Manager {
	return &Manager{
		catalog: catalog,
		tables:  make(map[string]map[string]ColumnType),
	}
}

// EnsureTable creates table with the minimal facet shape if it does not exist.
func (m *Manager) EnsureTable(ctx context.Context, table string) (bool, error) {
	if !ValidIdentifier(table) {
		return false, eris.Errorf("schema: invalid table name %q", table)
	}
	cols, err := m.columns(ctx, table)
	if err != nil {
		return false, err
	}
	if len(cols) > 0 {
		return false, nil
	}
	if err := m.catalog.CreateTable(ctx, table); err != nil {
		return false, eris.Wrapf(err, "schema: create table %s", table)
	}
	zap.L().Info("schema: created table", zap.String("table", table))
	if _, err := m.refresh(ctx, table); err != nil {
		return false, err
	}
	return true, nil
}

// EnsureTypedColumn adds an already-normalized column with a declared type.
func (m *Manager) EnsureTypedColumn(ctx context.Context, table, column string, typ ColumnType) (Result, error) {
	if !ValidIdentifier(column) {
		return Result{}, eris.Errorf("schema: invalid column name %q", column)
	}
	cols, err := m.columns(ctx, table)
	if err != nil {
		return Result{}, err
	}
	if existing, ok := cols[column]; ok {
		return Result{Column: column, Type: existing}, nil
	}

	created, err := m.catalog.AddColumn(ctx, table, column, typ)
	if err != nil {
		return Result{}, eris.Wrapf(err, "schema: add column %s.%s", table, column)
	}
	if !created {
		// Lost a race: another writer added it, so take whatever type it chose.
		cols, err = m.refresh(ctx, table)
		if err != nil {
			return Result{}, err
		}
		if existing, ok := cols[column]; ok {
			return Result{Column: column, Type: existing}, nil
		}
		return Result{}, eris.Errorf("schema: column %s.%s missing after add", table, column)
	}

	cols[column] = typ
	m.created = append(m.created, model.CreatedColumn{Table: table, Column: column, Type: string(typ)})
	zap.L().Info("schema: promoted column",
		zap.String("table", table),
		zap.String("column", column),
		zap.String("type", string(typ)),
	)
	return Result{Created: true, Column: column, Type: typ}, nil
}

// Created returns the columns promoted so far, in order.
func (m *Manager) Created() []model.CreatedColumn {
	return m.created
}

// Checkpoint returns a marker for Rewind.
func (m *Manager) Checkpoint() int {
	return len(m.created)
}

// Rewind forgets the promotions made after checkpoint and drops every cached
// table shape. Call it after the catalog rolled back to a savepoint.
func (m *Manager) Rewind(checkpoint int) {
	if checkpoint >= 0 && checkpoint < len(m.created) {
		m.created = m.created[:checkpoint]
	}
	m.tables = make(map[string]map[string]ColumnType)
}

func (m *Manager) columns(ctx context.Context, table string) (map[string]ColumnType, error) {
	if cols, ok := m.tables[table]; ok {
		return cols, nil
	}
	return m.refresh(ctx, table)
}

func (m *Manager) refresh(ctx context.Context, table string) (map[string]ColumnType, error) {
	cols, err := m.catalog.TableColumns(ctx, table)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read columns of %s", table)
	}
	if cols == nil {
		cols = make(map[string]ColumnType)
	}
	m.tables[table] = cols
	return cols, nil
}
