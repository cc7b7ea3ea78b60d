package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// execer is the query surface shared by both backends. Queries use $n
// placeholders; the SQLite adapter rewrites them.
type execer interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	query(ctx context.Context, query string, args ...any) (rowSet, error)
	queryRow(ctx context.Context, query string, args ...any) scanner
}

type scanner interface {
	Scan(dest ...any) error
}

type rowSet interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// pgxQuerier is satisfied by db.Pool and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxExecer struct {
	q pgxQuerier
}

func (e pgxExecer) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := e.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (e pgxExecer) query(ctx context.Context, query string, args ...any) (rowSet, error) {
	return e.q.Query(ctx, query, args...)
}

func (e pgxExecer) queryRow(ctx context.Context, query string, args ...any) scanner {
	return e.q.QueryRow(ctx, query, args...)
}

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlExecer struct {
	q sqlQuerier
}

func (e sqlExecer) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := e.q.ExecContext(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (e sqlExecer) query(ctx context.Context, query string, args ...any) (rowSet, error) {
	rows, err := e.q.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (e sqlExecer) queryRow(ctx context.Context, query string, args ...any) scanner {
	return e.q.QueryRowContext(ctx, rebind(query), args...)
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	_ = r.Rows.Close()
}

var placeholderRe = regexp.MustCompile(`\$([0-9]+)`)

// rebind turns $n placeholders into SQLite's numbered ?n form, which keeps
// repeated parameters bound to the same argument.
func rebind(query string) string {
	return placeholderRe.ReplaceAllString(query, "?$1")
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}
