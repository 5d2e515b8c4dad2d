package query

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// Executor is the SQL client collaborator (§6): it accepts rendered SQL and
// positional parameters and returns result rows or an execution result. The
// core never opens a connection itself; callers supply an Executor, of
// which SQLExecutor (below) is the concrete database/sql-backed default.
type Executor interface {
	Query(ctx context.Context, query string, args []any) ([]map[string]any, error)
	Exec(ctx context.Context, query string, args []any) (rowsAffected int64, lastInsertID int64, err error)
}

// SQLExecutor adapts a *sql.DB (or anything satisfying the same two
// methods) to Executor. It is driver-agnostic: the blank import of
// go-sql-driver/mysql above only registers the "mysql" driver name with
// database/sql, matching the MySQL dialect this module also renders DDL for
// (dialect/mysql); OpenMySQL is a convenience constructor for that case.
type SQLExecutor struct {
	DB *sql.DB
}

// NewSQLExecutor wraps an already-open *sql.DB.
func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{DB: db}
}

// OpenMySQL opens a MySQL connection pool via go-sql-driver/mysql and wraps
// it as an Executor.
func OpenMySQL(dsn string) (*SQLExecutor, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("query: open mysql connection: %w", err)
	}
	return &SQLExecutor{DB: db}, nil
}

// Query runs a SELECT and scans every row into a column-name-keyed map.
func (e *SQLExecutor) Query(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	rows, err := e.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query: read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query: scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: iterate rows: %w", err)
	}
	return out, nil
}

// Exec runs an INSERT/UPDATE/DELETE and returns rows-affected/last-insert-id.
func (e *SQLExecutor) Exec(ctx context.Context, query string, args []any) (int64, int64, error) {
	res, err := e.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("query: execute statement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		lastID = 0
	}
	return affected, lastID, nil
}
