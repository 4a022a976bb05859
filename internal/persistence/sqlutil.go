package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// dbtx is the query surface shared by *sql.DB and *sql.Tx.
// Handlers only ever receive the transaction of the current call.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullStr stores an empty string as NULL.
func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// parseTime parses a timestamp written by formatTime.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}

// queryIDs runs a query returning one integer column.
// The rows are closed before it returns.
func queryIDs(ctx context.Context, q dbtx, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// queryStrings runs a query returning one text column.
func queryStrings(ctx context.Context, q dbtx, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// exists reports whether table has a row with the given id.
// table is always a constant from this package.
func exists(ctx context.Context, q dbtx, table string, id int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking %s %d: %w", table, id, err)
	}
	return n > 0, nil
}

// mustExist returns notFound when table has no row with id.
func mustExist(ctx context.Context, q dbtx, table string, id int64, notFound error) error {
	ok, err := exists(ctx, q, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound
	}
	return nil
}

// mustBelong returns notFound unless table has a row with id whose owner
// column holds ownerID.
func mustBelong(ctx context.Context, q dbtx, table string, id int64, ownerCol string, ownerID int64, notFound error) error {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+table+" WHERE id = ? AND "+ownerCol+" = ?", id, ownerID).Scan(&n)
	if err != nil {
		return fmt.Errorf("checking %s %d: %w", table, id, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// affectedOrNotFound turns a zero-row update into notFound.
func affectedOrNotFound(result sql.Result, notFound error) error {
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return notFound
	}
	return nil
}

// execWithID runs each statement with id as its only argument, stopping at
// the first error.
func execWithID(ctx context.Context, q dbtx, id int64, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	return nil
}
