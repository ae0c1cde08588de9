// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// and placeholder rewriting for drivers that do not speak $N.
package dbx

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect selects the placeholder style a query is rendered with.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Rebind rewrites $1..$N placeholders to ? for SQLite. Postgres queries are
// returned unchanged. Queries must reference each placeholder in ascending
// order when targeting SQLite.
func Rebind(d Dialect, query string) string {
	if d != SQLite {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte('$')
			continue
		}
		if _, err := strconv.Atoi(query[i+1 : j]); err != nil {
			b.WriteString(query[i:j])
		} else {
			b.WriteByte('?')
		}
		i = j - 1
	}
	return b.String()
}
