package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// Queries provides access to named SQL queries loaded from embedded .sql files.
// Uses dotsql for named query management and sqlx for database operations.
type Queries struct {
	runner
	db *sqlx.DB
}

// Tx runs named queries inside a transaction opened by Queries.InTx.
type Tx struct {
	runner
}

// runner executes named queries against a DB or a Tx.
type runner struct {
	dot *dotsql.DotSql
	ext sqlx.ExtContext
}

// LoadQueries loads all .sql files from embedded filesystem and returns Queries instance.
// Named queries are addressed by their "-- name:" tag (e.g. "list-binds").
func LoadQueries(db *sqlx.DB) (*Queries, error) {
	var combined strings.Builder

	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}

		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		combined.Write(content)
		combined.WriteByte('\n')
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load query files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combined.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}

	return &Queries{runner: runner{dot: dot, ext: db}, db: db}, nil
}

// DB returns the underlying connection pool.
func (q *Queries) DB() *sqlx.DB { return q.db }

// InTx runs fn in a transaction, committing when fn returns nil and rolling
// back otherwise.
func (q *Queries) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Tx{runner: runner{dot: q.dot, ext: tx}}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Exec executes a named query, rebinding ? placeholders for the driver.
func (r runner) Exec(ctx context.Context, name string, args ...any) (sql.Result, error) {
	query, err := r.raw(name)
	if err != nil {
		return nil, err
	}
	return r.ext.ExecContext(ctx, query, args...)
}

// Get retrieves a single row into dest struct using named query.
// Returns sql.ErrNoRows unwrapped when nothing matches.
func (r runner) Get(ctx context.Context, name string, dest any, args ...any) error {
	query, err := r.raw(name)
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, r.ext, dest, query, args...)
}

// Select retrieves multiple rows into dest slice using named query.
func (r runner) Select(ctx context.Context, name string, dest any, args ...any) error {
	query, err := r.raw(name)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, r.ext, dest, query, args...)
}

func (r runner) raw(name string) (string, error) {
	query, err := r.dot.Raw(name)
	if err != nil {
		return "", fmt.Errorf("query not found: %s", name)
	}
	return r.ext.Rebind(query), nil
}
