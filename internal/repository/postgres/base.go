package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// count runs a SELECT COUNT(*) against table.
func (r *BaseRepository) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// where accumulates positional predicates for dynamic list queries.
type where struct {
	clauses []string
	args    []interface{}
}

// add appends a predicate; each %d in format is replaced by the next placeholder.
func (w *where) add(format string, args ...interface{}) {
	placeholders := make([]interface{}, len(args))
	for i, a := range args {
		w.args = append(w.args, a)
		placeholders[i] = len(w.args)
	}
	w.clauses = append(w.clauses, fmt.Sprintf(format, placeholders...))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the query and args.
func (w *where) page(query string, limit, offset int) (string, []interface{}) {
	args := append(append([]interface{}{}, w.args...), limit, offset)
	return fmt.Sprintf("%s LIMIT $%d OFFSET $%d", query, len(args)-1, len(args)), args
}
