package database

import (
	"context"
	"database/sql"
	"fmt"
)

// DBQuerier defines the query operations shared by *sql.DB and *sql.Tx so
// repository methods run identically inside and outside transactions.
type DBQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository provides database operations for ingestion state: jobs,
// devices, credentials, files, and the domain watchlist.
type Repository struct {
	db DBQuerier
}

// NewRepository creates a repository backed by the given database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// WithTransaction executes fn within a transaction, committing on nil error
// and rolling back otherwise.
func (r *Repository) WithTransaction(ctx context.Context, fn func(*Repository) error) error {
	sqlDB, ok := r.db.(*sql.DB)
	if !ok {
		return fmt.Errorf("repository not connected to sql.DB")
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txRepo := &Repository{db: tx}
	if err := fn(txRepo); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w): %v", err, rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// inPlaceholders returns "?,?,...,?" with n placeholders.
func inPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
