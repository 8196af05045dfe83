package views

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	lockStmt      = `SELECT pg_advisory_xact_lock($1)`
	incrementStmt = `UPDATE product SET view_stats = COALESCE(view_stats, 0) + 1 WHERE id = $1`
	topStmt       = `SELECT id, model AS label, COALESCE(view_stats, 0) AS views
FROM product
WHERE COALESCE(view_stats, 0) > 0
ORDER BY views DESC, id
LIMIT $1`
)

// PostgresCounter stores counts in product.view_stats. Each increment runs in its own
// transaction holding a transaction-scoped advisory lock keyed by the product id.
type PostgresCounter struct {
	db *sqlx.DB
}

// NewPostgresCounter returns a counter bound to db.
func NewPostgresCounter(db *sqlx.DB) *PostgresCounter {
	return &PostgresCounter{db: db}
}

// Increment adds one view to id.
func (p *PostgresCounter) Increment(ctx context.Context, id int64) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("views: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, lockStmt, id); err != nil {
		return fmt.Errorf("views: lock %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, incrementStmt, id)
	if err != nil {
		return fmt.Errorf("views: update %d: %w", id, err)
	}
	if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
		err = fmt.Errorf("views: product %d not found", id)
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("views: commit: %w", err)
	}
	return nil
}

// Top returns the n most viewed products.
func (p *PostgresCounter) Top(ctx context.Context, n int) ([]Stat, error) {
	var out []Stat
	if err := p.db.SelectContext(ctx, &out, topStmt, n); err != nil {
		return nil, fmt.Errorf("views: top: %w", err)
	}
	return out, nil
}
