package query

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/facetbot/core/logger"
)

// SQLExecutor runs queries against the catalog database.
type SQLExecutor struct {
	db     *sqlx.DB
	schema Schema
}

// NewSQLExecutor returns an executor bound to db.
func NewSQLExecutor(db *sqlx.DB, schema Schema) *SQLExecutor {
	return &SQLExecutor{db: db, schema: schema}
}

type scanRow struct {
	ID          sql.NullInt64   `db:"id"`
	Label       sql.NullString  `db:"label"`
	Value       sql.NullFloat64 `db:"value"`
	Description sql.NullString  `db:"description"`
	DocURL      sql.NullString  `db:"doc_url"`
	ImageURL    sql.NullString  `db:"image_url"`
}

// Execute renders q and selects its rows. Every failure is a *QueryExecutionError.
func (e *SQLExecutor) Execute(ctx context.Context, q *Query) ([]Row, error) {
	stmt, args, err := q.SQL(e.schema)
	if err != nil {
		return nil, &QueryExecutionError{Target: q.Target, Err: err}
	}
	stmt = e.db.Rebind(stmt)

	start := time.Now()
	var scanned []scanRow
	err = e.db.SelectContext(ctx, &scanned, stmt, args...)
	took := logger.Took(start)
	if err != nil {
		logger.Warn(ctx, logger.CompQuery, "query.execute",
			slog.String("status", "fail"),
			slog.Int("position", q.Target),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return nil, &QueryExecutionError{Target: q.Target, Err: err}
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, logger.CompQuery, "query.execute",
			slog.String("status", "ok"),
			slog.Int("position", q.Target),
			slog.Int("count", len(scanned)),
			slog.Duration("duration", took),
			slog.String("sql", stmt),
		)
	}

	rows := make([]Row, 0, len(scanned))
	for _, s := range scanned {
		r := Row{
			ID:          s.ID.Int64,
			Label:       s.Label.String,
			Description: s.Description.String,
			DocURL:      s.DocURL.String,
			ImageURL:    s.ImageURL.String,
		}
		if s.Value.Valid {
			v := s.Value.Float64
			r.Raw = &v
		}
		rows = append(rows, r)
	}
	return rows, nil
}
