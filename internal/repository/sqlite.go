package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dota-pipeline/internal/constants"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSQLiteStore(db *sql.DB, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		logger: logger.With().Str("store", "sqlite").Logger(),
	}
}

func (s *SQLiteStore) Upsert(ctx context.Context, table TableSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	query, args, err := buildUpsert(table, rows, questionMark)
	if err != nil {
		return 0, err
	}

	var affected int64
	err = withRetry(ctx, s.logger, "upsert "+table.Name, sqliteTransient, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if affected, err = res.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", table.Name, err)
	}
	return affected, nil
}

func (s *SQLiteStore) Count(ctx context.Context, table string, filter Filter) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	if filter.IsZero() {
		var n int64
		err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		return n, nil
	}
	if err := checkIdent(filter.Column); err != nil {
		return 0, err
	}

	var total int64
	for _, chunk := range chunkIDs(uniqueIDs(filter.IDs), constants.UpsertChunkSize) {
		cond, args := buildIn(filter.Column, chunk, questionMark)
		var n int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, cond)
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

func (s *SQLiteStore) SelectIDs(ctx context.Context, table, column string, ids []int64) ([]int64, error) {
	if err := checkIdent(table, column); err != nil {
		return nil, err
	}

	found := make([]int64, 0, len(ids))
	for _, chunk := range chunkIDs(uniqueIDs(ids), constants.UpsertChunkSize) {
		cond, args := buildIn(column, chunk, questionMark)
		query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s", column, table, cond)
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("select %s.%s: %w", table, column, err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			found = append(found, id)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return found, nil
}

// RefreshViews is a no-op: the SQLite schema has no materialized views.
func (s *SQLiteStore) RefreshViews(context.Context) error {
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
