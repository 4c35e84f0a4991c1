package repository

import (
	"context"
	"errors"
	"fmt"

	"dota-pipeline/internal/constants"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// MaterializedViews are refreshed after every load.
var MaterializedViews = []string{"mv_player_kda_period", "mv_hero_win_rates"}

type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With().Str("store", "postgres").Logger(),
	}
}

func (s *PostgresStore) Upsert(ctx context.Context, table TableSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	query, args, err := buildUpsert(table, rows, dollar)
	if err != nil {
		return 0, err
	}

	var affected int64
	err = withRetry(ctx, s.logger, "upsert "+table.Name, pgTransient, func() error {
		tag, err := s.pool.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", table.Name, err)
	}
	return affected, nil
}

func (s *PostgresStore) Count(ctx context.Context, table string, filter Filter) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	if filter.IsZero() {
		var n int64
		if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		return n, nil
	}
	if err := checkIdent(filter.Column); err != nil {
		return 0, err
	}

	var total int64
	for _, chunk := range chunkIDs(uniqueIDs(filter.IDs), constants.UpsertChunkSize) {
		var n int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ANY($1)", table, filter.Column)
		if err := s.pool.QueryRow(ctx, query, chunk).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

func (s *PostgresStore) SelectIDs(ctx context.Context, table, column string, ids []int64) ([]int64, error) {
	if err := checkIdent(table, column); err != nil {
		return nil, err
	}

	found := make([]int64, 0, len(ids))
	for _, chunk := range chunkIDs(uniqueIDs(ids), constants.UpsertChunkSize) {
		query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s = ANY($1)", column, table, column)
		rows, err := s.pool.Query(ctx, query, chunk)
		if err != nil {
			return nil, fmt.Errorf("select %s.%s: %w", table, column, err)
		}
		got, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return nil, fmt.Errorf("select %s.%s: %w", table, column, err)
		}
		found = append(found, got...)
	}
	return found, nil
}

func (s *PostgresStore) RefreshViews(ctx context.Context) error {
	for _, view := range MaterializedViews {
		if _, err := s.pool.Exec(ctx, "REFRESH MATERIALIZED VIEW "+view); err != nil {
			return fmt.Errorf("refresh %s: %w", view, err)
		}
		s.logger.Debug().Str("view", view).Msg("materialized view refreshed")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgTransient(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
