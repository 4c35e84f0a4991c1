package service

import (
	"context"
	"fmt"
	"time"

	"dota-pipeline/internal/constants"
	"dota-pipeline/internal/domain"
	"dota-pipeline/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Loader struct {
	store     repository.Store
	chunkSize int
	logger    zerolog.Logger
}

func NewLoader(store repository.Store, logger zerolog.Logger) *Loader {
	return &Loader{
		store:     store,
		chunkSize: constants.UpsertChunkSize,
		logger:    logger.With().Str("component", "loader").Logger(),
	}
}

type tableWrite struct {
	spec repository.TableSpec
	rows [][]any
}

// loadSet is a payload reduced to one row per conflict key.
type loadSet struct {
	heroes        []domain.Hero
	items         []domain.Item
	players       []domain.PlayerProfile
	matches       []domain.Match
	playerMatches []domain.PlayerMatch
	intervals     []domain.IntervalKDA
}

type playerMatchKey struct {
	matchID, playerID int64
}

type intervalKey struct {
	matchID, playerID, start int64
}

func newLoadSet(p domain.Payload) loadSet {
	return loadSet{
		heroes:  dedupe(p.Heroes, func(h domain.Hero) int64 { return h.HeroID }),
		items:   dedupe(p.Items, func(it domain.Item) int64 { return it.ItemID }),
		players: dedupe(p.Players, func(pl domain.PlayerProfile) int64 { return pl.PlayerID }),
		matches: dedupe(p.Matches, func(m domain.Match) int64 { return m.MatchID }),
		playerMatches: dedupe(p.PlayerMatches, func(pm domain.PlayerMatch) playerMatchKey {
			return playerMatchKey{pm.MatchID, *pm.PlayerID}
		}),
		intervals: dedupe(p.IntervalStats, func(iv domain.IntervalKDA) intervalKey {
			return intervalKey{iv.MatchID, *iv.PlayerID, iv.IntervalStart}
		}),
	}
}

// dedupe keeps one row per key: the last occurrence, at the position of the first.
func dedupe[T any, K comparable](rows []T, key func(T) K) []T {
	index := make(map[K]int, len(rows))
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		k := key(r)
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

func toRows[T any](items []T, row func(T) []any) [][]any {
	rows := make([][]any, len(items))
	for i, it := range items {
		rows[i] = row(it)
	}
	return rows
}

// writes lists the tables in dependency order.
func (s loadSet) writes() []tableWrite {
	return []tableWrite{
		{repository.HeroesTable, toRows(s.heroes, repository.HeroRow)},
		{repository.ItemsTable, toRows(s.items, repository.ItemRow)},
		{repository.PlayersTable, toRows(s.players, repository.PlayerRow)},
		{repository.MatchesTable, toRows(s.matches, repository.MatchRow)},
		{repository.PlayerMatchesTable, toRows(s.playerMatches, repository.PlayerMatchRow)},
		{repository.IntervalStatsTable, toRows(s.intervals, repository.IntervalRow)},
	}
}

// Load validates the payload, upserts it table by table and audits the
// result. A payload with dangling references is rejected before any write.
// Failed chunks and audit mismatches are reported, not returned as errors.
func (l *Loader) Load(ctx context.Context, p domain.Payload) (*domain.LoadReport, error) {
	report := &domain.LoadReport{
		LoadID:    uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := l.logger.With().Str("load_id", report.LoadID).Logger()

	if err := ValidatePayload(p); err != nil {
		log.Error().Err(err).Msg("payload rejected")
		return nil, err
	}

	set := newLoadSet(p)
	for _, w := range set.writes() {
		tl, err := l.upsertTable(ctx, w)
		report.Tables = append(report.Tables, tl)
		if err != nil {
			log.Error().Err(err).Str("table", w.spec.Name).Msg("load aborted")
			return nil, fmt.Errorf("load %s: %w", w.spec.Name, err)
		}
	}

	if err := l.store.RefreshViews(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to refresh views")
	} else {
		report.ViewsRefreshed = true
	}

	report.RowCounts = l.auditRowCounts(ctx, set)
	report.ForeignKeys = l.auditForeignKeys(ctx, set)
	report.FinishedAt = time.Now().UTC()
	report.OK = report.FailedChunks() == 0 && report.AuditOK()

	log.Info().
		Int("failed_chunks", report.FailedChunks()).
		Bool("audit_ok", report.AuditOK()).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("load completed")
	return report, nil
}

func (l *Loader) upsertTable(ctx context.Context, w tableWrite) (domain.TableLoad, error) {
	tl := domain.TableLoad{Table: w.spec.Name, Rows: len(w.rows)}

	for offset := 0; offset < len(w.rows); offset += l.chunkSize {
		if err := ctx.Err(); err != nil {
			return tl, err
		}
		end := offset + l.chunkSize
		if end > len(w.rows) {
			end = len(w.rows)
		}
		chunk := w.rows[offset:end]

		n, err := l.store.Upsert(ctx, w.spec, chunk)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return tl, ctxErr
			}
			l.logger.Error().Err(err).Str("table", w.spec.Name).Int("offset", offset).Int("rows", len(chunk)).Msg("chunk upsert failed")
			tl.FailedChunks = append(tl.FailedChunks, domain.ChunkFailure{Offset: offset, Rows: len(chunk), Error: err.Error()})
			continue
		}
		tl.Upserted += n
	}

	l.logger.Debug().Str("table", w.spec.Name).Int("rows", tl.Rows).Int64("upserted", tl.Upserted).Msg("table loaded")
	return tl, nil
}

func (l *Loader) auditRowCounts(ctx context.Context, s loadSet) []domain.RowCountCheck {
	ids := func(n int, id func(int) int64) []int64 {
		out := make([]int64, n)
		for i := range out {
			out[i] = id(i)
		}
		return out
	}

	checks := []struct {
		table    string
		expected int
		filter   repository.Filter
	}{
		{"heroes", len(s.heroes), repository.Filter{Column: "hero_id", IDs: ids(len(s.heroes), func(i int) int64 { return s.heroes[i].HeroID })}},
		{"items", len(s.items), repository.Filter{Column: "item_id", IDs: ids(len(s.items), func(i int) int64 { return s.items[i].ItemID })}},
		{"players", len(s.players), repository.Filter{Column: "player_id", IDs: ids(len(s.players), func(i int) int64 { return s.players[i].PlayerID })}},
		{"matches", len(s.matches), repository.Filter{Column: "match_id", IDs: ids(len(s.matches), func(i int) int64 { return s.matches[i].MatchID })}},
		{"player_matches", len(s.playerMatches), repository.Filter{Column: "match_id", IDs: ids(len(s.playerMatches), func(i int) int64 { return s.playerMatches[i].MatchID })}},
		{"interval_stats", len(s.intervals), repository.Filter{Column: "match_id", IDs: ids(len(s.intervals), func(i int) int64 { return s.intervals[i].MatchID })}},
	}

	out := make([]domain.RowCountCheck, 0, len(checks))
	for _, c := range checks {
		check := domain.RowCountCheck{Table: c.table, Expected: int64(c.expected)}
		if c.expected > 0 {
			actual, err := l.store.Count(ctx, c.table, c.filter)
			if err != nil {
				check.Error = err.Error()
				out = append(out, check)
				continue
			}
			check.Actual = actual
		}
		check.OK = check.Actual == check.Expected
		if !check.OK {
			l.logger.Warn().Str("table", c.table).Int64("expected", check.Expected).Int64("actual", check.Actual).Msg("row count mismatch")
		}
		out = append(out, check)
	}
	return out
}

func (l *Loader) auditForeignKeys(ctx context.Context, s loadSet) []domain.ForeignKeyCheck {
	var pmPlayers, pmMatches, ivPlayers, ivMatches []int64
	for _, pm := range s.playerMatches {
		pmPlayers = append(pmPlayers, *pm.PlayerID)
		pmMatches = append(pmMatches, pm.MatchID)
	}
	for _, iv := range s.intervals {
		ivPlayers = append(ivPlayers, *iv.PlayerID)
		ivMatches = append(ivMatches, iv.MatchID)
	}

	type fkCheck struct {
		source, target, column string
		ids                    []int64
		advisory               bool
	}
	checks := []fkCheck{
		{"player_matches.player_id", "players", "player_id", pmPlayers, false},
		{"player_matches.match_id", "matches", "match_id", pmMatches, false},
		{"interval_stats.player_id", "players", "player_id", ivPlayers, false},
		{"interval_stats.match_id", "matches", "match_id", ivMatches, false},
	}
	// heroes are reference data fetched best-effort, so a gap is only reported
	if len(s.heroes) > 0 {
		var heroIDs []int64
		for _, pm := range s.playerMatches {
			if pm.HeroID > 0 {
				heroIDs = append(heroIDs, pm.HeroID)
			}
		}
		checks = append(checks, fkCheck{"player_matches.hero_id", "heroes", "hero_id", heroIDs, true})
	}

	out := make([]domain.ForeignKeyCheck, 0, len(checks))
	for _, c := range checks {
		referenced := distinct(c.ids)
		check := domain.ForeignKeyCheck{Source: c.source, Target: c.target, Referenced: len(referenced), Advisory: c.advisory}
		if len(referenced) > 0 {
			found, err := l.store.SelectIDs(ctx, c.target, c.column, referenced)
			if err != nil {
				check.Error = err.Error()
				out = append(out, check)
				continue
			}
			check.Missing = len(referenced) - len(distinct(found))
		}
		check.OK = check.Missing == 0
		if !check.OK {
			l.logger.Warn().Str("source", c.source).Int("missing", check.Missing).Bool("advisory", c.advisory).Msg("foreign key audit failed")
		}
		out = append(out, check)
	}
	return out
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
