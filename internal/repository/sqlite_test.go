package repository

import (
	"context"
	"path/filepath"
	"testing"

	"dota-pipeline/internal/database"
	"dota-pipeline/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	zeroHero        domain.Hero
	zeroItem        domain.Item
	zeroPlayer      domain.PlayerProfile
	zeroMatch       domain.Match
	zeroPlayerMatch domain.PlayerMatch
	zeroInterval    domain.IntervalKDA
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	s := NewSQLiteStore(db, zerolog.Nop())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func seedRows() (players, matches, playerMatches [][]any) {
	players = [][]any{
		PlayerRow(domain.PlayerProfile{PlayerID: 1, PersonaName: "one"}),
		PlayerRow(domain.PlayerProfile{PlayerID: 2, PersonaName: "two", RankTier: ptr(int64(80))}),
	}
	matches = [][]any{
		MatchRow(domain.Match{MatchID: 100, LeagueID: 15000, RadiantWin: true}),
	}
	playerMatches = [][]any{
		PlayerMatchRow(domain.PlayerMatch{MatchID: 100, PlayerID: ptr(int64(1)), Kills: 5, Item0: ptr(int64(0))}),
		PlayerMatchRow(domain.PlayerMatch{MatchID: 100, PlayerID: ptr(int64(2)), IsRoaming: ptr(true)}),
	}
	return players, matches, playerMatches
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	players, matches, playerMatches := seedRows()

	for i := 0; i < 2; i++ {
		_, err := s.Upsert(ctx, PlayersTable, players)
		require.NoError(t, err)
		_, err = s.Upsert(ctx, MatchesTable, matches)
		require.NoError(t, err)
		n, err := s.Upsert(ctx, PlayerMatchesTable, playerMatches)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	}

	n, err := s.Count(ctx, "players", Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Count(ctx, "player_matches", Filter{Column: "match_id", IDs: []int64{100, 100, 101}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ids, err := s.SelectIDs(ctx, "players", "player_id", []int64{1, 2, 3})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids)

	ids, err = s.SelectIDs(ctx, "matches", "match_id", nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// updates land in place
	_, err = s.Upsert(ctx, PlayersTable, [][]any{PlayerRow(domain.PlayerProfile{PlayerID: 1, PersonaName: "renamed"})})
	require.NoError(t, err)
	n, err = s.Count(ctx, "players", Filter{Column: "player_id", IDs: []int64{1}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// dangling reference is rejected by the schema
	_, err = s.Upsert(ctx, PlayerMatchesTable, [][]any{
		PlayerMatchRow(domain.PlayerMatch{MatchID: 100, PlayerID: ptr(int64(999))}),
	})
	assert.Error(t, err)

	_, err = s.Count(ctx, "players; --", Filter{})
	assert.Error(t, err)

	counts, err := CountAll(ctx, s)
	require.NoError(t, err)
	require.Len(t, counts, len(Tables))
	assert.Equal(t, TableCount{Table: "players", Rows: 2}, counts[2])

	assert.NoError(t, s.RefreshViews(ctx))
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newSQLiteStore(t))
}

func TestSQLiteStore_EmptyUpsert(t *testing.T) {
	s := newSQLiteStore(t)
	n, err := s.Upsert(context.Background(), PlayersTable, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
