package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpsert(t *testing.T) {
	spec := TableSpec{Name: "items", Columns: []string{"item_id", "item_key", "cost"}, Conflict: []string{"item_id"}}
	rows := [][]any{{int64(1), "blink", int64(2250)}, {int64(44), "tango", int64(90)}}

	query, args, err := buildUpsert(spec, rows, questionMark)
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO items (item_id, item_key, cost) VALUES (?, ?, ?), (?, ?, ?) "+
			"ON CONFLICT (item_id) DO UPDATE SET item_key = excluded.item_key, cost = excluded.cost",
		query)
	assert.Len(t, args, 6)

	query, _, err = buildUpsert(spec, rows[:1], dollar)
	require.NoError(t, err)
	assert.Contains(t, query, "VALUES ($1, $2, $3) ON CONFLICT")
}

func TestBuildUpsert_KeyOnly(t *testing.T) {
	spec := TableSpec{Name: "tags", Columns: []string{"a", "b"}, Conflict: []string{"a", "b"}}
	query, _, err := buildUpsert(spec, [][]any{{1, 2}}, questionMark)
	require.NoError(t, err)
	assert.Contains(t, query, "ON CONFLICT (a, b) DO NOTHING")
}

func TestBuildUpsert_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec TableSpec
		rows [][]any
	}{
		{"bad table", TableSpec{Name: "items; drop", Columns: []string{"a"}, Conflict: []string{"a"}}, [][]any{{1}}},
		{"bad column", TableSpec{Name: "items", Columns: []string{"A-b"}, Conflict: []string{"A-b"}}, [][]any{{1}}},
		{"no key", TableSpec{Name: "items", Columns: []string{"a"}}, [][]any{{1}}},
		{"short row", TableSpec{Name: "items", Columns: []string{"a", "b"}, Conflict: []string{"a"}}, [][]any{{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := buildUpsert(tt.spec, tt.rows, questionMark)
			assert.Error(t, err)
		})
	}
}

func TestTableRowsMatchColumns(t *testing.T) {
	assert.Len(t, HeroRow(zeroHero), len(HeroesTable.Columns))
	assert.Len(t, ItemRow(zeroItem), len(ItemsTable.Columns))
	assert.Len(t, PlayerRow(zeroPlayer), len(PlayersTable.Columns))
	assert.Len(t, MatchRow(zeroMatch), len(MatchesTable.Columns))
	assert.Len(t, PlayerMatchRow(zeroPlayerMatch), len(PlayerMatchesTable.Columns))
	assert.Len(t, IntervalRow(zeroInterval), len(IntervalStatsTable.Columns))
}

func TestChunkIDs(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5}
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}, {5}}, chunkIDs(ids, 2))
	assert.Nil(t, chunkIDs(nil, 2))
	assert.Equal(t, []int64{3, 1, 2}, uniqueIDs([]int64{3, 1, 3, 2, 1}))
}
