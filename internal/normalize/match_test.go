package normalize

import (
	"bytes"
	"encoding/json"
	"testing"

	"dota-pipeline/internal/domain"
	"dota-pipeline/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func events(times ...any) []any {
	out := make([]any, 0, len(times))
	for _, t := range times {
		out = append(out, map[string]any{"time": t})
	}
	return out
}

func TestBucketEvents(t *testing.T) {
	assert.Equal(t, map[int64]int64{0: 2, 300: 1}, BucketEvents(events(10, 299, 305), 300))
	assert.Equal(t, map[int64]int64{-300: 1, 0: 1}, BucketEvents(events(-30, 0), 300))
	assert.Empty(t, BucketEvents(nil, 300))

	// entries without a time are skipped
	withGaps := append(events(61), map[string]any{"key": "x"}, "junk")
	assert.Equal(t, map[int64]int64{60: 1}, BucketEvents(withGaps, 60))
}

func TestBucketStart(t *testing.T) {
	tests := []struct {
		t, w, want int64
	}{
		{0, 300, 0},
		{299, 300, 0},
		{300, 300, 300},
		{-1, 300, -300},
		{-300, 300, -300},
		{-301, 300, -600},
		{125, 60, 120},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketStart(tt.t, tt.w), "t=%d w=%d", tt.t, tt.w)
	}
}

func fixtureMatch() domain.RawDocument {
	known := testutils.Player(555, 0)
	known.Kills, known.Deaths, known.Assists = 3, 1, 2
	known.KillTimes = []int{10, 299}
	known.DeathTimes = []int{305}
	known.Purchases = []testutils.PurchaseFixture{{Time: -40, Key: "tango"}, {Time: 600, Key: "blink"}}

	anon := testutils.AnonymousPlayer(128)
	anon.AssistTimes = []int{900}

	return testutils.MatchDocument(7001, 15000, known, anon)
}

func TestNormalizeMatch(t *testing.T) {
	nm, err := NormalizeMatch(fixtureMatch(), 300)
	require.NoError(t, err)

	assert.Equal(t, int64(7001), nm.Match.MatchID)
	assert.Equal(t, int64(15000), nm.Match.LeagueID)
	assert.Equal(t, int64(2400), nm.Match.Duration)
	assert.True(t, nm.Match.RadiantWin)
	assert.Equal(t, int64(30), nm.Match.RadiantScore)
	assert.Zero(t, nm.Match.Patch)
	require.Len(t, nm.Players, 2)

	p := nm.Players[0]
	require.NotNil(t, p.Performance.PlayerID)
	assert.Equal(t, int64(555), *p.Performance.PlayerID)
	assert.True(t, p.Performance.IsRadiant)
	assert.True(t, p.Performance.Win)
	assert.Equal(t, 5.0, p.Performance.KDA)
	assert.Zero(t, p.Performance.NetWorth)
	assert.Nil(t, p.Performance.Lane)
	assert.Nil(t, p.Performance.Item0)
	require.NotNil(t, p.Profile)
	assert.Equal(t, int64(555), p.Profile.PlayerID)

	require.Len(t, p.Purchases, 2)
	assert.Equal(t, int64(-40), p.Purchases[0].Time)
	assert.Equal(t, "tango", p.Purchases[0].Item)
	assert.Equal(t, "blink", p.Purchases[1].Item)

	require.Len(t, p.Intervals, 2)
	assert.Equal(t, int64(0), p.Intervals[0].IntervalStart)
	assert.Equal(t, int64(300), p.Intervals[0].IntervalEnd)
	assert.Equal(t, int64(2), p.Intervals[0].Kills)
	assert.Zero(t, p.Intervals[0].Deaths)
	assert.Equal(t, int64(300), p.Intervals[1].IntervalStart)
	assert.Equal(t, int64(1), p.Intervals[1].Deaths)

	anon := nm.Players[1]
	assert.Nil(t, anon.Performance.PlayerID)
	assert.Nil(t, anon.Profile)
	assert.False(t, anon.Performance.IsRadiant)
	assert.False(t, anon.Performance.Win)
	assert.Empty(t, anon.Purchases)
	require.Len(t, anon.Intervals, 1)
	assert.Equal(t, int64(900), anon.Intervals[0].IntervalStart)
	assert.Equal(t, int64(1), anon.Intervals[0].Assists)
	assert.Nil(t, anon.Intervals[0].PlayerID)
}

func TestNormalizeMatch_DecodedJSON(t *testing.T) {
	body := []byte(`{
		"match_id": 8123456789,
		"radiant_win": false,
		"start_time": 1717171717,
		"duration": 1800,
		"leagueid": 16935,
		"radiant_team": {"name": "Team Spirit"},
		"players": [{
			"account_id": 86745912,
			"player_slot": 132,
			"hero_id": 8,
			"win": 1,
			"kills": 11,
			"lane": 1,
			"is_roaming": false,
			"item_0": 0,
			"kda": 4.5,
			"kills_log": [{"time": 612, "key": "npc_dota_hero_lion"}],
			"purchase_log": null
		}]
	}`)
	var raw domain.RawDocument
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&raw))

	nm, err := NormalizeMatch(raw, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(8123456789), nm.Match.MatchID)
	assert.Equal(t, "Team Spirit", nm.Match.RadiantName)

	p := nm.Players[0].Performance
	assert.Equal(t, int64(86745912), *p.PlayerID)
	assert.False(t, p.IsRadiant)
	assert.True(t, p.Win)
	assert.Equal(t, 4.5, p.KDA)
	require.NotNil(t, p.Lane)
	assert.Equal(t, int64(1), *p.Lane)
	require.NotNil(t, p.IsRoaming)
	assert.False(t, *p.IsRoaming)
	require.NotNil(t, p.Item0)
	assert.Zero(t, *p.Item0)
	assert.Empty(t, nm.Players[0].Purchases)
	require.Len(t, nm.Players[0].Intervals, 1)
	assert.Equal(t, int64(600), nm.Players[0].Intervals[0].IntervalStart)
}

func TestNormalizeMatch_Deterministic(t *testing.T) {
	raw := fixtureMatch()
	first, err := NormalizeMatch(raw, 300)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := NormalizeMatch(raw, 300)
		require.NoError(t, err)
		againJSON, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, firstJSON, againJSON)
	}
}

func TestNormalizeMatch_Errors(t *testing.T) {
	_, err := NormalizeMatch(domain.RawDocument{"players": []any{}}, 300)
	assert.ErrorIs(t, err, ErrMissingMatchID)

	_, err = NormalizeMatch(domain.RawDocument{"match_id": 1}, 0)
	assert.Error(t, err)

	nm, err := NormalizeMatch(domain.RawDocument{"match_id": 1}, 300)
	require.NoError(t, err)
	assert.Empty(t, nm.Players)
}

func TestNormalizeProfile(t *testing.T) {
	rank := int64(80)
	stub := domain.PlayerProfile{PlayerID: 555, PersonaName: "stub", RankTier: &rank}

	raw := domain.RawDocument{
		"profile": map[string]any{
			"account_id":  json.Number("555"),
			"personaname": "Yatoro",
			"avatarfull":  "https://example.invalid/a.png",
		},
		"leaderboard_rank": json.Number("3"),
		"mmr_estimate":     map[string]any{"estimate": json.Number("9000")},
		"rank_tier":        nil,
	}

	got := NormalizeProfile(stub, raw)
	assert.Equal(t, int64(555), got.PlayerID)
	assert.Equal(t, "Yatoro", got.PersonaName)
	assert.Equal(t, "https://example.invalid/a.png", got.Avatar)
	require.NotNil(t, got.RankTier)
	assert.Equal(t, int64(80), *got.RankTier)
	assert.Equal(t, int64(3), *got.LeaderboardRank)
	assert.Equal(t, int64(9000), *got.MMREstimate)
	assert.Nil(t, got.TrackedUntil)
}

func TestNormalizeHistory(t *testing.T) {
	rows := []domain.RawDocument{
		{"match_id": json.Number("10"), "hero_id": json.Number("5"), "radiant_win": true, "leagueid": json.Number("15000")},
		{"hero_id": json.Number("6")},
		{"match_id": json.Number("11"), "leagueid": nil},
	}
	got := NormalizeHistory(555, rows)
	require.Len(t, got, 2)
	assert.Equal(t, int64(555), got[0].PlayerID)
	assert.Equal(t, int64(5), got[0].HeroID)
	assert.True(t, got[0].RadiantWin)
	assert.Equal(t, int64(15000), *got[0].LeagueID)
	assert.Nil(t, got[1].LeagueID)
}
