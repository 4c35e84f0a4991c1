package service

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dota-pipeline/internal/api"
	"dota-pipeline/internal/apperrors"
	"dota-pipeline/internal/archive"
	"dota-pipeline/internal/config"
	"dota-pipeline/internal/constants"
	"dota-pipeline/internal/domain"
	"dota-pipeline/internal/testutils"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLeague = 15000

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newIngestService(t *testing.T, client RemoteClient) *IngestService {
	t.Helper()
	cfg := &config.Config{Ingest: config.IngestConfig{BucketSeconds: constants.IntervalBucketWidth}}
	return NewIngestService(client, nil, cfg, zerolog.Nop())
}

func newFakeClient(fake *testutils.FakeOpenDota) *api.Client {
	return api.NewClient(config.OpenDotaConfig{
		BaseURL:        fake.URL(),
		MaxRetries:     2,
		BackoffFactor:  1.5,
		RateLimitSleep: time.Second,
		Timeout:        5 * time.Second,
	}, zerolog.Nop(), api.WithSleep(noSleep))
}

// seedLeague serves three matches, the middle one missing upstream.
func seedLeague(fake *testutils.FakeOpenDota) {
	fake.SetExplorer(http.StatusOK, 3, 2, 1)

	p10 := testutils.Player(10, 0)
	p10.Kills, p10.Deaths, p10.Assists = 2, 1, 1
	p10.KillTimes = []int{10, 299}
	p10.DeathTimes = []int{305}
	p10.AssistTimes = []int{400}
	p10.Purchases = []testutils.PurchaseFixture{{Time: -30, Key: "tango"}, {Time: 600, Key: "blink"}}

	fake.SetMatch(testutils.MatchDocument(3, testLeague, p10, testutils.Player(11, 128)))
	fake.SetMatch(testutils.MatchDocument(1, testLeague, testutils.Player(10, 0), testutils.AnonymousPlayer(129)))

	fake.SetProfile(10, domain.RawDocument{
		"profile":   map[string]any{"account_id": 10, "personaname": "ten", "name": "Ten"},
		"rank_tier": 80,
	})
	fake.SetHistory(10, domain.RawDocument{"match_id": 500, "player_slot": 0, "hero_id": 5, "radiant_win": true, "leagueid": testLeague})
	fake.SetHeroes(map[string]any{"id": 1, "name": "npc_dota_hero_antimage", "localized_name": "Anti-Mage"})
	fake.SetItem("blink", 1, 2250)
}

func TestIngest_SkipsFailedMatches(t *testing.T) {
	fake := testutils.NewFakeOpenDota()
	defer fake.Close()
	seedLeague(fake)

	out := t.TempDir()
	res, err := newIngestService(t, newFakeClient(fake)).Ingest(context.Background(), RunRequest{
		LeagueID:           testLeague,
		OutputDir:          out,
		FetchPlayerHistory: true,
	})
	require.NoError(t, err)

	meta := res.Metadata
	assert.Equal(t, 3, meta.ResolvedCount)
	assert.Equal(t, 2, meta.MatchCount)
	assert.Equal(t, []int64{2}, meta.SkippedMatchIDs)
	assert.Equal(t, 2, meta.PlayerCount)
	assert.Equal(t, 1, meta.HistoryCount)
	assert.Equal(t, 2, meta.PurchaseCount)
	assert.Zero(t, meta.ArchivalErrors)
	assert.NotEmpty(t, meta.RunID)

	// the failing match is only retried for server errors
	assert.Equal(t, 1, fake.Hits("/matches/2"))

	p := res.Payload
	require.Len(t, p.Matches, 2)
	assert.Equal(t, int64(3), p.Matches[0].MatchID)
	assert.Equal(t, int64(1), p.Matches[1].MatchID)
	require.Len(t, p.Players, 2)
	assert.Equal(t, "ten", p.Players[0].PersonaName)
	require.NotNil(t, p.Players[0].RankTier)
	assert.Equal(t, int64(80), *p.Players[0].RankTier)
	assert.Len(t, p.Heroes, 1)
	assert.Len(t, p.Items, 1)

	// the anonymous player of match 1 is left out
	assert.Len(t, p.PlayerMatches, 3)
	for _, pm := range p.PlayerMatches {
		assert.NotNil(t, pm.PlayerID)
	}
	assert.NoError(t, ValidatePayload(p))
}

func TestIngest_WritesArtifacts(t *testing.T) {
	fake := testutils.NewFakeOpenDota()
	defer fake.Close()
	seedLeague(fake)

	out := t.TempDir()
	meta, err := newIngestService(t, newFakeClient(fake)).Run(context.Background(), RunRequest{
		LeagueID:  testLeague,
		OutputDir: out,
	})
	require.NoError(t, err)

	assert.Len(t, meta.Artifacts, 17)
	for name, path := range meta.Artifacts {
		assert.FileExists(t, path, name)
	}
	assert.Equal(t, filepath.Join(out, "processed", "matches_league_15000.parquet"), meta.Artifacts["matches.parquet"])

	var stored domain.RunMetadata
	require.NoError(t, readJSONFile(filepath.Join(out, constants.MetadataFile), &stored))
	assert.Equal(t, meta.RunID, stored.RunID)
	assert.Equal(t, meta.SkippedMatchIDs, stored.SkippedMatchIDs)

	payload, err := LoadPayloadFile(meta.PayloadPath)
	require.NoError(t, err)
	assert.Len(t, payload.PlayerMatches, 3)

	// intervals are bucketed per five minutes
	var first []domain.IntervalKDA
	for _, iv := range payload.IntervalStats {
		if iv.MatchID == 3 && *iv.PlayerID == 10 {
			first = append(first, iv)
		}
	}
	require.NotEmpty(t, first)
	assert.Equal(t, int64(0), first[0].IntervalStart)
	assert.Equal(t, int64(300), first[0].IntervalEnd)
	assert.Equal(t, int64(2), first[0].Kills)

	for _, key := range []archive.Key{
		archive.MatchKey(3),
		archive.MatchKey(1),
		archive.MatchPlayerKey(1, nil, 129),
		archive.PlayerProfileKey(10),
	} {
		rel, err := key.RelPath()
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(meta.RawArchiveDir, rel))
	}
	assert.NoFileExists(t, filepath.Join(meta.RawArchiveDir, "players", "10", "matches.xml"))
}

func TestIngest_WorkersKeepOrder(t *testing.T) {
	fake := testutils.NewFakeOpenDota()
	defer fake.Close()
	seedLeague(fake)

	svc := newIngestService(t, newFakeClient(fake))
	serial, err := svc.Ingest(context.Background(), RunRequest{LeagueID: testLeague, OutputDir: t.TempDir(), Workers: 1})
	require.NoError(t, err)
	parallel, err := svc.Ingest(context.Background(), RunRequest{LeagueID: testLeague, OutputDir: t.TempDir(), Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, serial.Payload, parallel.Payload)
	assert.Equal(t, serial.Metadata.SkippedMatchIDs, parallel.Metadata.SkippedMatchIDs)
}

func TestIngest_MaxMatches(t *testing.T) {
	fake := testutils.NewFakeOpenDota()
	defer fake.Close()
	seedLeague(fake)

	meta, err := newIngestService(t, newFakeClient(fake)).Run(context.Background(), RunRequest{
		LeagueID:   testLeague,
		OutputDir:  t.TempDir(),
		MaxMatches: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, meta.ResolvedCount)
	assert.Equal(t, 1, meta.MatchCount)
	assert.Zero(t, fake.Hits("/matches/1"))
}

func TestIngest_AuthFailureAborts(t *testing.T) {
	fake := testutils.NewFakeOpenDota()
	defer fake.Close()
	seedLeague(fake)
	fake.Script("/matches/3", http.StatusUnauthorized)

	out := t.TempDir()
	_, err := newIngestService(t, newFakeClient(fake)).Run(context.Background(), RunRequest{LeagueID: testLeague, OutputDir: out})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindRemoteAuth, apperrors.KindOf(err))
	assert.NoFileExists(t, filepath.Join(out, constants.MetadataFile))
}

func TestIngest_ResolveFailure(t *testing.T) {
	fake := testutils.NewFakeOpenDota()
	defer fake.Close()
	fake.SetExplorer(http.StatusForbidden)

	_, err := newIngestService(t, newFakeClient(fake)).Run(context.Background(), RunRequest{LeagueID: testLeague, OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, apperrors.RemoteAuth)
}

func TestIngest_InvalidLeague(t *testing.T) {
	fake := testutils.NewFakeOpenDota()
	defer fake.Close()

	_, err := newIngestService(t, newFakeClient(fake)).Run(context.Background(), RunRequest{LeagueID: 0})
	assert.Error(t, err)
	assert.Zero(t, fake.Hits("/explorer"))
}

// cancellingClient cancels the run when a given match is requested.
type cancellingClient struct {
	RemoteClient
	matchID int64
	cancel  context.CancelFunc
}

func (c *cancellingClient) FetchMatch(ctx context.Context, matchID int64) (domain.RawDocument, error) {
	if matchID == c.matchID {
		c.cancel()
		return nil, ctx.Err()
	}
	return c.RemoteClient.FetchMatch(ctx, matchID)
}

func TestIngest_Cancelled(t *testing.T) {
	fake := testutils.NewFakeOpenDota()
	defer fake.Close()
	seedLeague(fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &cancellingClient{RemoteClient: newFakeClient(fake), matchID: 2, cancel: cancel}

	out := t.TempDir()
	_, err := newIngestService(t, client).Run(ctx, RunRequest{LeagueID: testLeague, OutputDir: out})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(out, constants.MetadataFile))
	_, statErr := os.Stat(filepath.Join(out, constants.ProcessedDir))
	assert.True(t, os.IsNotExist(statErr))
}

func TestIngest_ReferenceDataIsOptional(t *testing.T) {
	fake := testutils.NewFakeOpenDota()
	defer fake.Close()
	seedLeague(fake)
	fake.Script("/heroes", http.StatusNotFound)

	res, err := newIngestService(t, newFakeClient(fake)).Ingest(context.Background(), RunRequest{LeagueID: testLeague, OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, res.Payload.Heroes)
	assert.Empty(t, res.Payload.Heroes)
	assert.Len(t, res.Payload.Items, 1)
}

func TestIngest_SkipsMatchAfterRetries(t *testing.T) {
	fake := testutils.NewFakeOpenDota()
	defer fake.Close()
	seedLeague(fake)
	fake.SetMatch(testutils.MatchDocument(2, testLeague, testutils.Player(12, 0)))
	fake.Script("/matches/2", http.StatusInternalServerError, http.StatusBadGateway)

	meta, err := newIngestService(t, newFakeClient(fake)).Run(context.Background(), RunRequest{
		LeagueID:  testLeague,
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, meta.MatchCount)
	assert.Equal(t, []int64{2}, meta.SkippedMatchIDs)
	assert.Equal(t, 2, fake.Hits("/matches/2"))
}

func TestIngest_ArchivalFailureIsNotFatal(t *testing.T) {
	fake := testutils.NewFakeOpenDota()
	defer fake.Close()
	seedLeague(fake)

	out := t.TempDir()
	// a regular file where the archive directory should be
	require.NoError(t, os.WriteFile(filepath.Join(out, constants.RawArchiveDir), []byte("x"), 0o644))

	meta, err := newIngestService(t, newFakeClient(fake)).Run(context.Background(), RunRequest{
		LeagueID:  testLeague,
		OutputDir: out,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, meta.MatchCount)
	assert.Positive(t, meta.ArchivalErrors)
	assert.FileExists(t, filepath.Join(out, constants.MetadataFile))
}
