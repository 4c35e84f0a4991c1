package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"dota-pipeline/internal/apperrors"
	"dota-pipeline/internal/archive"
	"dota-pipeline/internal/config"
	"dota-pipeline/internal/constants"
	"dota-pipeline/internal/domain"
	"dota-pipeline/internal/normalize"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RemoteClient is the part of the OpenDota client the ingest service uses.
type RemoteClient interface {
	ResolveMatchIDs(ctx context.Context, leagueID int64) ([]int64, error)
	FetchMatch(ctx context.Context, matchID int64) (domain.RawDocument, error)
	FetchPlayerProfile(ctx context.Context, accountID int64) (domain.RawDocument, error)
	FetchPlayerRecentMatches(ctx context.Context, accountID int64, limit int) ([]domain.RawDocument, error)
	FetchHeroes(ctx context.Context) ([]domain.Hero, error)
	FetchItems(ctx context.Context) ([]domain.Item, error)
}

type RunRequest struct {
	LeagueID           int64
	OutputDir          string
	MaxMatches         int
	FetchPlayerHistory bool
	HistoryLimit       int
	Workers            int
}

// RunResult is everything a run produced, for callers that chain a load.
type RunResult struct {
	Metadata *domain.RunMetadata
	Payload  domain.Payload
}

type IngestService struct {
	client      RemoteClient
	mirror      archive.Mirror
	bucketWidth int
	logger      zerolog.Logger
}

func NewIngestService(client RemoteClient, mirror archive.Mirror, cfg *config.Config, logger zerolog.Logger) *IngestService {
	width := cfg.Ingest.BucketSeconds
	if width <= 0 {
		width = constants.IntervalBucketWidth
	}
	return &IngestService{
		client:      client,
		mirror:      mirror,
		bucketWidth: width,
		logger:      logger.With().Str("component", "ingest").Logger(),
	}
}

type matchSlot struct {
	normalized *domain.NormalizedMatch
	skipped    bool
}

type playerSlot struct {
	profile domain.PlayerProfile
	history []domain.PlayerHistoryMatch
}

// run state shared by the match workers
type ingestRun struct {
	req      RunRequest
	archiver *archive.Archiver

	mu             sync.Mutex
	archivalErrors int
}

func (r *ingestRun) archivalFailed() {
	r.mu.Lock()
	r.archivalErrors++
	r.mu.Unlock()
}

// Run resolves the matches of a league, archives and normalizes each one,
// enriches the players and writes the processed artifacts. A cancelled run
// returns the context error and writes nothing.
func (s *IngestService) Run(ctx context.Context, req RunRequest) (*domain.RunMetadata, error) {
	res, err := s.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Metadata, nil
}

func (s *IngestService) Ingest(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.LeagueID <= 0 {
		return nil, fmt.Errorf("invalid league id %d", req.LeagueID)
	}
	if req.OutputDir == "" {
		req.OutputDir = "."
	}
	if req.Workers < 1 {
		req.Workers = 1
	}
	if req.HistoryLimit <= 0 {
		req.HistoryLimit = constants.PlayerHistoryLimit
	}

	run := &ingestRun{
		req:      req,
		archiver: archive.New(filepath.Join(req.OutputDir, constants.RawArchiveDir), s.mirror, s.logger),
	}
	log := s.logger.With().Int64("league_id", req.LeagueID).Logger()

	ids, err := s.client.ResolveMatchIDs(ctx, req.LeagueID)
	if err != nil {
		log.Error().Err(err).Msg("failed to resolve match ids")
		return nil, fmt.Errorf("resolve match ids: %w", err)
	}
	resolved := len(ids)
	if req.MaxMatches > 0 && len(ids) > req.MaxMatches {
		ids = ids[:req.MaxMatches]
	}
	log.Info().Int("resolved", resolved).Int("selected", len(ids)).Int("workers", req.Workers).Msg("processing league matches")

	slots, err := s.processMatches(ctx, run, ids)
	if err != nil {
		return nil, err
	}

	var (
		matches []domain.NormalizedMatch
		skipped = make([]int64, 0)
	)
	for i, slot := range slots {
		switch {
		case slot.skipped:
			skipped = append(skipped, ids[i])
		case slot.normalized != nil:
			matches = append(matches, *slot.normalized)
		}
	}

	heroes, items := s.fetchReferenceData(ctx)

	players, history, err := s.enrichPlayers(ctx, run, matches)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := &domain.RunMetadata{
		LeagueID:        req.LeagueID,
		GeneratedAt:     time.Now().UTC(),
		ResolvedCount:   resolved,
		MatchCount:      len(matches),
		SkippedMatchIDs: skipped,
		PlayerCount:     len(players),
		HistoryCount:    len(history),
		ArchivalErrors:  run.archivalErrors,
		OutputDir:       req.OutputDir,
		RawArchiveDir:   run.archiver.Root(),
		MetadataPath:    filepath.Join(req.OutputDir, constants.MetadataFile),
	}
	if meta.RunID, err = gonanoid.New(); err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	payload := BuildPayload(matches, players, heroes, items)
	if err := s.writeOutputs(meta, matches, players, history, heroes, items, payload); err != nil {
		log.Error().Err(err).Msg("failed to write outputs")
		return nil, err
	}

	log.Info().
		Str("run_id", meta.RunID).
		Int("matches", meta.MatchCount).
		Int("skipped", len(meta.SkippedMatchIDs)).
		Int("players", meta.PlayerCount).
		Int("archival_errors", meta.ArchivalErrors).
		Msg("ingest run completed")

	return &RunResult{Metadata: meta, Payload: payload}, nil
}

func (s *IngestService) processMatches(ctx context.Context, run *ingestRun, ids []int64) ([]matchSlot, error) {
	slots := make([]matchSlot, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(run.req.Workers)
	for i, id := range ids {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			return s.processMatch(gCtx, run, id, &slots[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *IngestService) processMatch(ctx context.Context, run *ingestRun, matchID int64, slot *matchSlot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := s.logger.With().Int64("match_id", matchID).Logger()

	raw, err := s.client.FetchMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, apperrors.RemoteAuth) {
			log.Error().Err(err).Msg("authentication rejected, aborting run")
			return fmt.Errorf("fetch match %d: %w", matchID, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Error().Err(err).Msg("failed to fetch match, skipping")
		slot.skipped = true
		return nil
	}

	if _, err := run.archiver.Persist(ctx, archive.MatchKey(matchID), raw); err != nil {
		log.Warn().Err(err).Msg("failed to archive match")
		run.archivalFailed()
	}
	for _, block := range normalize.PlayerBlocks(raw) {
		accountID, playerSlot := normalize.PlayerIdentity(block)
		key := archive.MatchPlayerKey(matchID, accountID, int(playerSlot))
		if _, err := run.archiver.Persist(ctx, key, block); err != nil {
			log.Warn().Err(err).Int64("player_slot", playerSlot).Msg("failed to archive player block")
			run.archivalFailed()
		}
	}

	nm, err := normalize.NormalizeMatch(raw, s.bucketWidth)
	if err != nil {
		log.Error().Err(err).Msg("failed to normalize match")
		return fmt.Errorf("normalize match %d: %w", matchID, err)
	}

	slot.normalized = &nm
	log.Debug().Int("players", len(nm.Players)).Msg("match processed")
	return nil
}

func (s *IngestService) fetchReferenceData(ctx context.Context) ([]domain.Hero, []domain.Item) {
	heroes, err := s.client.FetchHeroes(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch heroes")
		heroes = nil
	}
	items, err := s.client.FetchItems(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch items")
		items = nil
	}
	return heroes, items
}

// enrichPlayers fetches the profile (and optionally the recent history) of
// every known account in ascending id order. Failures keep the stub profile.
func (s *IngestService) enrichPlayers(ctx context.Context, run *ingestRun, matches []domain.NormalizedMatch) ([]domain.PlayerProfile, []domain.PlayerHistoryMatch, error) {
	stubs := make(map[int64]domain.PlayerProfile)
	for _, nm := range matches {
		for _, pl := range nm.Players {
			if pl.Profile == nil {
				continue
			}
			if _, ok := stubs[pl.Profile.PlayerID]; !ok {
				stubs[pl.Profile.PlayerID] = *pl.Profile
			}
		}
	}
	ids := sortedKeys(stubs)
	slots := make([]playerSlot, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(run.req.Workers)
	for i, id := range ids {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			slots[i] = s.enrichPlayer(gCtx, run, stubs[id])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	profiles := make([]domain.PlayerProfile, 0, len(slots))
	history := make([]domain.PlayerHistoryMatch, 0)
	for _, slot := range slots {
		profiles = append(profiles, slot.profile)
		history = append(history, slot.history...)
	}
	return profiles, history, nil
}

func (s *IngestService) enrichPlayer(ctx context.Context, run *ingestRun, stub domain.PlayerProfile) playerSlot {
	slot := playerSlot{profile: stub}
	log := s.logger.With().Int64("account_id", stub.PlayerID).Logger()

	doc, err := s.client.FetchPlayerProfile(ctx, stub.PlayerID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch player profile")
	} else {
		if _, err := run.archiver.Persist(ctx, archive.PlayerProfileKey(stub.PlayerID), doc); err != nil {
			log.Warn().Err(err).Msg("failed to archive player profile")
			run.archivalFailed()
		}
		slot.profile = normalize.NormalizeProfile(stub, doc)
		slot.profile.PlayerID = stub.PlayerID
	}

	if !run.req.FetchPlayerHistory {
		return slot
	}
	rows, err := s.client.FetchPlayerRecentMatches(ctx, stub.PlayerID, run.req.HistoryLimit)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch player match history")
		return slot
	}
	if _, err := run.archiver.Persist(ctx, archive.PlayerMatchesKey(stub.PlayerID), rows); err != nil {
		log.Warn().Err(err).Msg("failed to archive player match history")
		run.archivalFailed()
	}
	slot.history = normalize.NormalizeHistory(stub.PlayerID, rows)
	return slot
}

func (s *IngestService) writeOutputs(
	meta *domain.RunMetadata,
	matches []domain.NormalizedMatch,
	players []domain.PlayerProfile,
	history []domain.PlayerHistoryMatch,
	heroes []domain.Hero,
	items []domain.Item,
	payload domain.Payload,
) error {
	summaries := make([]domain.Match, 0, len(matches))
	performances := make([]domain.PlayerMatch, 0)
	purchases := make([]domain.PurchaseEvent, 0)
	intervals := make([]domain.IntervalKDA, 0)
	for _, nm := range matches {
		summaries = append(summaries, nm.Match)
		for _, pl := range nm.Players {
			performances = append(performances, pl.Performance)
			purchases = append(purchases, pl.Purchases...)
			intervals = append(intervals, pl.Intervals...)
		}
	}
	meta.PurchaseCount = len(purchases)
	meta.IntervalCount = len(intervals)

	w := newArtifactWriter(filepath.Join(meta.OutputDir, constants.ProcessedDir), meta.LeagueID)
	if err := writeEntity(w, "matches", summaries); err != nil {
		return err
	}
	if err := writeEntity(w, "player_matches", performances); err != nil {
		return err
	}
	if err := writeEntity(w, "purchases", purchases); err != nil {
		return err
	}
	if err := writeEntity(w, "intervals", intervals); err != nil {
		return err
	}
	if err := writeEntity(w, "players", players); err != nil {
		return err
	}
	if err := writeEntity(w, "pro_matches", history); err != nil {
		return err
	}
	if err := writeEntity(w, "heroes", heroes); err != nil {
		return err
	}
	if err := writeEntity(w, "items", items); err != nil {
		return err
	}

	meta.PayloadPath = w.path("payload", "json")
	if err := writeJSONFile(meta.PayloadPath, payload); err != nil {
		return err
	}
	w.artifacts["payload.json"] = meta.PayloadPath
	meta.Artifacts = w.artifacts

	return writeJSONFile(meta.MetadataPath, meta)
}
