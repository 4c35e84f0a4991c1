package service

import (
	"errors"
	"fmt"
	"sort"

	"dota-pipeline/internal/apperrors"
	"dota-pipeline/internal/domain"
)

// BuildPayload assembles the loader input from normalized matches. Rows of
// anonymous players are left out because they have no player key.
func BuildPayload(matches []domain.NormalizedMatch, players []domain.PlayerProfile, heroes []domain.Hero, items []domain.Item) domain.Payload {
	p := domain.Payload{
		Players:       players,
		Matches:       make([]domain.Match, 0, len(matches)),
		Heroes:        heroes,
		Items:         items,
		PlayerMatches: make([]domain.PlayerMatch, 0),
		IntervalStats: make([]domain.IntervalKDA, 0),
	}
	if p.Players == nil {
		p.Players = []domain.PlayerProfile{}
	}
	if p.Heroes == nil {
		p.Heroes = []domain.Hero{}
	}
	if p.Items == nil {
		p.Items = []domain.Item{}
	}

	for _, nm := range matches {
		p.Matches = append(p.Matches, nm.Match)
		for _, pl := range nm.Players {
			if pl.Performance.PlayerID == nil {
				continue
			}
			p.PlayerMatches = append(p.PlayerMatches, pl.Performance)
			p.IntervalStats = append(p.IntervalStats, pl.Intervals...)
		}
	}
	return p
}

// ReferenceGaps counts fact rows whose player or match is not in the payload.
type ReferenceGaps struct {
	PlayerMatchesMissingPlayers int
	PlayerMatchesMissingMatches int
	IntervalsMissingPlayers     int
	IntervalsMissingMatches     int
}

func (g ReferenceGaps) Empty() bool {
	return g == ReferenceGaps{}
}

func (g ReferenceGaps) String() string {
	return fmt.Sprintf(
		"player_matches missing players=%d, player_matches missing matches=%d, interval_stats missing players=%d, interval_stats missing matches=%d",
		g.PlayerMatchesMissingPlayers, g.PlayerMatchesMissingMatches, g.IntervalsMissingPlayers, g.IntervalsMissingMatches,
	)
}

// CheckReferences verifies that every fact row references a player and a
// match present in the same payload. A nil player id counts as missing.
func CheckReferences(p domain.Payload) ReferenceGaps {
	players := make(map[int64]struct{}, len(p.Players))
	for _, pl := range p.Players {
		players[pl.PlayerID] = struct{}{}
	}
	matches := make(map[int64]struct{}, len(p.Matches))
	for _, m := range p.Matches {
		matches[m.MatchID] = struct{}{}
	}

	known := func(set map[int64]struct{}, id *int64) bool {
		if id == nil {
			return false
		}
		_, ok := set[*id]
		return ok
	}

	var g ReferenceGaps
	for _, pm := range p.PlayerMatches {
		if !known(players, pm.PlayerID) {
			g.PlayerMatchesMissingPlayers++
		}
		if !known(matches, &pm.MatchID) {
			g.PlayerMatchesMissingMatches++
		}
	}
	for _, iv := range p.IntervalStats {
		if !known(players, iv.PlayerID) {
			g.IntervalsMissingPlayers++
		}
		if !known(matches, &iv.MatchID) {
			g.IntervalsMissingMatches++
		}
	}
	return g
}

// ValidatePayload returns a ReferentialPrecondition error when the payload
// has dangling references.
func ValidatePayload(p domain.Payload) error {
	gaps := CheckReferences(p)
	if gaps.Empty() {
		return nil
	}
	return apperrors.New(apperrors.KindReferentialPrecondition, "validate payload", 0, errors.New(gaps.String()))
}

// LoadPayloadFile reads a payload written by an ingest run.
func LoadPayloadFile(path string) (domain.Payload, error) {
	var p domain.Payload
	if err := readJSONFile(path, &p); err != nil {
		return domain.Payload{}, fmt.Errorf("read payload: %w", err)
	}
	return p, nil
}

func sortedKeys(m map[int64]domain.PlayerProfile) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
