package normalize

import (
	"errors"
	"fmt"
	"sort"

	"dota-pipeline/internal/domain"
)

var ErrMissingMatchID = errors.New("document has no match_id")

// NormalizeMatch maps a raw match document to typed records. It is pure: the
// same document always yields the same result. bucketWidth is the interval
// width in seconds used for the per-player KDA timeline.
func NormalizeMatch(raw domain.RawDocument, bucketWidth int) (domain.NormalizedMatch, error) {
	if bucketWidth <= 0 {
		return domain.NormalizedMatch{}, fmt.Errorf("invalid bucket width %d", bucketWidth)
	}
	matchID, ok := asInt(raw["match_id"])
	if !ok {
		return domain.NormalizedMatch{}, ErrMissingMatchID
	}

	match := domain.Match{
		MatchID:      matchID,
		StartTime:    intOrZero(raw, "start_time"),
		Duration:     intOrZero(raw, "duration"),
		LeagueID:     intOrZero(raw, "leagueid"),
		GameMode:     intOrZero(raw, "game_mode"),
		LobbyType:    intOrZero(raw, "lobby_type"),
		Engine:       intOrZero(raw, "engine"),
		Cluster:      intOrZero(raw, "cluster"),
		Patch:        intOrZero(raw, "patch"),
		RadiantScore: intOrZero(raw, "radiant_score"),
		DireScore:    intOrZero(raw, "dire_score"),
		SeriesID:     intOrZero(raw, "series_id"),
		RadiantName:  teamName(raw, "radiant_team", "radiant_name"),
		DireName:     teamName(raw, "dire_team", "dire_name"),
	}
	match.RadiantWin, _ = asBool(raw["radiant_win"])

	blocks := PlayerBlocks(raw)
	players := make([]domain.NormalizedPlayer, 0, len(blocks))
	for _, block := range blocks {
		players = append(players, normalizePlayer(block, match, int64(bucketWidth)))
	}

	return domain.NormalizedMatch{Match: match, Players: players}, nil
}

func normalizePlayer(block map[string]any, match domain.Match, width int64) domain.NormalizedPlayer {
	accountID, slot := PlayerIdentity(block)

	isRadiant, ok := asBool(block["isRadiant"])
	if !ok {
		if isRadiant, ok = asBool(block["is_radiant"]); !ok {
			isRadiant = slot < 128
		}
	}
	win, ok := asBool(block["win"])
	if !ok {
		win = isRadiant == match.RadiantWin
	}

	perf := domain.PlayerMatch{
		MatchID:     match.MatchID,
		PlayerID:    accountID,
		PlayerSlot:  slot,
		HeroID:      intOrZero(block, "hero_id"),
		IsRadiant:   isRadiant,
		Win:         win,
		Kills:       intOrZero(block, "kills"),
		Deaths:      intOrZero(block, "deaths"),
		Assists:     intOrZero(block, "assists"),
		GoldPerMin:  intOrZero(block, "gold_per_min"),
		XPPerMin:    intOrZero(block, "xp_per_min"),
		NetWorth:    intOrZero(block, "net_worth"),
		Level:       intOrZero(block, "level"),
		LastHits:    intOrZero(block, "last_hits"),
		Denies:      intOrZero(block, "denies"),
		HeroDamage:  intOrZero(block, "hero_damage"),
		TowerDamage: intOrZero(block, "tower_damage"),
		HeroHealing: intOrZero(block, "hero_healing"),
		Lane:        optInt(block, "lane"),
		LaneRole:    optInt(block, "lane_role"),
		IsRoaming:   optBool(block, "is_roaming"),
		Item0:       optInt(block, "item_0"),
		Item1:       optInt(block, "item_1"),
		Item2:       optInt(block, "item_2"),
		Item3:       optInt(block, "item_3"),
		Item4:       optInt(block, "item_4"),
		Item5:       optInt(block, "item_5"),
		Backpack0:   optInt(block, "backpack_0"),
		Backpack1:   optInt(block, "backpack_1"),
		Backpack2:   optInt(block, "backpack_2"),
		ItemNeutral: optInt(block, "item_neutral"),
	}
	if kda, ok := asFloat(block["kda"]); ok {
		perf.KDA = kda
	} else {
		perf.KDA = computeKDA(perf.Kills, perf.Deaths, perf.Assists)
	}

	var profile *domain.PlayerProfile
	if accountID != nil {
		profile = &domain.PlayerProfile{
			PlayerID:    *accountID,
			PersonaName: str(block, "personaname"),
			Name:        str(block, "name"),
			RankTier:    optInt(block, "rank_tier"),
		}
	}

	return domain.NormalizedPlayer{
		Performance: perf,
		Profile:     profile,
		Purchases:   purchases(block, match.MatchID, accountID),
		Intervals:   intervals(block, match.MatchID, accountID, width),
	}
}

func purchases(block map[string]any, matchID int64, accountID *int64) []domain.PurchaseEvent {
	entries := asList(block["purchase_log"])
	out := make([]domain.PurchaseEvent, 0, len(entries))
	for _, e := range entries {
		entry, ok := asMap(e)
		if !ok {
			continue
		}
		out = append(out, domain.PurchaseEvent{
			MatchID:  matchID,
			PlayerID: accountID,
			Time:     intOrZero(entry, "time"),
			Item:     str(entry, "key"),
		})
	}
	return out
}

func intervals(block map[string]any, matchID int64, accountID *int64, width int64) []domain.IntervalKDA {
	kills := BucketEvents(asList(block["kills_log"]), width)
	deaths := BucketEvents(asList(block["deaths_log"]), width)
	assists := BucketEvents(asList(block["assists_log"]), width)

	starts := make([]int64, 0, len(kills)+len(deaths)+len(assists))
	seen := make(map[int64]struct{})
	for _, buckets := range []map[int64]int64{kills, deaths, assists} {
		for start := range buckets {
			if _, ok := seen[start]; !ok {
				seen[start] = struct{}{}
				starts = append(starts, start)
			}
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make([]domain.IntervalKDA, 0, len(starts))
	for _, start := range starts {
		out = append(out, domain.IntervalKDA{
			MatchID:       matchID,
			PlayerID:      accountID,
			IntervalStart: start,
			IntervalEnd:   start + width,
			Kills:         kills[start],
			Deaths:        deaths[start],
			Assists:       assists[start],
		})
	}
	return out
}

// BucketEvents counts events per interval start. Events without a time are
// ignored. Negative times fall into negative buckets.
func BucketEvents(events []any, width int64) map[int64]int64 {
	buckets := make(map[int64]int64)
	for _, e := range events {
		entry, ok := asMap(e)
		if !ok {
			continue
		}
		t, ok := asInt(entry["time"])
		if !ok {
			continue
		}
		buckets[BucketStart(t, width)]++
	}
	return buckets
}

// BucketStart is floor(t / width) * width.
func BucketStart(t, width int64) int64 {
	q := t / width
	if t%width != 0 && (t < 0) != (width < 0) {
		q--
	}
	return q * width
}

func computeKDA(kills, deaths, assists int64) float64 {
	if deaths < 1 {
		deaths = 1
	}
	return float64(kills+assists) / float64(deaths)
}

func teamName(raw domain.RawDocument, teamKey, flatKey string) string {
	if team, ok := asMap(raw[teamKey]); ok {
		if name := str(team, "name"); name != "" {
			return name
		}
	}
	return str(raw, flatKey)
}

// PlayerIdentity returns the account id and slot of a raw player block.
func PlayerIdentity(block map[string]any) (*int64, int64) {
	return optInt(block, "account_id"), intOrZero(block, "player_slot")
}

// PlayerBlocks returns the player entries of a raw match document.
func PlayerBlocks(raw domain.RawDocument) []map[string]any {
	entries := asList(raw["players"])
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if block, ok := asMap(e); ok {
			out = append(out, block)
		}
	}
	return out
}
