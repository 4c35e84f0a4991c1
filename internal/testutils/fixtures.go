package testutils

import "dota-pipeline/internal/domain"

type PurchaseFixture struct {
	Time int
	Key  string
}

// PlayerFixture describes one player block of a match document.
type PlayerFixture struct {
	AccountID   *int64
	Slot        int
	HeroID      int
	Kills       int
	Deaths      int
	Assists     int
	KillTimes   []int
	DeathTimes  []int
	AssistTimes []int
	Purchases   []PurchaseFixture
}

func Player(accountID int64, slot int) PlayerFixture {
	return PlayerFixture{AccountID: &accountID, Slot: slot, HeroID: slot%128 + 1}
}

func AnonymousPlayer(slot int) PlayerFixture {
	return PlayerFixture{Slot: slot, HeroID: slot%128 + 1}
}

func (p PlayerFixture) Document(matchID int64) domain.RawDocument {
	doc := domain.RawDocument{
		"match_id":     matchID,
		"player_slot":  p.Slot,
		"hero_id":      p.HeroID,
		"isRadiant":    p.Slot < 128,
		"kills":        p.Kills,
		"deaths":       p.Deaths,
		"assists":      p.Assists,
		"gold_per_min": 500,
		"xp_per_min":   600,
		"personaname":  "",
		"kills_log":    timeLog(p.KillTimes),
		"deaths_log":   timeLog(p.DeathTimes),
		"assists_log":  timeLog(p.AssistTimes),
	}
	if p.AccountID != nil {
		doc["account_id"] = *p.AccountID
	} else {
		doc["account_id"] = nil
	}
	purchases := make([]any, 0, len(p.Purchases))
	for _, e := range p.Purchases {
		purchases = append(purchases, map[string]any{"time": e.Time, "key": e.Key})
	}
	doc["purchase_log"] = purchases
	return doc
}

// MatchDocument builds a raw match document in the shape returned by
// GET /matches/{id}.
func MatchDocument(matchID, leagueID int64, players ...PlayerFixture) domain.RawDocument {
	blocks := make([]any, 0, len(players))
	for _, p := range players {
		blocks = append(blocks, p.Document(matchID))
	}
	return domain.RawDocument{
		"match_id":      matchID,
		"leagueid":      leagueID,
		"start_time":    1700000000 + matchID,
		"duration":      2400,
		"radiant_win":   true,
		"game_mode":     2,
		"lobby_type":    1,
		"radiant_score": 30,
		"dire_score":    12,
		"players":       blocks,
	}
}

func timeLog(times []int) []any {
	out := make([]any, 0, len(times))
	for _, t := range times {
		out = append(out, map[string]any{"time": t, "key": "npc_dota_hero_axe"})
	}
	return out
}
