package normalize

import "dota-pipeline/internal/domain"

// NormalizeProfile maps a GET /players/{id} document onto the stub built from
// match data. Fields present in the document win.
func NormalizeProfile(stub domain.PlayerProfile, raw domain.RawDocument) domain.PlayerProfile {
	out := stub
	if profile, ok := asMap(raw["profile"]); ok {
		if id, ok := asInt(profile["account_id"]); ok && id != 0 {
			out.PlayerID = id
		}
		if s := str(profile, "personaname"); s != "" {
			out.PersonaName = s
		}
		if s := str(profile, "name"); s != "" {
			out.Name = s
		}
		if s := str(profile, "avatarfull"); s != "" {
			out.Avatar = s
		}
		if s := str(profile, "last_login"); s != "" {
			out.LastLogin = s
		}
	}
	if v := optInt(raw, "rank_tier"); v != nil {
		out.RankTier = v
	}
	if v := optInt(raw, "leaderboard_rank"); v != nil {
		out.LeaderboardRank = v
	}
	if mmr, ok := asMap(raw["mmr_estimate"]); ok {
		if v := optInt(mmr, "estimate"); v != nil {
			out.MMREstimate = v
		}
	}
	if v := optInt(raw, "tracked_until"); v != nil {
		out.TrackedUntil = v
	}
	return out
}

// NormalizeHistory types the rows of GET /players/{id}/matches. Rows without
// a match id are dropped.
func NormalizeHistory(accountID int64, rows []domain.RawDocument) []domain.PlayerHistoryMatch {
	out := make([]domain.PlayerHistoryMatch, 0, len(rows))
	for _, row := range rows {
		matchID, ok := asInt(row["match_id"])
		if !ok {
			continue
		}
		h := domain.PlayerHistoryMatch{
			PlayerID:   accountID,
			MatchID:    matchID,
			PlayerSlot: intOrZero(row, "player_slot"),
			HeroID:     intOrZero(row, "hero_id"),
			StartTime:  intOrZero(row, "start_time"),
			Duration:   intOrZero(row, "duration"),
			GameMode:   intOrZero(row, "game_mode"),
			LobbyType:  intOrZero(row, "lobby_type"),
			Kills:      intOrZero(row, "kills"),
			Deaths:     intOrZero(row, "deaths"),
			Assists:    intOrZero(row, "assists"),
			LeagueID:   optInt(row, "leagueid"),
		}
		h.RadiantWin, _ = asBool(row["radiant_win"])
		out = append(out, h)
	}
	return out
}
