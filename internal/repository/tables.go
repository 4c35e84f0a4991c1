package repository

import "dota-pipeline/internal/domain"

var (
	HeroesTable = TableSpec{
		Name:     "heroes",
		Columns:  []string{"hero_id", "name", "localized_name", "primary_attr", "attack_type"},
		Conflict: []string{"hero_id"},
	}
	ItemsTable = TableSpec{
		Name:     "items",
		Columns:  []string{"item_id", "item_key", "name", "cost"},
		Conflict: []string{"item_id"},
	}
	PlayersTable = TableSpec{
		Name: "players",
		Columns: []string{
			"player_id", "personaname", "name", "avatarfull", "last_login",
			"rank_tier", "leaderboard_rank", "mmr_estimate", "tracked_until",
		},
		Conflict: []string{"player_id"},
	}
	MatchesTable = TableSpec{
		Name: "matches",
		Columns: []string{
			"match_id", "start_time", "duration", "radiant_win", "leagueid",
			"game_mode", "lobby_type", "engine", "cluster", "patch",
			"radiant_score", "dire_score", "series_id", "radiant_name", "dire_name",
		},
		Conflict: []string{"match_id"},
	}
	PlayerMatchesTable = TableSpec{
		Name: "player_matches",
		Columns: []string{
			"match_id", "player_id", "player_slot", "hero_id", "is_radiant", "win",
			"kills", "deaths", "assists", "kda", "gold_per_min", "xp_per_min",
			"net_worth", "level", "last_hits", "denies", "hero_damage", "tower_damage",
			"hero_healing", "lane", "lane_role", "is_roaming",
			"item_0", "item_1", "item_2", "item_3", "item_4", "item_5",
			"backpack_0", "backpack_1", "backpack_2", "item_neutral",
		},
		Conflict: []string{"match_id", "player_id"},
	}
	IntervalStatsTable = TableSpec{
		Name:     "interval_stats",
		Columns:  []string{"match_id", "player_id", "interval_start", "interval_end", "kills", "deaths", "assists"},
		Conflict: []string{"match_id", "player_id", "interval_start"},
	}
)

// Tables lists every loader table in write order.
var Tables = []TableSpec{
	HeroesTable,
	ItemsTable,
	PlayersTable,
	MatchesTable,
	PlayerMatchesTable,
	IntervalStatsTable,
}

func HeroRow(h domain.Hero) []any {
	return []any{h.HeroID, h.Name, h.LocalizedName, h.PrimaryAttr, h.AttackType}
}

func ItemRow(it domain.Item) []any {
	return []any{it.ItemID, it.Key, it.Name, it.Cost}
}

func PlayerRow(p domain.PlayerProfile) []any {
	return []any{
		p.PlayerID, p.PersonaName, p.Name, p.Avatar, p.LastLogin,
		nullInt(p.RankTier), nullInt(p.LeaderboardRank), nullInt(p.MMREstimate), nullInt(p.TrackedUntil),
	}
}

func MatchRow(m domain.Match) []any {
	return []any{
		m.MatchID, m.StartTime, m.Duration, m.RadiantWin, m.LeagueID,
		m.GameMode, m.LobbyType, m.Engine, m.Cluster, m.Patch,
		m.RadiantScore, m.DireScore, m.SeriesID, m.RadiantName, m.DireName,
	}
}

func PlayerMatchRow(pm domain.PlayerMatch) []any {
	return []any{
		pm.MatchID, nullInt(pm.PlayerID), pm.PlayerSlot, pm.HeroID, pm.IsRadiant, pm.Win,
		pm.Kills, pm.Deaths, pm.Assists, pm.KDA, pm.GoldPerMin, pm.XPPerMin,
		pm.NetWorth, pm.Level, pm.LastHits, pm.Denies, pm.HeroDamage, pm.TowerDamage,
		pm.HeroHealing, nullInt(pm.Lane), nullInt(pm.LaneRole), nullBool(pm.IsRoaming),
		nullInt(pm.Item0), nullInt(pm.Item1), nullInt(pm.Item2), nullInt(pm.Item3), nullInt(pm.Item4), nullInt(pm.Item5),
		nullInt(pm.Backpack0), nullInt(pm.Backpack1), nullInt(pm.Backpack2), nullInt(pm.ItemNeutral),
	}
}

func IntervalRow(iv domain.IntervalKDA) []any {
	return []any{iv.MatchID, nullInt(iv.PlayerID), iv.IntervalStart, iv.IntervalEnd, iv.Kills, iv.Deaths, iv.Assists}
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}
