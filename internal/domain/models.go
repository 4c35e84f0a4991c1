package domain

import (
	"time"
)

type Match struct {
	MatchID      int64  `json:"match_id" parquet:"match_id"`
	StartTime    int64  `json:"start_time" parquet:"start_time"`
	Duration     int64  `json:"duration" parquet:"duration"`
	RadiantWin   bool   `json:"radiant_win" parquet:"radiant_win"`
	LeagueID     int64  `json:"leagueid" parquet:"leagueid"`
	GameMode     int64  `json:"game_mode" parquet:"game_mode"`
	LobbyType    int64  `json:"lobby_type" parquet:"lobby_type"`
	Engine       int64  `json:"engine" parquet:"engine"`
	Cluster      int64  `json:"cluster" parquet:"cluster"`
	Patch        int64  `json:"patch" parquet:"patch"`
	RadiantScore int64  `json:"radiant_score" parquet:"radiant_score"`
	DireScore    int64  `json:"dire_score" parquet:"dire_score"`
	SeriesID     int64  `json:"series_id" parquet:"series_id"`
	RadiantName  string `json:"radiant_name,omitempty" parquet:"radiant_name"`
	DireName     string `json:"dire_name,omitempty" parquet:"dire_name"`
}

type PlayerProfile struct {
	PlayerID        int64  `json:"player_id" parquet:"player_id"`
	PersonaName     string `json:"personaname,omitempty" parquet:"personaname"`
	Name            string `json:"name,omitempty" parquet:"name"`
	Avatar          string `json:"avatarfull,omitempty" parquet:"avatarfull"`
	LastLogin       string `json:"last_login,omitempty" parquet:"last_login"`
	RankTier        *int64 `json:"rank_tier" parquet:"rank_tier,optional"`
	LeaderboardRank *int64 `json:"leaderboard_rank" parquet:"leaderboard_rank,optional"`
	MMREstimate     *int64 `json:"mmr_estimate" parquet:"mmr_estimate,optional"`
	TrackedUntil    *int64 `json:"tracked_until" parquet:"tracked_until,optional"`
}

// PlayerMatch is one player's performance in one match. PlayerID is nil for
// anonymous players.
type PlayerMatch struct {
	MatchID     int64   `json:"match_id" parquet:"match_id"`
	PlayerID    *int64  `json:"player_id" parquet:"player_id,optional"`
	PlayerSlot  int64   `json:"player_slot" parquet:"player_slot"`
	HeroID      int64   `json:"hero_id" parquet:"hero_id"`
	IsRadiant   bool    `json:"is_radiant" parquet:"is_radiant"`
	Win         bool    `json:"win" parquet:"win"`
	Kills       int64   `json:"kills" parquet:"kills"`
	Deaths      int64   `json:"deaths" parquet:"deaths"`
	Assists     int64   `json:"assists" parquet:"assists"`
	KDA         float64 `json:"kda" parquet:"kda"`
	GoldPerMin  int64   `json:"gold_per_min" parquet:"gold_per_min"`
	XPPerMin    int64   `json:"xp_per_min" parquet:"xp_per_min"`
	NetWorth    int64   `json:"net_worth" parquet:"net_worth"`
	Level       int64   `json:"level" parquet:"level"`
	LastHits    int64   `json:"last_hits" parquet:"last_hits"`
	Denies      int64   `json:"denies" parquet:"denies"`
	HeroDamage  int64   `json:"hero_damage" parquet:"hero_damage"`
	TowerDamage int64   `json:"tower_damage" parquet:"tower_damage"`
	HeroHealing int64   `json:"hero_healing" parquet:"hero_healing"`
	Lane        *int64  `json:"lane" parquet:"lane,optional"`
	LaneRole    *int64  `json:"lane_role" parquet:"lane_role,optional"`
	IsRoaming   *bool   `json:"is_roaming" parquet:"is_roaming,optional"`
	Item0       *int64  `json:"item_0" parquet:"item_0,optional"`
	Item1       *int64  `json:"item_1" parquet:"item_1,optional"`
	Item2       *int64  `json:"item_2" parquet:"item_2,optional"`
	Item3       *int64  `json:"item_3" parquet:"item_3,optional"`
	Item4       *int64  `json:"item_4" parquet:"item_4,optional"`
	Item5       *int64  `json:"item_5" parquet:"item_5,optional"`
	Backpack0   *int64  `json:"backpack_0" parquet:"backpack_0,optional"`
	Backpack1   *int64  `json:"backpack_1" parquet:"backpack_1,optional"`
	Backpack2   *int64  `json:"backpack_2" parquet:"backpack_2,optional"`
	ItemNeutral *int64  `json:"item_neutral" parquet:"item_neutral,optional"`
}

type PurchaseEvent struct {
	MatchID  int64  `json:"match_id" parquet:"match_id"`
	PlayerID *int64 `json:"player_id" parquet:"player_id,optional"`
	Time     int64  `json:"time" parquet:"time"`
	Item     string `json:"item" parquet:"item"`
}

// IntervalKDA counts kills, deaths and assists inside
// [IntervalStart, IntervalEnd).
type IntervalKDA struct {
	MatchID       int64  `json:"match_id" parquet:"match_id"`
	PlayerID      *int64 `json:"player_id" parquet:"player_id,optional"`
	IntervalStart int64  `json:"interval_start" parquet:"interval_start"`
	IntervalEnd   int64  `json:"interval_end" parquet:"interval_end"`
	Kills         int64  `json:"kills" parquet:"kills"`
	Deaths        int64  `json:"deaths" parquet:"deaths"`
	Assists       int64  `json:"assists" parquet:"assists"`
}

type Hero struct {
	HeroID        int64  `json:"hero_id" parquet:"hero_id"`
	Name          string `json:"name" parquet:"name"`
	LocalizedName string `json:"localized_name" parquet:"localized_name"`
	PrimaryAttr   string `json:"primary_attr,omitempty" parquet:"primary_attr"`
	AttackType    string `json:"attack_type,omitempty" parquet:"attack_type"`
}

type Item struct {
	ItemID int64  `json:"item_id" parquet:"item_id"`
	Key    string `json:"key" parquet:"key"`
	Name   string `json:"name" parquet:"name"`
	Cost   int64  `json:"cost" parquet:"cost"`
}

// PlayerHistoryMatch is one entry of a player's recent professional history.
type PlayerHistoryMatch struct {
	PlayerID   int64  `json:"player_id" parquet:"player_id"`
	MatchID    int64  `json:"match_id" parquet:"match_id"`
	PlayerSlot int64  `json:"player_slot" parquet:"player_slot"`
	RadiantWin bool   `json:"radiant_win" parquet:"radiant_win"`
	HeroID     int64  `json:"hero_id" parquet:"hero_id"`
	StartTime  int64  `json:"start_time" parquet:"start_time"`
	Duration   int64  `json:"duration" parquet:"duration"`
	GameMode   int64  `json:"game_mode" parquet:"game_mode"`
	LobbyType  int64  `json:"lobby_type" parquet:"lobby_type"`
	Kills      int64  `json:"kills" parquet:"kills"`
	Deaths     int64  `json:"deaths" parquet:"deaths"`
	Assists    int64  `json:"assists" parquet:"assists"`
	LeagueID   *int64 `json:"leagueid" parquet:"leagueid,optional"`
}

// NormalizedPlayer bundles everything derived from one embedded player block.
type NormalizedPlayer struct {
	Performance PlayerMatch     `json:"performance"`
	Profile     *PlayerProfile  `json:"profile,omitempty"`
	Purchases   []PurchaseEvent `json:"purchases"`
	Intervals   []IntervalKDA   `json:"intervals"`
}

type NormalizedMatch struct {
	Match   Match              `json:"match"`
	Players []NormalizedPlayer `json:"players"`
}

type RunMetadata struct {
	RunID           string            `json:"run_id"`
	LeagueID        int64             `json:"league_id"`
	GeneratedAt     time.Time         `json:"generated_at"`
	ResolvedCount   int               `json:"resolved_count"`
	MatchCount      int               `json:"match_count"`
	SkippedMatchIDs []int64           `json:"skipped_match_ids"`
	PlayerCount     int               `json:"player_count"`
	PurchaseCount   int               `json:"purchase_count"`
	IntervalCount   int               `json:"interval_count"`
	HistoryCount    int               `json:"history_count"`
	ArchivalErrors  int               `json:"archival_errors"`
	OutputDir       string            `json:"output_dir"`
	RawArchiveDir   string            `json:"raw_archive_dir"`
	MetadataPath    string            `json:"metadata_path"`
	PayloadPath     string            `json:"payload_path"`
	Artifacts       map[string]string `json:"artifacts"`
}

// RawDocument is an untyped JSON tree as returned by the remote API. Numbers
// are kept as json.Number.
type RawDocument map[string]any
