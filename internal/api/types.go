package api

import (
	"sort"

	"dota-pipeline/internal/domain"
)

// RawMatchSummary is one untyped row of a player's match history.
type RawMatchSummary = domain.RawDocument

type ExplorerResponse struct {
	RowCount int           `json:"rowCount"`
	Rows     []ExplorerRow `json:"rows"`
	Err      string        `json:"err,omitempty"`
}

type ExplorerRow struct {
	MatchID *int64 `json:"match_id"`
}

type ProMatch struct {
	MatchID     int64  `json:"match_id"`
	Duration    int64  `json:"duration"`
	StartTime   int64  `json:"start_time"`
	LeagueID    int64  `json:"leagueid"`
	LeagueName  string `json:"league_name"`
	RadiantName string `json:"radiant_name"`
	DireName    string `json:"dire_name"`
	RadiantWin  bool   `json:"radiant_win"`
}

type HeroResponse struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	LocalizedName string   `json:"localized_name"`
	PrimaryAttr   string   `json:"primary_attr"`
	AttackType    string   `json:"attack_type"`
	Roles         []string `json:"roles"`
}

type ItemResponse struct {
	ID    int64  `json:"id"`
	DName string `json:"dname"`
	Cost  *int64 `json:"cost"`
}

func itemsFromConstants(resp map[string]ItemResponse) []domain.Item {
	items := make([]domain.Item, 0, len(resp))
	for key, it := range resp {
		if it.ID == 0 {
			continue
		}
		item := domain.Item{ItemID: it.ID, Key: key, Name: it.DName}
		if it.Cost != nil {
			item.Cost = *it.Cost
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return items
}
