package domain

import "time"

// Payload is the loader input. PlayerMatches and IntervalStats must reference
// players and matches present in the same payload.
type Payload struct {
	Players       []PlayerProfile `json:"players"`
	Matches       []Match         `json:"matches"`
	Heroes        []Hero          `json:"heroes"`
	Items         []Item          `json:"items"`
	PlayerMatches []PlayerMatch   `json:"player_matches"`
	IntervalStats []IntervalKDA   `json:"interval_stats"`
}

type ChunkFailure struct {
	Offset int    `json:"offset"`
	Rows   int    `json:"rows"`
	Error  string `json:"error"`
}

type TableLoad struct {
	Table        string         `json:"table"`
	Rows         int            `json:"rows"`
	Upserted     int64          `json:"upserted"`
	FailedChunks []ChunkFailure `json:"failed_chunks,omitempty"`
}

type RowCountCheck struct {
	Table    string `json:"table"`
	Expected int64  `json:"expected"`
	Actual   int64  `json:"actual"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

type ForeignKeyCheck struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	Referenced int    `json:"referenced"`
	Missing    int    `json:"missing"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`

	// Advisory checks have no schema constraint behind them and do not
	// affect the report outcome.
	Advisory bool `json:"advisory,omitempty"`
}

type LoadReport struct {
	LoadID         string            `json:"load_id"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
	Tables         []TableLoad       `json:"tables"`
	RowCounts      []RowCountCheck   `json:"row_counts"`
	ForeignKeys    []ForeignKeyCheck `json:"foreign_keys"`
	ViewsRefreshed bool              `json:"views_refreshed"`
	OK             bool              `json:"ok"`
}

// FailedChunks counts chunks that could not be written.
func (r *LoadReport) FailedChunks() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.FailedChunks)
	}
	return n
}

// AuditOK reports whether every row-count and non-advisory foreign-key check
// passed.
func (r *LoadReport) AuditOK() bool {
	for _, c := range r.RowCounts {
		if !c.OK {
			return false
		}
	}
	for _, c := range r.ForeignKeys {
		if !c.OK && !c.Advisory {
			return false
		}
	}
	return true
}
