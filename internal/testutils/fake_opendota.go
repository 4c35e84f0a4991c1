package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"dota-pipeline/internal/domain"

	"github.com/go-chi/chi/v5"
)

// FakeOpenDota serves a small in-memory copy of the OpenDota API.
type FakeOpenDota struct {
	s *httptest.Server

	mu             sync.Mutex
	explorerStatus int
	explorerRows   []int64
	proMatches     []map[string]any
	matches        map[int64]domain.RawDocument
	profiles       map[int64]domain.RawDocument
	history        map[int64][]domain.RawDocument
	heroes         []map[string]any
	items          map[string]any
	scripts        map[string][]int
	hits           map[string]int
	queries        map[string][]string
}

func NewFakeOpenDota() *FakeOpenDota {
	f := &FakeOpenDota{
		explorerStatus: http.StatusOK,
		matches:        map[int64]domain.RawDocument{},
		profiles:       map[int64]domain.RawDocument{},
		history:        map[int64][]domain.RawDocument{},
		items:          map[string]any{},
		scripts:        map[string][]int{},
		hits:           map[string]int{},
		queries:        map[string][]string{},
	}

	r := chi.NewRouter()
	r.Use(f.record)
	r.Get("/explorer", f.explorerHandler)
	r.Get("/proMatches", f.proMatchesHandler)
	r.Get("/matches/{matchID}", f.matchHandler)
	r.Get("/players/{accountID}", f.profileHandler)
	r.Get("/players/{accountID}/matches", f.historyHandler)
	r.Get("/heroes", f.heroesHandler)
	r.Get("/constants/items", f.itemsHandler)

	f.s = httptest.NewServer(r)
	return f
}

func (f *FakeOpenDota) Close() {
	f.s.Close()
}

func (f *FakeOpenDota) URL() string {
	return f.s.URL
}

// Script queues statuses that the next requests to path answer with before
// the normal response is served again.
func (f *FakeOpenDota) Script(path string, statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[path] = append(f.scripts[path], statuses...)
}

// Hits returns how many requests reached path.
func (f *FakeOpenDota) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// LastQuery returns the raw query string of the most recent request to path.
func (f *FakeOpenDota) LastQuery(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queries[path]
	if len(q) == 0 {
		return ""
	}
	return q[len(q)-1]
}

// SetExplorer configures the explorer answer. A non-200 status makes the
// endpoint fail permanently.
func (f *FakeOpenDota) SetExplorer(status int, matchIDs ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.explorerStatus = status
	f.explorerRows = matchIDs
}

func (f *FakeOpenDota) AddProMatch(matchID, leagueID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proMatches = append(f.proMatches, map[string]any{
		"match_id":   matchID,
		"leagueid":   leagueID,
		"start_time": 1700000000 - len(f.proMatches),
	})
}

func (f *FakeOpenDota) SetMatch(doc domain.RawDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := toInt64(doc["match_id"])
	f.matches[id] = doc
}

func (f *FakeOpenDota) SetProfile(accountID int64, doc domain.RawDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[accountID] = doc
}

func (f *FakeOpenDota) SetHistory(accountID int64, rows ...domain.RawDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[accountID] = rows
}

func (f *FakeOpenDota) SetHeroes(heroes ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heroes = heroes
}

func (f *FakeOpenDota) SetItem(key string, id, cost int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = map[string]any{"id": id, "dname": key, "cost": cost}
}

func (f *FakeOpenDota) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		path := r.URL.Path
		f.hits[path]++
		f.queries[path] = append(f.queries[path], r.URL.RawQuery)
		status := 0
		if queue := f.scripts[path]; len(queue) > 0 {
			status, f.scripts[path] = queue[0], queue[1:]
		}
		f.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeOpenDota) explorerHandler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	status, ids := f.explorerStatus, f.explorerRows
	f.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, map[string]any{"match_id": id})
	}
	writeJSON(w, map[string]any{"rowCount": len(rows), "rows": rows})
}

func (f *FakeOpenDota) proMatchesHandler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed := f.proMatches
	if feed == nil {
		feed = []map[string]any{}
	}
	writeJSON(w, feed)
}

func (f *FakeOpenDota) matchHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "matchID"), 10, 64)
	if err != nil {
		http.Error(w, "bad match id", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	doc, ok := f.matches[id]
	f.mu.Unlock()
	if !ok {
		http.Error(w, `{"error":"Not Found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, doc)
}

func (f *FakeOpenDota) profileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		http.Error(w, "bad account id", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	doc, ok := f.profiles[id]
	f.mu.Unlock()
	if !ok {
		doc = domain.RawDocument{"profile": map[string]any{"account_id": id}}
	}
	writeJSON(w, doc)
}

func (f *FakeOpenDota) historyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		http.Error(w, "bad account id", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	rows := f.history[id]
	f.mu.Unlock()
	if rows == nil {
		rows = []domain.RawDocument{}
	}
	writeJSON(w, rows)
}

func (f *FakeOpenDota) heroesHandler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	heroes := f.heroes
	if heroes == nil {
		heroes = []map[string]any{}
	}
	writeJSON(w, heroes)
}

func (f *FakeOpenDota) itemsHandler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, f.items)
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("encode: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
