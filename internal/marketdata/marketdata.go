// Package marketdata is a minimal in-process stand-in for the analytical
// stock-data client the cache subsystem's vector region wraps. Building the
// real columnar store is out of scope here; this satisfies
// cache.VectorSource with data held in plain Go maps so the rest of the
// subsystem has something concrete to exercise and tests have something
// deterministic to query.
package marketdata

import (
	"fmt"
	"sort"
	"sync"
)

// DailyRecord is one code's trading snapshot for a given date.
type DailyRecord struct {
	Code   string
	Date   string
	Close  float64
	Volume int64
	RankPct float64
}

// Source holds a loaded snapshot of daily records, grouped for the query
// shapes VectorSource exposes. Reload swaps the whole snapshot atomically.
type Source struct {
	loadFn func() ([]DailyRecord, error)

	mu      sync.RWMutex
	byCode  map[string][]DailyRecord // history, most recent last
	byDate  map[string][]DailyRecord
}

// NewSource builds a Source whose dataset is (re)populated by loadFn. With a
// nil loadFn, Reload is a no-op and the store holds only what Load puts in
// it, which is fine for tests that seed data directly via Load.
func NewSource(loadFn func() ([]DailyRecord, error)) *Source {
	return &Source{
		loadFn: loadFn,
		byCode: make(map[string][]DailyRecord),
		byDate: make(map[string][]DailyRecord),
	}
}

// Load replaces the dataset with records, grouping them by code and date.
func (s *Source) Load(records []DailyRecord) {
	byCode := make(map[string][]DailyRecord)
	byDate := make(map[string][]DailyRecord)
	for _, r := range records {
		byCode[r.Code] = append(byCode[r.Code], r)
		byDate[r.Date] = append(byDate[r.Date], r)
	}

	s.mu.Lock()
	s.byCode = byCode
	s.byDate = byDate
	s.mu.Unlock()
}

func (s *Source) TopByRank(date string, topN int) (any, error) {
	s.mu.RLock()
	rows := append([]DailyRecord(nil), s.byDate[date]...)
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].RankPct > rows[j].RankPct })
	if topN >= 0 && topN < len(rows) {
		rows = rows[:topN]
	}
	return rows, nil
}

func (s *Source) ByCode(code string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.byCode[code]
	if len(history) == 0 {
		return nil, fmt.Errorf("marketdata: no record for code %s", code)
	}
	return history[len(history)-1], nil
}

func (s *Source) ByCodes(codes []string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DailyRecord, 0, len(codes))
	for _, code := range codes {
		history := s.byCode[code]
		if len(history) == 0 {
			continue
		}
		out = append(out, history[len(history)-1])
	}
	return out, nil
}

func (s *Source) HistorySlice(code string, days int) (any, error) {
	s.mu.RLock()
	history := s.byCode[code]
	s.mu.RUnlock()

	if days > 0 && days < len(history) {
		history = history[len(history)-days:]
	}
	return history, nil
}

func (s *Source) IndustrySlice(industry, date string) (any, error) {
	// No industry taxonomy is modeled in this stand-in; the date slice is
	// returned as-is since a real client would filter on the industry join.
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byDate[date], nil
}

func (s *Source) StrategyBundle(name string) (any, error) {
	return map[string]any{"name": name, "signals": []string{}}, nil
}

func (s *Source) SectorSnapshot(date string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byDate[date], nil
}

// Reload re-runs loadFn and swaps the dataset in. A nil loadFn is a no-op.
func (s *Source) Reload() error {
	if s.loadFn == nil {
		return nil
	}
	records, err := s.loadFn()
	if err != nil {
		return fmt.Errorf("marketdata: reload: %w", err)
	}
	s.Load(records)
	return nil
}

func (s *Source) Stats() (rows int, memoryMB float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.byCode {
		rows += len(v)
	}
	return rows, float64(rows*64) / (1 << 20)
}
