package cache

import (
	"errors"
	"testing"
)

type fakeVectorSource struct {
	topByRankCalls      int
	sectorSnapshotCalls int
	reloadCalls         int
}

func (f *fakeVectorSource) TopByRank(date string, topN int) (any, error) {
	f.topByRankCalls++
	return []string{date, "top"}, nil
}
func (f *fakeVectorSource) ByCode(code string) (any, error)              { return code, nil }
func (f *fakeVectorSource) ByCodes(codes []string) (any, error)         { return codes, nil }
func (f *fakeVectorSource) HistorySlice(code string, days int) (any, error) { return days, nil }
func (f *fakeVectorSource) IndustrySlice(industry, date string) (any, error) {
	return industry + date, nil
}
func (f *fakeVectorSource) StrategyBundle(name string) (any, error) { return name, nil }
func (f *fakeVectorSource) SectorSnapshot(date string) (any, error) {
	f.sectorSnapshotCalls++
	return date, nil
}
func (f *fakeVectorSource) Reload() error {
	f.reloadCalls++
	return nil
}
func (f *fakeVectorSource) Stats() (int, float64) { return 100, 2.5 }

func TestVectorStore_QueryDispatchesAndMemoizes(t *testing.T) {
	src := &fakeVectorSource{}
	vs, err := NewVectorStore("stock_market", src, 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := vs.Query("top_by_rank", "2026-07-30", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}

	if _, err := vs.Query("top_by_rank", "2026-07-30", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.topByRankCalls != 1 {
		t.Fatalf("expected memoized second call, got %d underlying calls", src.topByRankCalls)
	}
}

func TestVectorStore_UnknownMethod(t *testing.T) {
	vs, _ := NewVectorStore("stock_market", &fakeVectorSource{}, 8)
	_, err := vs.Query("nonexistent")
	if !errors.Is(err, ErrMethodNotFound) {
		t.Fatalf("expected ErrMethodNotFound, got %v", err)
	}
}

func TestVectorStore_ReloadInvalidatesMemo(t *testing.T) {
	src := &fakeVectorSource{}
	vs, _ := NewVectorStore("stock_market", src, 8)

	vs.Query("sector_snapshot", "2026-07-30")
	if err := vs.Reload(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vs.Query("sector_snapshot", "2026-07-30")

	if src.reloadCalls != 1 {
		t.Fatalf("expected 1 reload call, got %d", src.reloadCalls)
	}
	if src.sectorSnapshotCalls != 2 {
		t.Fatalf("expected memo dropped by reload (2 underlying calls), got %d", src.sectorSnapshotCalls)
	}
}

func TestVectorStore_WriteOperationsUnsupported(t *testing.T) {
	vs, _ := NewVectorStore("stock_market", &fakeVectorSource{}, 8)
	if err := vs.Set("k", "v", nil); !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
	if err := vs.Delete("k"); !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestVectorStore_Stats(t *testing.T) {
	vs, _ := NewVectorStore("stock_market", &fakeVectorSource{}, 8)
	stats := vs.Stats()
	if stats.Type != "vector" || stats.Rows != 100 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
