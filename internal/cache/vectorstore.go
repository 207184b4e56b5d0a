package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/maypok86/otter"
)

// ErrMethodNotFound is returned by VectorStore.Query for an unrecognized
// method name.
var ErrMethodNotFound = errors.New("cache: vector method not found")

// VectorSource is the typed read interface a VectorStore wraps. Its members
// are the concrete query kinds the analytical store supports; construction
// of a real implementation is out of scope here (see Non-goals) but any
// in-process stand-in used for wiring or tests satisfies this interface.
type VectorSource interface {
	TopByRank(date string, topN int) (any, error)
	ByCode(code string) (any, error)
	ByCodes(codes []string) (any, error)
	HistorySlice(code string, days int) (any, error)
	IndustrySlice(industry, date string) (any, error)
	StrategyBundle(name string) (any, error)
	SectorSnapshot(date string) (any, error)
	Reload() error
	// Stats reports the approximate footprint of the loaded dataset.
	Stats() (rows int, memoryMB float64)
}

// VectorStore is a read-only adapter over a VectorSource. It memoizes
// expensive query results in a bounded otter cache keyed by the call shape;
// Reload invalidates the memoization cache along with the underlying
// dataset.
type VectorStore struct {
	name         string
	source       VectorSource
	memoCapacity int

	mu   sync.Mutex
	memo otter.Cache[string, any]
}

// NewVectorStore builds a VectorStore named name over source, memoizing up
// to memoCapacity distinct query results.
func NewVectorStore(name string, source VectorSource, memoCapacity int) (*VectorStore, error) {
	memo, err := buildMemoCache(memoCapacity)
	if err != nil {
		return nil, fmt.Errorf("vector store %s: build memo cache: %w", name, err)
	}
	return &VectorStore{name: name, source: source, memoCapacity: memoCapacity, memo: memo}, nil
}

func buildMemoCache(capacity int) (otter.Cache[string, any], error) {
	return otter.MustBuilder[string, any](capacity).
		Cost(func(_ string, _ any) uint32 { return 1 }).
		Build()
}

// Query dispatches to one of VectorSource's typed methods by name. The
// string layer exists only to preserve the external call shape of the
// analytical store; internally every call resolves to a typed method.
func (v *VectorStore) Query(method string, args ...any) (any, error) {
	memoKey := fmt.Sprintf("%s:%v", method, args)

	v.mu.Lock()
	cached, ok := v.memo.Get(memoKey)
	v.mu.Unlock()
	if ok {
		return cached, nil
	}

	result, err := v.dispatch(method, args)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.memo.Set(memoKey, result)
	v.mu.Unlock()
	return result, nil
}

func (v *VectorStore) dispatch(method string, args []any) (any, error) {
	switch method {
	case "top_by_rank":
		date, topN, err := arg2[string, int](args)
		if err != nil {
			return nil, err
		}
		return v.source.TopByRank(date, topN)
	case "by_code":
		code, err := arg1[string](args)
		if err != nil {
			return nil, err
		}
		return v.source.ByCode(code)
	case "by_codes":
		codes, err := arg1[[]string](args)
		if err != nil {
			return nil, err
		}
		return v.source.ByCodes(codes)
	case "history_slice":
		code, days, err := arg2[string, int](args)
		if err != nil {
			return nil, err
		}
		return v.source.HistorySlice(code, days)
	case "industry_slice":
		industry, date, err := arg2[string, string](args)
		if err != nil {
			return nil, err
		}
		return v.source.IndustrySlice(industry, date)
	case "strategy_bundle":
		name, err := arg1[string](args)
		if err != nil {
			return nil, err
		}
		return v.source.StrategyBundle(name)
	case "sector_snapshot":
		date, err := arg1[string](args)
		if err != nil {
			return nil, err
		}
		return v.source.SectorSnapshot(date)
	default:
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}
}

// Reload rebuilds the underlying dataset and drops all memoized results.
func (v *VectorStore) Reload() error {
	if err := v.source.Reload(); err != nil {
		return err
	}

	fresh, err := buildMemoCache(v.memoCapacity)
	if err != nil {
		return fmt.Errorf("vector store %s: rebuild memo cache: %w", v.name, err)
	}

	v.mu.Lock()
	stale := v.memo
	v.memo = fresh
	v.mu.Unlock()
	stale.Close()
	return nil
}

// Get, Set, and Delete are present so VectorStore can be handed to code that
// expects a general store-like shape, but the vector store is read-only.
func (v *VectorStore) Get(string, Loader[any]) (any, bool) { return nil, false }
func (v *VectorStore) Set(string, any, Persister[any]) error {
	return fmt.Errorf("%w: vector store is read-only", ErrUnsupportedOperation)
}
func (v *VectorStore) Delete(string) error {
	return fmt.Errorf("%w: vector store is read-only", ErrUnsupportedOperation)
}

// ClearExpired is a no-op: VectorStore entries have no TTL, they are
// invalidated wholesale by Reload.
func (v *VectorStore) ClearExpired() int { return 0 }

// Clear is intentionally a no-op; callers must call Reload to refresh a
// vector region, matching the registry-level contract that clear_all leaves
// vector regions untouched.
func (v *VectorStore) Clear() {}

func (v *VectorStore) Stats() RegionStats {
	rows, memoryMB := v.source.Stats()
	return RegionStats{Name: v.name, Type: "vector", Rows: rows, MemoryMB: memoryMB}
}

func arg1[A any](args []any) (A, error) {
	var zero A
	if len(args) != 1 {
		return zero, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	a, ok := args[0].(A)
	if !ok {
		return zero, fmt.Errorf("argument 0: unexpected type %T", args[0])
	}
	return a, nil
}

func arg2[A, B any](args []any) (A, B, error) {
	var zeroA A
	var zeroB B
	if len(args) != 2 {
		return zeroA, zeroB, fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	a, ok := args[0].(A)
	if !ok {
		return zeroA, zeroB, fmt.Errorf("argument 0: unexpected type %T", args[0])
	}
	b, ok := args[1].(B)
	if !ok {
		return zeroA, zeroB, fmt.Errorf("argument 1: unexpected type %T", args[1])
	}
	return a, b, nil
}
