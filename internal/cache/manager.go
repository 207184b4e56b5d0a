package cache

import (
	"fmt"
	"runtime/debug"

	"github.com/puzpuzpuz/xsync/v4"
)

// ErrMissingRegion is returned by GetRegion for an unregistered name.
var ErrMissingRegion = fmt.Errorf("cache: region not registered")

// Manager is the registry of named regions. Region construction happens once
// at startup wiring; the registry itself never destroys a region at runtime
// except via explicit Unregister.
type Manager struct {
	regions *xsync.Map[string, Region]
}

// NewManager builds an empty Manager.
func NewManager() *Manager {
	return &Manager{regions: xsync.NewMap[string, Region]()}
}

// Register adds or replaces the region named name.
func (m *Manager) Register(name string, region Region) {
	m.regions.Store(name, region)
}

// Unregister removes the region named name, if present.
func (m *Manager) Unregister(name string) {
	m.regions.Delete(name)
}

// GetRegion looks up a region by name.
func (m *Manager) GetRegion(name string) (Region, error) {
	region, ok := m.regions.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRegion, name)
	}
	return region, nil
}

// HasRegion reports whether name is registered.
func (m *Manager) HasRegion(name string) bool {
	_, ok := m.regions.Load(name)
	return ok
}

// RegionNames returns every registered region name.
func (m *Manager) RegionNames() []string {
	names := make([]string, 0, m.regions.Size())
	m.regions.Range(func(name string, _ Region) bool {
		names = append(names, name)
		return true
	})
	return names
}

// Stats returns every region's observability snapshot, keyed by name.
func (m *Manager) Stats() map[string]RegionStats {
	out := make(map[string]RegionStats, m.regions.Size())
	m.regions.Range(func(name string, region Region) bool {
		out[name] = region.Stats()
		return true
	})
	return out
}

// GC sweeps expired entries from every region and triggers a runtime memory
// reclamation pass. Object regions are swept via ClearExpired; FileStore
// regions self-evict and report 0; VectorStore regions are skipped (their
// ClearExpired always returns 0 too, so this is safe without a type switch).
func (m *Manager) GC() int {
	total := 0
	m.regions.Range(func(_ string, region Region) bool {
		total += region.ClearExpired()
		return true
	})
	debug.FreeOSMemory()
	return total
}

// ClearAll clears every region except vector regions, which require an
// explicit Reload (a VectorStore's Clear is a documented no-op).
func (m *Manager) ClearAll() {
	m.regions.Range(func(_ string, region Region) bool {
		region.Clear()
		return true
	})
}
