package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter"
	"github.com/zeebo/xxh3"
)

// FileLoader produces byte content on a FileStore miss.
type FileLoader func() ([]byte, error)

type fileIndexEntry struct {
	sizeBytes  int64
	expireAt   time.Time
	lastAccess time.Time
}

func (e *fileIndexEntry) isExpired() bool {
	return !e.expireAt.IsZero() && time.Now().After(e.expireAt)
}

// FileStore is a disk-backed, byte-budgeted, TTL+LRU key/value store. Its
// backing directory is created lazily on first access, not at registration.
// All bookkeeping (the in-memory index) is guarded by a single mutex, which
// is the "internal atomic operations" the storage engine contract asks for;
// no external lock is required of callers.
//
// A small in-memory otter cache sits in front of the disk index, holding the
// most recently touched entries' content so a hot key under repeated access
// doesn't pay a file read every time; it never participates in the budget or
// eviction accounting below, which stays authoritative over the on-disk set.
type FileStore struct {
	name          string
	dir           string
	budgetBytes   int64
	defaultSetTTL time.Duration
	loaderMissTTL time.Duration

	mu         sync.Mutex
	index      map[string]*fileIndexEntry
	totalBytes int64
	opened     bool

	hot otter.Cache[string, []byte]
}

// NewFileStore builds a FileStore named name rooted at dir, with the given
// byte budget and default TTLs. The directory is not touched until the
// first Get or Set call.
func NewFileStore(name, dir string, budgetBytes int64, defaultSetTTL, loaderMissTTL time.Duration) *FileStore {
	hot, err := otter.MustBuilder[string, []byte](hotCacheEntries).
		Cost(func(_ string, v []byte) uint32 { return uint32(len(v)) }).
		Build()
	if err != nil {
		panic("cache: failed to build file store hot cache: " + err.Error())
	}
	return &FileStore{
		name:          name,
		dir:           dir,
		budgetBytes:   budgetBytes,
		defaultSetTTL: defaultSetTTL,
		loaderMissTTL: loaderMissTTL,
		index:         make(map[string]*fileIndexEntry),
		hot:           hot,
	}
}

// hotCacheEntries bounds the in-memory hot-key layer independently of the
// on-disk byte budget. It is otter's total-cost capacity, and the cost
// function charges each entry its byte length, so the bound is on content
// bytes (4096), not on entry count.
const hotCacheEntries = 4096

func (f *FileStore) ensureOpen() error {
	if f.opened {
		return nil
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("file store %s: open dir %s: %w", f.name, f.dir, err)
	}
	f.opened = true
	return nil
}

func (f *FileStore) pathFor(key string) string {
	h := xxh3.HashString(key)
	return filepath.Join(f.dir, fmt.Sprintf("%016x", h))
}

// Get returns the cached content for key. On a miss, if loader is non-nil it
// is invoked and, on success, the result is inserted with a default 5-minute
// (loaderMissTTL) TTL.
func (f *FileStore) Get(key string, loader FileLoader) ([]byte, error) {
	f.mu.Lock()
	if err := f.ensureOpen(); err != nil {
		f.mu.Unlock()
		return nil, err
	}

	if entry, ok := f.index[key]; ok {
		if entry.isExpired() {
			f.removeLocked(key, entry)
		} else {
			entry.lastAccess = time.Now()
			if cached, ok := f.hot.Get(key); ok {
				f.mu.Unlock()
				return cached, nil
			}
			path := f.pathFor(key)
			f.mu.Unlock()
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("file store %s: read %s: %w", f.name, key, err)
			}
			f.hot.Set(key, data)
			return data, nil
		}
	}
	f.mu.Unlock()

	if loader == nil {
		return nil, nil
	}

	data, err := loader()
	if err != nil || data == nil {
		return nil, err
	}
	if err := f.Set(key, data, f.loaderMissTTL); err != nil {
		return nil, err
	}
	return data, nil
}

// Set writes content under key with the given ttl. A ttl of 0 uses the
// store's default set TTL (never the "disable expiry" meaning FileStore
// entries always expire, since unlike object regions they are never
// TTL-swept by GC).
func (f *FileStore) Set(key string, content []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureOpen(); err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = f.defaultSetTTL
	}

	path := f.pathFor(key)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("file store %s: write %s: %w", f.name, key, err)
	}

	if old, ok := f.index[key]; ok {
		f.totalBytes -= old.sizeBytes
	}
	entry := &fileIndexEntry{
		sizeBytes:  int64(len(content)),
		expireAt:   time.Now().Add(ttl),
		lastAccess: time.Now(),
	}
	f.index[key] = entry
	f.totalBytes += entry.sizeBytes
	f.hot.Set(key, content)

	f.evictLocked()
	return nil
}

// Delete removes key, if present.
func (f *FileStore) Delete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.index[key]; ok {
		f.removeLocked(key, entry)
	}
}

// removeLocked deletes the on-disk file and index entry for key. Caller
// must hold f.mu.
func (f *FileStore) removeLocked(key string, entry *fileIndexEntry) {
	os.Remove(f.pathFor(key))
	delete(f.index, key)
	f.totalBytes -= entry.sizeBytes
}

// evictLocked removes least-recently-accessed entries until total size is
// within budget. Caller must hold f.mu.
func (f *FileStore) evictLocked() {
	for f.totalBytes > f.budgetBytes && len(f.index) > 0 {
		var oldestKey string
		var oldest *fileIndexEntry
		for k, e := range f.index {
			if oldest == nil || e.lastAccess.Before(oldest.lastAccess) {
				oldestKey, oldest = k, e
			}
		}
		f.removeLocked(oldestKey, oldest)
	}
}

// ClearExpired is a no-op: FileStore entries self-evict by TTL on access
// and by LRU on Set, and are not swept by Manager.gc.
func (f *FileStore) ClearExpired() int { return 0 }

// Clear removes every entry and its backing file.
func (f *FileStore) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, e := range f.index {
		f.removeLocked(k, e)
	}
}

func (f *FileStore) Stats() RegionStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return RegionStats{
		Name:      f.name,
		Type:      "disk",
		SizeMB:    float64(f.totalBytes) / (1 << 20),
		Count:     len(f.index),
		Directory: f.dir,
	}
}
