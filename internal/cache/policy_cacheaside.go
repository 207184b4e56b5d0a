package cache

import "time"

// CacheAsidePolicy reads through a loader on miss and invalidates on write,
// so the next read repopulates from the system of record.
type CacheAsidePolicy[T any] struct {
	TTL time.Duration
	ver versionCounter
}

// NewCacheAsidePolicy builds a CacheAsidePolicy with the given default TTL.
func NewCacheAsidePolicy[T any](ttl time.Duration) *CacheAsidePolicy[T] {
	return &CacheAsidePolicy[T]{TTL: ttl}
}

func (p *CacheAsidePolicy[T]) Get(key string, m map[string]*Entry[T], loader Loader[T]) (T, bool) {
	var zero T

	if e, ok := m[key]; ok {
		if e.IsExpired() {
			delete(m, key)
		} else {
			e.Touch()
			return e.Value, true
		}
	}

	if loader == nil {
		return zero, false
	}

	v, err := loader()
	if err != nil || loaderReturnedNothing(v) {
		return zero, false
	}
	m[key] = NewEntry(v, p.TTL, p.ver.next())
	return v, true
}

// Set, per the cache-aside contract, never stores the value directly: it
// persists (if a persister is given) and then evicts so the next Get
// repopulates from the loader.
func (p *CacheAsidePolicy[T]) Set(key string, value T, m map[string]*Entry[T], persister Persister[T]) error {
	if persister != nil {
		if err := persister(key, value); err != nil {
			return err
		}
	}
	delete(m, key)
	return nil
}

// SetDirect bypasses the persist-then-evict contract and writes the entry
// immediately, for explicit warm-up. A nil ttl uses the policy's default TTL.
func (p *CacheAsidePolicy[T]) SetDirect(key string, value T, m map[string]*Entry[T], ttl *time.Duration) {
	m[key] = NewEntry(value, resolveTTL(ttl, p.TTL), p.ver.next())
}

func (p *CacheAsidePolicy[T]) Delete(key string, m map[string]*Entry[T]) {
	delete(m, key)
}
