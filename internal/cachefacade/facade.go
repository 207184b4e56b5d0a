// Package cachefacade implements the stable, error-isolated API used by
// application code to reach the cache subsystem: a single entry point that
// fixes the key-naming scheme, wraps every call in a recovery shell, and
// owns the background syncing of write-behind regions and audit records to
// persistence.
package cachefacade

import (
	"fmt"
	"log"
	"time"

	"github.com/stockcache/cachesrv/internal/cache"
	"github.com/stockcache/cachesrv/internal/persistence"
)

// SessionState is the value type of the sessions region.
type SessionState struct {
	Status       string
	IPAddress    string
	LastActiveNs int64
}

// Facade is the sole point of contact between application code and the
// cache subsystem. No caller outside this package constructs a cache key.
type Facade struct {
	keys    KeyBuilder
	manager *cache.Manager
	repo    *persistence.Repo
	logger  *log.Logger

	sessions       *cache.ObjectStore[SessionState]
	sessionPolicy  *cache.WriteBehindPolicy[SessionState]
	users          *cache.ObjectStore[any]
	config         *cache.ObjectStore[any]
	configPolicy   *cache.WriteThroughPolicy[any]
	configLoader   *ConfigLoader
	apiResponse    *cache.FileStore
	reports        *cache.FileStore
	stockMarket    *cache.VectorStore // nil if not wired
	audit          *AuditBuffer
}

// Deps bundles every collaborator Facade needs. All fields are required
// except StockMarket, which is nil when no analytical store is wired.
type Deps struct {
	Manager       *cache.Manager
	Repo          *persistence.Repo
	Logger        *log.Logger
	Sessions      *cache.ObjectStore[SessionState]
	SessionPolicy *cache.WriteBehindPolicy[SessionState]
	Users         *cache.ObjectStore[any]
	Config        *cache.ObjectStore[any]
	ConfigPolicy  *cache.WriteThroughPolicy[any]
	APIResponse   *cache.FileStore
	Reports       *cache.FileStore
	StockMarket   *cache.VectorStore
	Audit         *AuditBuffer
}

// NewFacade wires a Facade from its already-constructed collaborators and
// runs the config region's startup reload.
func NewFacade(d Deps) (*Facade, error) {
	f := &Facade{
		manager:       d.Manager,
		repo:          d.Repo,
		logger:        d.Logger,
		sessions:      d.Sessions,
		sessionPolicy: d.SessionPolicy,
		users:         d.Users,
		config:        d.Config,
		configPolicy:  d.ConfigPolicy,
		apiResponse:   d.APIResponse,
		reports:       d.Reports,
		stockMarket:   d.StockMarket,
		audit:         d.Audit,
	}
	f.configLoader = NewConfigLoader(d.Config, d.ConfigPolicy, d.Repo, d.Logger)
	if err := f.configLoader.Reload(); err != nil {
		return nil, fmt.Errorf("facade: initial config reload: %w", err)
	}
	return f, nil
}

// --- session ---

func (f *Facade) GetSession(id string) (SessionState, bool) {
	return withRecovery(f.logger, "GetSession", SessionState{}, func() (SessionState, error) {
		v, ok := f.sessions.Get(f.keys.Entity(id), nil)
		if !ok {
			return SessionState{}, nil
		}
		return v, nil
	})
}

func (f *Facade) SetSessionHeartbeat(id, status, ip string) {
	withRecoveryVoid(f.logger, "SetSessionHeartbeat", func() error {
		return f.sessions.Set(f.keys.Entity(id), SessionState{
			Status: status, IPAddress: ip, LastActiveNs: time.Now().UnixNano(),
		}, nil)
	})
}

func (f *Facade) RemoveSession(id string) {
	withRecoveryVoid(f.logger, "RemoveSession", func() error {
		f.sessions.Delete(f.keys.Entity(id))
		return nil
	})
}

// --- user ---

func (f *Facade) GetUser(id string, loader cache.Loader[any]) (any, bool) {
	return withRecovery(f.logger, "GetUser", any(nil), func() (any, error) {
		v, ok := f.users.Get(f.keys.Entity(id), loader)
		if !ok {
			return nil, nil
		}
		return v, nil
	})
}

func (f *Facade) InvalidateUser(id string) {
	withRecoveryVoid(f.logger, "InvalidateUser", func() error {
		f.users.Delete(f.keys.Entity(id))
		return nil
	})
}

// --- config ---

func (f *Facade) GetConfig(key string, loader cache.Loader[any]) (any, bool) {
	return withRecovery(f.logger, "GetConfig", any(nil), func() (any, error) {
		v, ok := f.config.Get(key, loader)
		if !ok {
			return nil, nil
		}
		return v, nil
	})
}

// SetConfig writes key's new value through to persistence and reloads the
// config region, per the config region's write-database-then-reload
// contract (§4.11): it never uses the region's ordinary Set path, since that
// would write a single key rather than keep the whole region's view
// consistent with the table.
func (f *Facade) SetConfig(key string, value any, valueType, category string) error {
	var resultErr error
	withRecoveryVoid(f.logger, "SetConfig", func() error {
		resultErr = f.configLoader.Mutate(key, value, valueType, category)
		return resultErr
	})
	return resultErr
}

// --- API response cache ---

func (f *Facade) GetAPICache(endpoint, params string, loader cache.FileLoader) []byte {
	return withRecovery(f.logger, "GetAPICache", []byte(nil), func() ([]byte, error) {
		return f.apiResponse.Get(f.keys.APICache(endpoint, params), loader)
	})
}

func (f *Facade) SetAPICache(endpoint, params string, value []byte, ttl time.Duration) {
	withRecoveryVoid(f.logger, "SetAPICache", func() error {
		return f.apiResponse.Set(f.keys.APICache(endpoint, params), value, ttl)
	})
}

// --- report cache ---

func (f *Facade) GetReport(reportType, params string) []byte {
	return withRecovery(f.logger, "GetReport", []byte(nil), func() ([]byte, error) {
		return f.reports.Get(f.keys.Report(reportType, params), nil)
	})
}

func (f *Facade) CacheReport(reportType, params string, content []byte, ttl time.Duration) {
	withRecoveryVoid(f.logger, "CacheReport", func() error {
		return f.reports.Set(f.keys.Report(reportType, params), content, ttl)
	})
}

// --- stock / sector / hotspot / signal / industry-jump passthroughs ---

func (f *Facade) TopByRank(date string, topN int) any {
	return f.queryVector("TopByRank", "top_by_rank", date, topN)
}

func (f *Facade) ByCode(code string) any {
	return f.queryVector("ByCode", "by_code", code)
}

func (f *Facade) ByCodes(codes []string) any {
	return f.queryVector("ByCodes", "by_codes", codes)
}

func (f *Facade) HistorySlice(code string, days int) any {
	return f.queryVector("HistorySlice", "history_slice", code, days)
}

func (f *Facade) IndustrySlice(industry, date string) any {
	return f.queryVector("IndustrySlice", "industry_slice", industry, date)
}

func (f *Facade) StrategyBundle(name string) any {
	return f.queryVector("StrategyBundle", "strategy_bundle", name)
}

func (f *Facade) SectorSnapshot(date string) any {
	return f.queryVector("SectorSnapshot", "sector_snapshot", date)
}

func (f *Facade) queryVector(op, method string, args ...any) any {
	return withRecovery(f.logger, op, any(nil), func() (any, error) {
		if f.stockMarket == nil {
			return nil, fmt.Errorf("%s: stock market region not wired", op)
		}
		return f.stockMarket.Query(method, args...)
	})
}

func (f *Facade) ReloadStockData() error {
	var resultErr error
	withRecoveryVoid(f.logger, "ReloadStockData", func() error {
		if f.stockMarket == nil {
			return fmt.Errorf("reload stock data: stock market region not wired")
		}
		resultErr = f.stockMarket.Reload()
		return resultErr
	})
	return resultErr
}

// --- audit ---

// Audit logs an administrative or security-relevant action to the bounded
// in-memory buffer; it is drained to persistence by the Syncer.
func (f *Facade) Audit(userID, action, target, detail, ip string) {
	withRecoveryVoid(f.logger, "Audit", func() error {
		f.audit.Log(userID, action, target, detail, ip, clockNs())
		return nil
	})
}

// --- admin ---

func (f *Facade) Stats() map[string]cache.RegionStats {
	return withRecovery(f.logger, "Stats", map[string]cache.RegionStats(nil), func() (map[string]cache.RegionStats, error) {
		return f.manager.Stats(), nil
	})
}

func (f *Facade) GC() int {
	return withRecovery(f.logger, "GC", 0, func() (int, error) {
		return f.manager.GC(), nil
	})
}

func (f *Facade) ClearAll() {
	withRecoveryVoid(f.logger, "ClearAll", func() error {
		f.manager.ClearAll()
		return nil
	})
}

func (f *Facade) RegionNames() []string {
	return withRecovery(f.logger, "RegionNames", []string(nil), func() ([]string, error) {
		return f.manager.RegionNames(), nil
	})
}
