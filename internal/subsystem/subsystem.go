// Package subsystem assembles the cache subsystem's moving parts — the
// region registry, the Facade, the PolicyEngine, and the background Syncer —
// into one explicitly constructed aggregate, replacing the scattered global
// singletons a distillation of this system would otherwise reach for.
package subsystem

import (
	"fmt"
	"log"
	"time"

	"github.com/stockcache/cachesrv/internal/cache"
	"github.com/stockcache/cachesrv/internal/cachefacade"
	"github.com/stockcache/cachesrv/internal/config"
	"github.com/stockcache/cachesrv/internal/marketdata"
	"github.com/stockcache/cachesrv/internal/persistence"
	"github.com/stockcache/cachesrv/internal/policyengine"
)

// Handle bundles the subsystem's public entry points: Facade for cache
// access, PolicyEngine for derived rules, and the Manager for admin
// surfaces. Syncer is unexported since nothing outside Start/Stop should
// touch it directly.
type Handle struct {
	Manager *cache.Manager
	Facade  *cachefacade.Facade
	Policy  *policyengine.PolicyEngine

	syncer *cachefacade.Syncer
}

// Build wires every region named in the cache subsystem's contract
// (sessions, users, config, api_response, reports, stock_market) on top of
// the already-bootstrapped persistence handle, then layers the Facade,
// PolicyEngine, and Syncer on top. The Syncer is constructed but not
// started; call Start once the caller is ready to begin background draining.
func Build(envCfg *config.EnvConfig, db *persistence.Handle, logger *log.Logger) (*Handle, error) {
	sessionPolicy := cache.NewWriteBehindPolicy[cachefacade.SessionState](24 * time.Hour)
	sessions := cache.NewObjectStore[cachefacade.SessionState]("sessions", sessionPolicy)

	users := cache.NewObjectStore[any]("users", cache.NewCacheAsidePolicy[any](30*time.Minute))

	configPolicy := cache.NewWriteThroughPolicy[any](0)
	configStore := cache.NewObjectStore[any]("config", configPolicy)

	apiResponse := cache.NewFileStore("api_response", envCfg.CacheDir+"/api_response",
		int64(envCfg.APIResponseBudgetBytes), envCfg.FileStoreDefaultSetTTL, envCfg.FileStoreLoaderMissTTL)
	reports := cache.NewFileStore("reports", envCfg.CacheDir+"/reports",
		int64(envCfg.ReportsBudgetBytes), envCfg.FileStoreDefaultSetTTL, envCfg.FileStoreLoaderMissTTL)

	stockMarket, err := cache.NewVectorStore("stock_market", marketdata.NewSource(nil), 4096)
	if err != nil {
		return nil, fmt.Errorf("subsystem: build stock_market region: %w", err)
	}

	manager := cache.NewManager()
	manager.Register("sessions", sessions)
	manager.Register("users", users)
	manager.Register("config", configStore)
	manager.Register("api_response", apiResponse)
	manager.Register("reports", reports)
	manager.Register("stock_market", stockMarket)

	audit := cachefacade.NewAuditBuffer(envCfg.AuditBufferCapacity)

	facade, err := cachefacade.NewFacade(cachefacade.Deps{
		Manager:       manager,
		Repo:          db.Repo,
		Logger:        log.New(logger.Writer(), "cachefacade: ", logger.Flags()),
		Sessions:      sessions,
		SessionPolicy: sessionPolicy,
		Users:         users,
		Config:        configStore,
		ConfigPolicy:  configPolicy,
		APIResponse:   apiResponse,
		Reports:       reports,
		StockMarket:   stockMarket,
		Audit:         audit,
	})
	if err != nil {
		return nil, fmt.Errorf("subsystem: build facade: %w", err)
	}

	policy := policyengine.NewPolicyEngine(facade, log.New(logger.Writer(), "policyengine: ", logger.Flags()))

	syncer := cachefacade.NewSyncer(cachefacade.SyncerConfig{
		Sessions:            sessions,
		SessionPolicy:       sessionPolicy,
		Audit:               audit,
		Manager:             manager,
		Repo:                db.Repo,
		Logger:              log.New(logger.Writer(), "syncer: ", logger.Flags()),
		SyncInterval:        envCfg.SyncInterval,
		GCInterval:          envCfg.GCInterval,
		MemoryCeilingMB:     envCfg.MemoryCeilingMB,
		MaintenanceSchedule: envCfg.MaintenanceSchedule,
	})

	return &Handle{Manager: manager, Facade: facade, Policy: policy, syncer: syncer}, nil
}

// Start begins the Syncer's background drain/GC loop.
func (h *Handle) Start() {
	h.syncer.Start()
}

// Stop forces a final sync cycle and waits for the Syncer's goroutine to
// exit. Call after the admin HTTP surface has stopped accepting requests.
func (h *Handle) Stop() {
	h.syncer.Stop()
}
