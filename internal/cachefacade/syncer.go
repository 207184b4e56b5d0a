package cachefacade

import (
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/stockcache/cachesrv/internal/cache"
	"github.com/stockcache/cachesrv/internal/persistence"
)

// SyncerConfig bundles the tunables and collaborators a Syncer needs. The
// sessions store and its write-behind policy are passed as concrete typed
// values rather than looked up by name through the Manager: the sessions
// region is always write-behind by construction in this wiring, so the
// "skip if not write-behind" branch the distilled design describes is
// enforced by the type system instead of a runtime check.
type SyncerConfig struct {
	Sessions      *cache.ObjectStore[SessionState]
	SessionPolicy *cache.WriteBehindPolicy[SessionState]
	Audit         *AuditBuffer
	Manager       *cache.Manager
	Repo          *persistence.Repo
	Logger        *log.Logger

	SyncInterval        time.Duration
	GCInterval          time.Duration
	MemoryCeilingMB     int
	MaintenanceSchedule string // robfig/cron spec, e.g. "@every 1h"
}

// Syncer is the one dedicated background worker draining write-behind
// regions and the audit buffer to persistence, plus triggering GC under
// memory pressure or on a schedule.
type Syncer struct {
	cfg SyncerConfig

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	lastGC time.Time
	cronID *cron.Cron
}

// NewSyncer builds a Syncer from cfg. It does not start the background loop;
// call Start for that, after every region has been registered.
func NewSyncer(cfg SyncerConfig) *Syncer {
	return &Syncer{cfg: cfg, stopCh: make(chan struct{})}
}

// Start launches the drain/GC loop and, if a maintenance schedule is
// configured, a secondary cron-driven GC trigger.
func (s *Syncer) Start() {
	s.wg.Add(1)
	go s.run()

	if s.cfg.MaintenanceSchedule != "" {
		// Default parser (standard 5-field cron plus descriptors like
		// "@every 1h"), matching the same format EnvConfig validates at
		// startup via cron.ParseStandard.
		c := cron.New()
		_, err := c.AddFunc(s.cfg.MaintenanceSchedule, func() {
			n := s.cfg.Manager.GC()
			s.cfg.Logger.Printf("syncer: scheduled maintenance gc reclaimed %d expired entries", n)
		})
		if err != nil {
			s.cfg.Logger.Printf("syncer: invalid maintenance schedule %q: %v", s.cfg.MaintenanceSchedule, err)
		} else {
			c.Start()
			s.cronID = c
		}
	}
}

// Stop signals the worker to stop, waits for it to exit (after a final
// forced cycle), and stops the secondary cron trigger if one was started.
func (s *Syncer) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	if s.cronID != nil {
		s.cronID.Stop()
	}
}

func (s *Syncer) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.forceSync()
			return
		case <-ticker.C:
			s.cycle()
		}
	}
}

// forceSync runs one final drain-everything cycle on shutdown, regardless of
// memory pressure or GC interval.
func (s *Syncer) forceSync() {
	s.drainSessions()
	s.drainAudit()
	s.maybeGC(true)
}

func (s *Syncer) cycle() {
	s.drainSessions()
	s.drainAudit()
	s.maybeGC(false)
}

// drainSessions atomically drains the sessions region's dirty set, snapshots
// each key's current value under the region lock, clears its dirty flag, and
// persists the batch in one transaction outside the lock. A failed batch is
// logged; its keys are not re-added (best-effort, matching the write-behind
// contract that persistence failures never retry).
func (s *Syncer) drainSessions() {
	keys := s.cfg.SessionPolicy.DrainDirty()
	if len(keys) == 0 {
		return
	}

	updates := make([]persistence.SessionUpdate, 0, len(keys))
	s.cfg.Sessions.WithLocked(func(m map[string]*cache.Entry[SessionState]) {
		for _, key := range keys {
			entry, ok := m[key]
			if !ok {
				continue
			}
			updates = append(updates, persistence.SessionUpdate{
				ID:            key,
				LastActiveNs:  entry.Value.LastActiveNs,
				CurrentStatus: entry.Value.Status,
				IPAddress:     entry.Value.IPAddress,
			})
			entry.ClearDirty()
		}
	})

	if len(updates) == 0 {
		return
	}
	if err := s.cfg.Repo.BulkUpdateSessions(updates); err != nil {
		s.cfg.Logger.Printf("syncer: session drain failed, %d keys not persisted: %v", len(updates), err)
	}
}

// drainAudit atomically swaps the audit buffer and bulk-inserts the drained
// records. Because Flush already removed them from the buffer, a failed
// batch is lost — audit durability never blocks the business path.
func (s *Syncer) drainAudit() {
	records := s.cfg.Audit.Flush()
	if len(records) == 0 {
		return
	}

	rows := make([]persistence.AuditRecord, len(records))
	for i, r := range records {
		rows[i] = persistence.AuditRecord{
			ID:          uuid.NewString(),
			UserID:      r.UserID,
			Action:      r.Action,
			Target:      r.Target,
			Detail:      r.Detail,
			IP:          r.IP,
			CreatedAtNs: r.CreatedAtNs,
		}
	}
	if err := s.cfg.Repo.BulkInsertAudit(rows); err != nil {
		s.cfg.Logger.Printf("syncer: audit drain failed, %d records lost: %v", len(rows), err)
	}
}

// maybeGC runs Manager.GC immediately if process memory is over 80% of the
// configured ceiling, or if the scheduled GC interval has elapsed, or if
// force is true (shutdown path).
func (s *Syncer) maybeGC(force bool) {
	reason := ""
	switch {
	case s.memoryPercent() > 0.8:
		reason = "memory_pressure"
	case force, time.Since(s.lastGC) > s.cfg.GCInterval:
		reason = "scheduled"
	default:
		return
	}

	n := s.cfg.Manager.GC()
	s.lastGC = time.Now()
	s.cfg.Logger.Printf("syncer: gc (%s) reclaimed %d expired entries", reason, n)
}

// memoryPercent approximates process memory pressure as runtime.MemStats.Sys
// relative to the configured ceiling. Go has no standard-library "percent of
// physical RAM used" primitive, and the reference stack imports none either;
// this is a deliberate approximation.
func (s *Syncer) memoryPercent() float64 {
	if s.cfg.MemoryCeilingMB <= 0 {
		return 0
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	sysMB := float64(mem.Sys) / (1 << 20)
	return sysMB / float64(s.cfg.MemoryCeilingMB)
}
