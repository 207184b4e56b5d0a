package cachefacade

import (
	"log"
	"testing"
	"time"

	"github.com/stockcache/cachesrv/internal/cache"
	"github.com/stockcache/cachesrv/internal/persistence"
)

func newTestSyncer(t *testing.T) (*Syncer, *cache.ObjectStore[SessionState], *AuditBuffer, *persistence.Handle) {
	t.Helper()

	handle, err := persistence.Bootstrap(t.TempDir())
	if err != nil {
		t.Fatalf("persistence.Bootstrap: %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })

	sessionPolicy := cache.NewWriteBehindPolicy[SessionState](time.Hour)
	sessions := cache.NewObjectStore[SessionState]("sessions", sessionPolicy)
	audit := NewAuditBuffer(100)
	manager := cache.NewManager()
	manager.Register("sessions", sessions)

	logger := log.New(testWriter{t}, "syncer: ", 0)

	s := NewSyncer(SyncerConfig{
		Sessions:      sessions,
		SessionPolicy: sessionPolicy,
		Audit:         audit,
		Manager:       manager,
		Repo:          handle.Repo,
		Logger:        logger,
		SyncInterval:  time.Hour,
		GCInterval:    time.Hour,
	})
	return s, sessions, audit, handle
}

func TestSyncer_DrainSessionsPersistsAndClearsDirty(t *testing.T) {
	s, sessions, _, handle := newTestSyncer(t)

	if err := sessions.Set("sess-1", SessionState{Status: "active", IPAddress: "10.0.0.1", LastActiveNs: 42}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s.drainSessions()

	if s.cfg.SessionPolicy.HasDirty() {
		t.Fatal("expected dirty set empty after drain")
	}

	var status, ip string
	var lastActive int64
	if err := handle.DB.QueryRow(
		"SELECT current_status, ip_address, last_active_ns FROM session_rows WHERE id = ?", "sess-1",
	).Scan(&status, &ip, &lastActive); err != nil {
		t.Fatalf("query persisted row: %v", err)
	}
	if status != "active" || ip != "10.0.0.1" || lastActive != 42 {
		t.Fatalf("persisted row: got status=%q ip=%q last_active=%d", status, ip, lastActive)
	}
}

func TestSyncer_DrainAuditBulkInsertsAndEmptiesBuffer(t *testing.T) {
	s, _, audit, handle := newTestSyncer(t)

	audit.Log("u1", "login", "session", "", "10.0.0.1", time.Now().UnixNano())
	audit.Log("u1", "logout", "session", "", "10.0.0.1", time.Now().UnixNano())

	s.drainAudit()

	if audit.Size() != 0 {
		t.Fatalf("expected audit buffer empty after drain, got size %d", audit.Size())
	}

	var count int
	if err := handle.DB.QueryRow("SELECT count(*) FROM audit_rows").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("audit_rows count: got %d, want 2", count)
	}
}

func TestSyncer_DrainSessionsNoOpWhenNothingDirty(t *testing.T) {
	s, _, _, _ := newTestSyncer(t)
	s.drainSessions() // must not panic or error on empty dirty set
}

func TestSyncer_StartStopRunsForceSyncOnShutdown(t *testing.T) {
	s, sessions, audit, _ := newTestSyncer(t)

	if err := sessions.Set("sess-5", SessionState{Status: "active", IPAddress: "1.2.3.4", LastActiveNs: 1}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	audit.Log("u2", "login", "session", "", "1.2.3.4", time.Now().UnixNano())

	s.Start()
	s.Stop()

	if s.cfg.SessionPolicy.HasDirty() {
		t.Fatal("expected dirty set drained by forced shutdown sync")
	}
	if audit.Size() != 0 {
		t.Fatal("expected audit buffer drained by forced shutdown sync")
	}
}

func TestSyncer_MaybeGCRunsOnSchedule(t *testing.T) {
	s, _, _, _ := newTestSyncer(t)
	s.cfg.GCInterval = 0 // always due
	s.maybeGC(false)
	if s.lastGC.IsZero() {
		t.Fatal("expected lastGC to be set after scheduled gc")
	}
}

func TestSyncer_MaybeGCSkipsWhenNotDueAndNotForced(t *testing.T) {
	s, _, _, _ := newTestSyncer(t)
	before := time.Now()
	s.lastGC = before
	s.cfg.GCInterval = time.Hour
	s.maybeGC(false)
	if !s.lastGC.Equal(before) {
		t.Fatal("lastGC should not have been touched")
	}
}
