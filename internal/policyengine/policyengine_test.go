package policyengine

import (
	"log"
	"testing"
	"time"

	"github.com/stockcache/cachesrv/internal/cache"
	"github.com/stockcache/cachesrv/internal/cachefacade"
	"github.com/stockcache/cachesrv/internal/persistence"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func newTestFacade(t *testing.T) *cachefacade.Facade {
	t.Helper()

	handle, err := persistence.Bootstrap(t.TempDir())
	if err != nil {
		t.Fatalf("persistence.Bootstrap: %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })

	logger := log.New(testWriter{t}, "facade: ", 0)

	sessionPolicy := cache.NewWriteBehindPolicy[cachefacade.SessionState](time.Hour)
	sessions := cache.NewObjectStore[cachefacade.SessionState]("sessions", sessionPolicy)
	users := cache.NewObjectStore[any]("users", cache.NewCacheAsidePolicy[any](time.Hour))
	configPolicy := cache.NewWriteThroughPolicy[any](0)
	configStore := cache.NewObjectStore[any]("config", configPolicy)
	apiResponse := cache.NewFileStore("api_response", t.TempDir(), 200<<20, 24*time.Hour, 5*time.Minute)
	reports := cache.NewFileStore("reports", t.TempDir(), 500<<20, 24*time.Hour, 5*time.Minute)

	manager := cache.NewManager()
	manager.Register("sessions", sessions)
	manager.Register("users", users)
	manager.Register("config", configStore)
	manager.Register("api_response", apiResponse)
	manager.Register("reports", reports)

	facade, err := cachefacade.NewFacade(cachefacade.Deps{
		Manager:       manager,
		Repo:          handle.Repo,
		Logger:        logger,
		Sessions:      sessions,
		SessionPolicy: sessionPolicy,
		Users:         users,
		Config:        configStore,
		ConfigPolicy:  configPolicy,
		APIResponse:   apiResponse,
		Reports:       reports,
		Audit:         cachefacade.NewAuditBuffer(100),
	})
	if err != nil {
		t.Fatalf("NewFacade: %v", err)
	}
	return facade
}

func TestPolicyEngine_GetLoginPolicyDefaultsOnMiss(t *testing.T) {
	facade := newTestFacade(t)
	engine := NewPolicyEngine(facade, log.New(testWriter{t}, "policyengine: ", 0))

	policy := engine.GetLoginPolicy()
	if policy.MaxAttempts != 5 || policy.LockoutMinutes != 30 {
		t.Fatalf("got %+v", policy)
	}
}

func TestPolicyEngine_GetLoginPolicyReflectsConfiguredValue(t *testing.T) {
	facade := newTestFacade(t)
	engine := NewPolicyEngine(facade, log.New(testWriter{t}, "policyengine: ", 0))

	if err := facade.SetConfig("login_max_attempts", int64(10), "int", "login"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	policy := engine.GetLoginPolicy()
	if policy.MaxAttempts != 10 {
		t.Fatalf("got %+v", policy)
	}
}

func TestPolicyEngine_GetSessionPolicyUsesUserOverrideWhenPositive(t *testing.T) {
	facade := newTestFacade(t)
	engine := NewPolicyEngine(facade, log.New(testWriter{t}, "policyengine: ", 0))

	if err := facade.SetConfig("session_max_devices", int64(3), "int", "session"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	withOverride := engine.GetSessionPolicy(7)
	if withOverride.MaxDevices != 7 {
		t.Fatalf("expected override to win, got %+v", withOverride)
	}

	withoutOverride := engine.GetSessionPolicy(0)
	if withoutOverride.MaxDevices != 3 {
		t.Fatalf("expected global default, got %+v", withoutOverride)
	}
}

func TestPolicyEngine_ValidatePasswordCollectsAllViolations(t *testing.T) {
	facade := newTestFacade(t)
	engine := NewPolicyEngine(facade, log.New(testWriter{t}, "policyengine: ", 0))

	if err := facade.SetConfig("password_min_length", int64(8), "int", "password"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if err := facade.SetConfig("password_require_digit", true, "bool", "password"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if err := facade.SetConfig("password_require_special", true, "bool", "password"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	_, err := engine.ValidatePassword("short")
	if err == nil {
		t.Fatal("expected error")
	}
	polErr, ok := err.(*PasswordPolicyError)
	if !ok {
		t.Fatalf("expected *PasswordPolicyError, got %T", err)
	}
	if len(polErr.Reasons) != 3 {
		t.Fatalf("expected 3 violations (length, digit, special), got %v", polErr.Reasons)
	}
}

func TestPolicyEngine_ValidatePasswordPassesAndReportsStrength(t *testing.T) {
	facade := newTestFacade(t)
	engine := NewPolicyEngine(facade, log.New(testWriter{t}, "policyengine: ", 0))

	result, err := engine.ValidatePassword("correct horse battery staple 42!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.StrengthScore < 0 || result.StrengthScore > 4 {
		t.Fatalf("strength score out of range: %d", result.StrengthScore)
	}
}

func TestPolicyEngine_WarnMissIsRateLimited(t *testing.T) {
	facade := newTestFacade(t)
	var logCount int
	countingWriter := writerFunc(func(p []byte) (int, error) {
		logCount++
		return len(p), nil
	})
	engine := NewPolicyEngine(facade, log.New(countingWriter, "policyengine: ", 0))

	engine.GetLoginPolicy()
	engine.GetLoginPolicy()
	engine.GetLoginPolicy()

	// Each GetLoginPolicy call misses twice (max_attempts, lockout_minutes);
	// rate limiting should suppress all but the first occurrence of each key.
	if logCount > 2 {
		t.Fatalf("expected miss logging to be rate-limited, got %d log lines", logCount)
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
