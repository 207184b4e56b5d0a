// Package config handles environment-based configuration loading and admin-token strength checks.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings (not hot-updatable).
// Hot-updatable policy state (password/login/session rules) lives in the
// config region of the cache itself, not here.
type EnvConfig struct {
	// Directories
	CacheDir string
	StateDir string
	LogDir   string

	// Admin surface
	AdminListenAddress string
	AdminToken         string // empty disables bearer-token auth on the admin surface
	AdminTokenWeak     bool   // informational only; LoadEnvConfig never fails on a weak token

	// Region byte budgets
	APIResponseBudgetBytes int
	ReportsBudgetBytes     int

	// FileStore TTL defaults
	FileStoreDefaultSetTTL  time.Duration
	FileStoreLoaderMissTTL  time.Duration

	// Syncer
	SyncInterval time.Duration
	GCInterval   time.Duration

	// Scheduled maintenance (independent of memory-pressure GC)
	MaintenanceSchedule string

	// AuditBuffer
	AuditBufferCapacity int

	// Memory-pressure approximation (no OS "percent used" primitive in
	// the standard library; compared against runtime.MemStats.Sys)
	MemoryCeilingMB int
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Directories ---
	cfg.CacheDir = envStr("CACHESRV_CACHE_DIR", "/var/cache/cachesrv")
	cfg.StateDir = envStr("CACHESRV_STATE_DIR", "/var/lib/cachesrv")
	cfg.LogDir = envStr("CACHESRV_LOG_DIR", "/var/log/cachesrv")

	cfg.AdminListenAddress = strings.TrimSpace(envStr("CACHESRV_ADMIN_LISTEN_ADDRESS", "127.0.0.1:2270"))
	cfg.AdminToken = envStr("CACHESRV_ADMIN_TOKEN", "")
	cfg.AdminTokenWeak = IsWeakToken(cfg.AdminToken)

	// --- Region byte budgets ---
	cfg.APIResponseBudgetBytes = envInt("CACHESRV_API_RESPONSE_BUDGET_BYTES", 200<<20, &errs)
	cfg.ReportsBudgetBytes = envInt("CACHESRV_REPORTS_BUDGET_BYTES", 500<<20, &errs)

	// --- FileStore TTL defaults ---
	cfg.FileStoreDefaultSetTTL = envDuration("CACHESRV_FILESTORE_DEFAULT_SET_TTL", 24*time.Hour, &errs)
	cfg.FileStoreLoaderMissTTL = envDuration("CACHESRV_FILESTORE_LOADER_MISS_TTL", 5*time.Minute, &errs)

	// --- Syncer ---
	cfg.SyncInterval = envDuration("CACHESRV_SYNC_INTERVAL", 10*time.Second, &errs)
	cfg.GCInterval = envDuration("CACHESRV_GC_INTERVAL", 300*time.Second, &errs)
	cfg.MaintenanceSchedule = envStr("CACHESRV_MAINTENANCE_SCHEDULE", "@every 1h")

	// --- AuditBuffer ---
	cfg.AuditBufferCapacity = envInt("CACHESRV_AUDIT_BUFFER_CAPACITY", 1000, &errs)

	// --- Memory ceiling ---
	cfg.MemoryCeilingMB = envInt("CACHESRV_MEMORY_CEILING_MB", 1024, &errs)

	// --- Validation ---
	if cfg.AdminListenAddress == "" {
		errs = append(errs, "CACHESRV_ADMIN_LISTEN_ADDRESS must not be empty")
	}
	validatePositive("CACHESRV_API_RESPONSE_BUDGET_BYTES", cfg.APIResponseBudgetBytes, &errs)
	validatePositive("CACHESRV_REPORTS_BUDGET_BYTES", cfg.ReportsBudgetBytes, &errs)
	if cfg.FileStoreDefaultSetTTL <= 0 {
		errs = append(errs, "CACHESRV_FILESTORE_DEFAULT_SET_TTL must be positive")
	}
	if cfg.FileStoreLoaderMissTTL <= 0 {
		errs = append(errs, "CACHESRV_FILESTORE_LOADER_MISS_TTL must be positive")
	}
	if cfg.SyncInterval <= 0 {
		errs = append(errs, "CACHESRV_SYNC_INTERVAL must be positive")
	}
	if cfg.GCInterval <= 0 {
		errs = append(errs, "CACHESRV_GC_INTERVAL must be positive")
	}
	if _, err := cron.ParseStandard(cfg.MaintenanceSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("CACHESRV_MAINTENANCE_SCHEDULE: invalid cron expression %q: %v", cfg.MaintenanceSchedule, err))
	}
	validatePositive("CACHESRV_AUDIT_BUFFER_CAPACITY", cfg.AuditBufferCapacity, &errs)
	validatePositive("CACHESRV_MEMORY_CEILING_MB", cfg.MemoryCeilingMB, &errs)

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
