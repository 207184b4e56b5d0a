// Package policyengine derives effective password, login, and session rules
// from the cache subsystem's hot-reloadable config region. It holds no state
// of its own beyond a rate limiter for miss-logging.
package policyengine

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"

	zxcvbn "github.com/ccojocar/zxcvbn-go"

	"github.com/stockcache/cachesrv/internal/cachefacade"
)

// LoginPolicy is the effective login-attempt rule.
type LoginPolicy struct {
	MaxAttempts    int
	LockoutMinutes int
}

// SessionPolicy is the effective session rule for a given user.
type SessionPolicy struct {
	MaxDevices       int
	AccessTokenHours int
	RefreshTokenDays int
}

// PasswordPolicy is the effective password-composition rule.
type PasswordPolicy struct {
	MinLength      int
	RequireDigit   bool
	RequireUpper   bool
	RequireLower   bool
	RequireSpecial bool
}

// PasswordValidation is the result of a passing ValidatePassword call: the
// hard rules all passed, plus an advisory strength estimate.
type PasswordValidation struct {
	StrengthScore   int // 0-4, from zxcvbn
	StrengthWarning string
}

// PasswordPolicyError aggregates every rule violation found by
// ValidatePassword into a single error suitable for display to the user.
type PasswordPolicyError struct {
	Reasons []string
}

func (e *PasswordPolicyError) Error() string {
	return "password policy violated: " + strings.Join(e.Reasons, "; ")
}

const missWarnInterval = time.Minute

// PolicyEngine reads effective configuration through a Facade and applies
// the recognized rule set. It never caches a value itself — every call
// re-reads the config region, which is already fast and hot-reloadable.
type PolicyEngine struct {
	facade *cachefacade.Facade
	logger *log.Logger

	mu       sync.Mutex
	lastWarn map[string]time.Time
}

func NewPolicyEngine(facade *cachefacade.Facade, logger *log.Logger) *PolicyEngine {
	return &PolicyEngine{facade: facade, logger: logger, lastWarn: make(map[string]time.Time)}
}

func (e *PolicyEngine) GetLoginPolicy() LoginPolicy {
	return LoginPolicy{
		MaxAttempts:    e.configInt("login_max_attempts", 5),
		LockoutMinutes: e.configInt("login_lockout_minutes", 30),
	}
}

// GetSessionPolicy derives the effective session rule. allowedDevices is the
// user's own per-account override (from their user record); when positive it
// replaces the global session_max_devices default.
func (e *PolicyEngine) GetSessionPolicy(allowedDevices int) SessionPolicy {
	maxDevices := e.configInt("session_max_devices", 3)
	if allowedDevices > 0 {
		maxDevices = allowedDevices
	}
	return SessionPolicy{
		MaxDevices:       maxDevices,
		AccessTokenHours: e.configInt("session_access_token_hours", 24),
		RefreshTokenDays: e.configInt("session_refresh_token_days", 7),
	}
}

func (e *PolicyEngine) GetPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      e.configInt("password_min_length", 6),
		RequireDigit:   e.configBool("password_require_digit", false),
		RequireUpper:   e.configBool("password_require_upper", false),
		RequireLower:   e.configBool("password_require_lower", false),
		RequireSpecial: e.configBool("password_require_special", false),
	}
}

// ValidatePassword checks pw against every rule in GetPasswordPolicy and
// collects all violations into one PasswordPolicyError. When every rule
// passes, it layers a zxcvbn strength estimate on top: advisory only, it
// never rejects a password the rules above accept and never accepts one
// they reject.
func (e *PolicyEngine) ValidatePassword(pw string) (PasswordValidation, error) {
	policy := e.GetPasswordPolicy()

	var reasons []string
	if len(pw) < policy.MinLength {
		reasons = append(reasons, fmt.Sprintf("must be at least %d characters", policy.MinLength))
	}
	if policy.RequireDigit && !containsRune(pw, unicode.IsDigit) {
		reasons = append(reasons, "must contain a digit")
	}
	if policy.RequireUpper && !containsRune(pw, unicode.IsUpper) {
		reasons = append(reasons, "must contain an uppercase letter")
	}
	if policy.RequireLower && !containsRune(pw, unicode.IsLower) {
		reasons = append(reasons, "must contain a lowercase letter")
	}
	if policy.RequireSpecial && !containsRune(pw, isSpecial) {
		reasons = append(reasons, "must contain a special character")
	}
	if len(reasons) > 0 {
		return PasswordValidation{}, &PasswordPolicyError{Reasons: reasons}
	}

	result := zxcvbn.PasswordStrength(pw, nil)
	return PasswordValidation{
		StrengthScore:   result.Score,
		StrengthWarning: strengthWarning(result.Score),
	}, nil
}

func strengthWarning(score int) string {
	if score >= 3 {
		return ""
	}
	return "this password is weak; consider a longer or less predictable one"
}

func containsRune(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if pred(r) {
			return true
		}
	}
	return false
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}

func (e *PolicyEngine) configInt(key string, def int) int {
	v, ok := e.facade.GetConfig(key, nil)
	if !ok {
		e.warnMiss(key)
		return def
	}
	n, ok := v.(int64)
	if !ok {
		e.warnMiss(key)
		return def
	}
	return int(n)
}

func (e *PolicyEngine) configBool(key string, def bool) bool {
	v, ok := e.facade.GetConfig(key, nil)
	if !ok {
		e.warnMiss(key)
		return def
	}
	b, ok := v.(bool)
	if !ok {
		e.warnMiss(key)
		return def
	}
	return b
}

// warnMiss logs a config-miss warning for key at most once per minute,
// regardless of how often the miss recurs.
func (e *PolicyEngine) warnMiss(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if last, ok := e.lastWarn[key]; ok && time.Since(last) < missWarnInterval {
		return
	}
	e.lastWarn[key] = time.Now()
	e.logger.Printf("policyengine: config miss for %q, using default", key)
}
