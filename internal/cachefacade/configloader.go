package cachefacade

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/stockcache/cachesrv/internal/cache"
	"github.com/stockcache/cachesrv/internal/persistence"
)

// ErrConfigType is returned (and logged, never surfaced to a reader) when a
// config row's value cannot be parsed according to its declared type.
var ErrConfigType = errors.New("cachefacade: config value does not match declared type")

var zeroTTL = time.Duration(0)

// ConfigLoader keeps the config region's in-memory view synchronized with
// the config_entries table: a full reload on startup, and a write-then-reload
// on every mutation, per the ordering the config region's WriteThrough policy
// is built to support.
type ConfigLoader struct {
	store  *cache.ObjectStore[any]
	policy *cache.WriteThroughPolicy[any]
	repo   *persistence.Repo
	logger *log.Logger
}

func NewConfigLoader(store *cache.ObjectStore[any], policy *cache.WriteThroughPolicy[any], repo *persistence.Repo, logger *log.Logger) *ConfigLoader {
	return &ConfigLoader{store: store, policy: policy, repo: repo, logger: logger}
}

// Reload reads every config row from persistence, parses it per its declared
// type, and writes it straight into the cache (bypassing the persister — the
// row already came from the database). Rows with an unparseable value are
// dropped and logged, not fatal to the rest of the reload.
func (c *ConfigLoader) Reload() error {
	rows, err := c.repo.LoadAllConfig()
	if err != nil {
		return fmt.Errorf("config loader: reload: %w", err)
	}

	parsed := make(map[string]any, len(rows))
	for _, row := range rows {
		v, err := parseConfigValue(row.Value, row.Type)
		if err != nil {
			c.logger.Printf("cachefacade: %v (key=%s type=%s)", err, row.Key, row.Type)
			continue
		}
		parsed[row.Key] = v
	}

	c.store.WithLocked(func(m map[string]*cache.Entry[any]) {
		for key, value := range parsed {
			c.policy.SetDirect(key, value, m, &zeroTTL)
		}
	})
	return nil
}

// Mutate writes key's new value to persistence first, then reloads the
// entire config region from persistence — the order the region's contract
// requires (database, then cache), never the reverse.
func (c *ConfigLoader) Mutate(key string, value any, valueType, category string) error {
	raw, err := formatConfigValue(value, valueType)
	if err != nil {
		return fmt.Errorf("config loader: mutate %s: %w", key, err)
	}

	row := persistence.ConfigRow{Key: key, Value: raw, Type: valueType, Category: category}
	if err := c.repo.UpdateConfigRow(row, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("config loader: mutate %s: %w", key, err)
	}

	return c.Reload()
}

func parseConfigValue(raw, valueType string) (any, error) {
	switch valueType {
	case "int":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfigType, err)
		}
		return n, nil
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfigType, err)
		}
		return b, nil
	case "string":
		return raw, nil
	case "json":
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfigType, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized type %q", ErrConfigType, valueType)
	}
}

func formatConfigValue(value any, valueType string) (string, error) {
	switch valueType {
	case "int":
		switch n := value.(type) {
		case int:
			return strconv.FormatInt(int64(n), 10), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		default:
			return "", fmt.Errorf("%w: expected int, got %T", ErrConfigType, value)
		}
	case "bool":
		b, ok := value.(bool)
		if !ok {
			return "", fmt.Errorf("%w: expected bool, got %T", ErrConfigType, value)
		}
		return strconv.FormatBool(b), nil
	case "string":
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: expected string, got %T", ErrConfigType, value)
		}
		return s, nil
	case "json":
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigType, err)
		}
		return string(encoded), nil
	default:
		return "", fmt.Errorf("%w: unrecognized type %q", ErrConfigType, valueType)
	}
}
