// Package ledger remembers recently seen delivery IDs so that a webhook the
// provider redelivers after a successful forward is acknowledged without
// invoking the backend again.
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tjfontaine/deploywatch/internal/config"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

// Driver names accepted by New.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

var errEmptyID = errors.New("ledger: delivery id is required")

// New builds the ledger selected by cfg.Driver. It returns nil, nil for
// DriverNone, meaning de-duplication is off.
func New(cfg config.DedupeConfig) (ports.Ledger, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverNone:
		return nil, nil
	case DriverMemory:
		return NewMemory(cfg.TTL, cfg.MaxEntries), nil
	case DriverSQLite:
		l, err := NewSQLite(cfg.SQLitePath, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return l, nil
	case DriverRedis:
		return NewRedis(RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			Timeout:  cfg.Redis.Timeout,
			TTL:      cfg.TTL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown dedupe driver: %s", cfg.Driver)
	}
}

func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errEmptyID
	}
	return id, nil
}
