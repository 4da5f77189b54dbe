// Package storage selects the delivery store implementation from configuration.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tjfontaine/deploywatch/internal/config"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
	"github.com/tjfontaine/deploywatch/internal/storage"
	"github.com/tjfontaine/deploywatch/internal/storage/memory"
	"github.com/tjfontaine/deploywatch/internal/storage/sqlite"
)

// NewProvider creates the configured DeliveryStore. It returns nil, nil when
// storage is disabled.
func NewProvider(cfg config.StorageConfig) (ports.DeliveryStore, error) {
	switch strings.ToLower(cfg.Type) {
	case "", storage.TypeNone:
		return nil, nil
	case storage.TypeMemory:
		return memory.New(memory.DefaultCapacity), nil
	case storage.TypeSQLite:
		if err := ensureDir(cfg.SQLite.Path); err != nil {
			return nil, err
		}
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// ensureDir creates the parent directory of a file path. DSNs such as
// "file:x?mode=memory" and ":memory:" are left alone.
func ensureDir(path string) error {
	if path == "" || strings.HasPrefix(path, "file:") || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage directory %s: %w", dir, err)
	}
	return nil
}
