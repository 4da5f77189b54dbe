package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

const (
	defaultTTL        = 24 * time.Hour
	defaultMaxEntries = 8192
)

// Memory is a process-local ledger. Entries expire after the TTL and the
// oldest entry is evicted once maxEntries is reached.
type Memory struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]time.Time // delivery id -> expiry

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewMemory creates an in-memory ledger. Non-positive arguments select defaults.
func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]time.Time),
		Now:        time.Now,
	}
}

func (m *Memory) Claim(_ context.Context, deliveryID string) (bool, error) {
	id, err := normalizeID(deliveryID)
	if err != nil {
		return false, err
	}
	now := m.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if expiresAt, ok := m.entries[id]; ok {
		if now.Before(expiresAt) {
			return false, nil
		}
		delete(m.entries, id)
	}
	if len(m.entries) >= m.maxEntries {
		m.pruneLocked(now)
	}
	for len(m.entries) >= m.maxEntries {
		m.evictOldestLocked()
	}
	m.entries[id] = now.Add(m.ttl)
	return true, nil
}

func (m *Memory) Release(_ context.Context, deliveryID string) error {
	id, err := normalizeID(deliveryID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// PurgeExpired drops expired entries and reports how many were removed.
func (m *Memory) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked(m.Now())
}

// Len returns the number of held entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) pruneLocked(now time.Time) int {
	pruned := 0
	for id, expiresAt := range m.entries {
		if !now.Before(expiresAt) {
			delete(m.entries, id)
			pruned++
		}
	}
	return pruned
}

func (m *Memory) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, expiresAt := range m.entries {
		if oldestID == "" || expiresAt.Before(oldest) {
			oldestID, oldest = id, expiresAt
		}
	}
	delete(m.entries, oldestID)
}

var _ ports.Ledger = (*Memory)(nil)
