package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/storage"
)

// DefaultCapacity bounds how many records New keeps.
const DefaultCapacity = 1000

// Store is an in-memory implementation of DeliveryStore. It keeps the most
// recent records up to its capacity.
type Store struct {
	mu       sync.RWMutex
	records  []*domain.DeliveryRecord // oldest first
	capacity int
}

var _ storage.DeliveryStore = (*Store)(nil)

// New creates a new in-memory store holding at most capacity records.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

func (s *Store) RecordDelivery(ctx context.Context, rec *domain.DeliveryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	stored := *rec

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, &stored)
	if over := len(s.records) - s.capacity; over > 0 {
		s.records = append(s.records[:0:0], s.records[over:]...)
	}
	return nil
}

func (s *Store) ListDeliveries(ctx context.Context, opts storage.DeliveryListOptions) ([]*domain.DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DeliveryRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if opts.Outcome != "" && rec.Outcome != opts.Outcome {
			continue
		}
		if opts.DeliveryID != "" && rec.DeliveryID != opts.DeliveryID {
			continue
		}
		cp := *rec
		result = append(result, &cp)
	}

	// Simple pagination
	start := opts.Offset
	if start >= len(result) {
		return []*domain.DeliveryRecord{}, nil
	}

	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) Close() error {
	return nil
}
