package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/drift-commerce/api/internal/repositories"
)

// IdempotencyRepository keeps checkout submission records in process memory.
type IdempotencyRepository struct {
	mu      sync.RWMutex
	records map[string]repositories.IdempotencyRecord
}

// NewIdempotencyRepository constructs an empty in-memory idempotency store.
func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{records: map[string]repositories.IdempotencyRecord{}}
}

func (r *IdempotencyRepository) Get(_ context.Context, key string) (repositories.IdempotencyRecord, error) {
	id := strings.TrimSpace(key)
	if id == "" {
		return repositories.IdempotencyRecord{}, errors.New("idempotency key is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return repositories.IdempotencyRecord{}, notFoundError(fmt.Sprintf("idempotency record %s not found", id))
	}
	return record, nil
}

func (r *IdempotencyRepository) Put(_ context.Context, record repositories.IdempotencyRecord) error {
	id := strings.TrimSpace(record.Key)
	if id == "" {
		return errors.New("idempotency key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; exists {
		return conflictError(fmt.Sprintf("idempotency record %s already exists", id))
	}
	record.Key = id
	r.records[id] = record
	return nil
}

var _ repositories.IdempotencyRepository = (*IdempotencyRepository)(nil)
