package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/drift-commerce/api/internal/repositories"
)

// CounterRepository keeps named sequences in process memory.
type CounterRepository struct {
	mu       sync.Mutex
	values   map[string]int64
	maxima   map[string]int64
	initials map[string]int64
}

// NewCounterRepository constructs an empty in-memory counter repository.
func NewCounterRepository() *CounterRepository {
	return &CounterRepository{
		values:   map[string]int64{},
		maxima:   map[string]int64{},
		initials: map[string]int64{},
	}
}

func (r *CounterRepository) Next(_ context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, errors.New("counter id is required")
	}
	if step <= 0 {
		step = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, seen := r.values[id]
	if !seen {
		if initial, ok := r.initials[id]; ok {
			current = initial - step
		}
	}
	next := current + step
	if max, ok := r.maxima[id]; ok && next > max {
		return 0, conflictError(fmt.Sprintf("counter %s exhausted", id))
	}
	r.values[id] = next
	return next, nil
}

func (r *CounterRepository) Configure(_ context.Context, counterID string, cfg repositories.CounterConfig) error {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return errors.New("counter id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.MaxValue != nil {
		r.maxima[id] = *cfg.MaxValue
	}
	if cfg.InitialValue != nil {
		r.initials[id] = *cfg.InitialValue
	}
	return nil
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)
