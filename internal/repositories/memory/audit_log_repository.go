package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

// AuditLogRepository keeps audit entries in process memory.
type AuditLogRepository struct {
	mu      sync.RWMutex
	entries []domain.AuditLogEntry
	nextID  int
}

// NewAuditLogRepository constructs an empty in-memory audit log.
func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{}
}

func (r *AuditLogRepository) Append(_ context.Context, entry domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		r.nextID++
		entry.ID = "audit-" + strconv.Itoa(r.nextID)
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *AuditLogRepository) List(_ context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error) {
	r.mu.RLock()
	matched := make([]domain.AuditLogEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if filter.TargetRef != "" && entry.TargetRef != filter.TargetRef {
			continue
		}
		if filter.Actor != "" && entry.Actor != filter.Actor {
			continue
		}
		if filter.ActorType != "" && entry.ActorType != filter.ActorType {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.DateRange.From != nil && entry.CreatedAt.Before(*filter.DateRange.From) {
			continue
		}
		if filter.DateRange.To != nil && entry.CreatedAt.After(*filter.DateRange.To) {
			continue
		}
		matched = append(matched, entry)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	return paginate(matched, filter.Pagination)
}

var _ repositories.AuditLogRepository = (*AuditLogRepository)(nil)
