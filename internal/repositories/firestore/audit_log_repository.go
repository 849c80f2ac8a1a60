package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/drift-commerce/api/internal/domain"
	pfirestore "github.com/drift-commerce/api/internal/platform/firestore"
	"github.com/drift-commerce/api/internal/repositories"
)

const auditLogCollection = "auditLogs"

// AuditLogRepository appends and queries immutable audit trail entries.
type AuditLogRepository struct {
	provider *pfirestore.Provider
}

// NewAuditLogRepository constructs a Firestore-backed audit log repository.
func NewAuditLogRepository(provider *pfirestore.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("audit log repository requires firestore provider")
	}
	return &AuditLogRepository{provider: provider}, nil
}

// Append writes a new audit entry. Entries are never updated after the fact.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}

	docRef := coll.NewDoc()
	if id := strings.TrimSpace(entry.ID); id != "" {
		docRef = coll.Doc(id)
	}
	doc := auditLogDocument{
		Actor:     entry.Actor,
		ActorType: entry.ActorType,
		Action:    entry.Action,
		TargetRef: entry.TargetRef,
		Metadata:  entry.Metadata,
		Severity:  entry.Severity,
		RequestID: entry.RequestID,
		CreatedAt: entry.CreatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("audit_logs.append", err)
	}
	return nil
}

// List returns audit entries matching the filter, newest first.
func (r *AuditLogRepository) List(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.CursorPage[domain.AuditLogEntry]{}, err
	}

	query := coll.Query
	if targetRef := strings.TrimSpace(filter.TargetRef); targetRef != "" {
		query = query.Where("targetRef", "==", targetRef)
	}
	if actor := strings.TrimSpace(filter.Actor); actor != "" {
		query = query.Where("actor", "==", actor)
	}
	if actorType := strings.TrimSpace(filter.ActorType); actorType != "" {
		query = query.Where("actorType", "==", actorType)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		query = query.Where("action", "==", action)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
	}

	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	var fetchLimit int
	if limit > 0 {
		fetchLimit = limit + 1
		query = query.Limit(fetchLimit)
	}

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeAuditLogToken(token)
		if err != nil {
			return domain.CursorPage[domain.AuditLogEntry]{}, fmt.Errorf("audit_logs.list: invalid page token: %w", err)
		}
		query = query.StartAfter(tokenTime, tokenID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var entries []domain.AuditLogEntry
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.AuditLogEntry]{}, pfirestore.WrapError("audit_logs.list", err)
		}
		var doc auditLogDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.AuditLogEntry]{}, fmt.Errorf("decode audit entry %s: %w", snap.Ref.ID, err)
		}
		entries = append(entries, doc.toDomain(snap.Ref.ID))
	}

	nextToken := ""
	if limit > 0 && len(entries) == fetchLimit {
		last := entries[len(entries)-1]
		nextToken = encodeAuditLogToken(last.CreatedAt, last.ID)
		entries = entries[:len(entries)-1]
	}

	return domain.CursorPage[domain.AuditLogEntry]{
		Items:         entries,
		NextPageToken: nextToken,
	}, nil
}

func (r *AuditLogRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("audit log repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(auditLogCollection), nil
}

type auditLogDocument struct {
	Actor     string         `firestore:"actor"`
	ActorType string         `firestore:"actorType"`
	Action    string         `firestore:"action"`
	TargetRef string         `firestore:"targetRef,omitempty"`
	Metadata  map[string]any `firestore:"metadata,omitempty"`
	Severity  string         `firestore:"severity"`
	RequestID string         `firestore:"requestId,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

func (d auditLogDocument) toDomain(id string) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		ID:        id,
		Actor:     d.Actor,
		ActorType: d.ActorType,
		Action:    d.Action,
		TargetRef: d.TargetRef,
		Metadata:  d.Metadata,
		Severity:  d.Severity,
		RequestID: d.RequestID,
		CreatedAt: d.CreatedAt,
	}
}

func encodeAuditLogToken(createdAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeAuditLogToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}

var _ repositories.AuditLogRepository = (*AuditLogRepository)(nil)
