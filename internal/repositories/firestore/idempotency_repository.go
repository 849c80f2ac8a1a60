package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	pfirestore "github.com/drift-commerce/api/internal/platform/firestore"
	"github.com/drift-commerce/api/internal/repositories"
)

const idempotencyCollection = "idempotency"

type idempotencyDocument struct {
	UserID    string    `firestore:"userId"`
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// IdempotencyRepository persists checkout submission records in Firestore.
// The key is the document ID, so a duplicate Put fails with AlreadyExists
// and surfaces as a conflict.
type IdempotencyRepository struct {
	base *pfirestore.BaseRepository[idempotencyDocument]
}

// NewIdempotencyRepository constructs a Firestore-backed idempotency store.
func NewIdempotencyRepository(provider *pfirestore.Provider) (*IdempotencyRepository, error) {
	if provider == nil {
		return nil, errors.New("idempotency repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[idempotencyDocument](provider, idempotencyCollection, nil, nil)
	return &IdempotencyRepository{base: base}, nil
}

// Get loads the record for the given submission key.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (repositories.IdempotencyRecord, error) {
	if r == nil || r.base == nil {
		return repositories.IdempotencyRecord{}, errors.New("idempotency repository not initialised")
	}
	id, err := idempotencyDocumentID(key)
	if err != nil {
		return repositories.IdempotencyRecord{}, err
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return repositories.IdempotencyRecord{}, err
	}
	return repositories.IdempotencyRecord{
		Key:       doc.ID,
		UserID:    doc.Data.UserID,
		OrderID:   doc.Data.OrderID,
		CreatedAt: doc.Data.CreatedAt,
	}, nil
}

// Put creates the record, failing with a conflict when the key already exists.
func (r *IdempotencyRepository) Put(ctx context.Context, record repositories.IdempotencyRecord) error {
	if r == nil || r.base == nil {
		return errors.New("idempotency repository not initialised")
	}
	id, err := idempotencyDocumentID(record.Key)
	if err != nil {
		return err
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}

	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	doc := idempotencyDocument{
		UserID:    record.UserID,
		OrderID:   record.OrderID,
		CreatedAt: createdAt,
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("firestore: idempotency create", err)
	}
	return nil
}

func idempotencyDocumentID(key string) (string, error) {
	id := strings.TrimSpace(key)
	if id == "" {
		return "", errors.New("idempotency repository: key is required")
	}
	if strings.ContainsAny(id, "/") {
		return "", errors.New("idempotency repository: key must not contain '/'")
	}
	return id, nil
}

var _ repositories.IdempotencyRepository = (*IdempotencyRepository)(nil)
