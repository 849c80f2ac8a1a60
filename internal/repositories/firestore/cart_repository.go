package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/drift-commerce/api/internal/domain"
	pfirestore "github.com/drift-commerce/api/internal/platform/firestore"
	"github.com/drift-commerce/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists the per-user cart mirror in Firestore. The document
// carries a version counter; saves run in a transaction and fail with a
// conflict when the stored version no longer matches the caller's.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Get loads the cart mirror for the given user ID.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	return cartFromDocument(doc.ID, doc.Data), nil
}

// Save writes the cart when the stored version still equals expectedVersion,
// bumping the counter by one. A missing document counts as version zero.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart, expectedVersion int64) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		uid = strings.TrimSpace(cart.ID)
	}
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	ref, err := r.base.DocumentRef(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}

	updatedAt := cart.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	var saved domain.Cart
	err = pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		currentVersion := int64(0)
		switch {
		case err == nil:
			var current cartDocument
			if err := snap.DataTo(&current); err != nil {
				return err
			}
			currentVersion = current.Version
		case status.Code(err) == codes.NotFound:
			currentVersion = 0
		default:
			return err
		}

		if currentVersion != expectedVersion {
			return status.Error(codes.FailedPrecondition, "cart version mismatch")
		}

		doc := cartToDocument(cart)
		doc.Version = currentVersion + 1
		doc.UpdatedAt = updatedAt
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		saved = cartFromDocument(uid, doc)
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return saved, nil
}

func cartToDocument(cart domain.Cart) cartDocument {
	return cartDocument{
		UserID:    strings.TrimSpace(cart.UserID),
		Items:     cartLinesToDocuments(cart.Items),
		Saved:     cartLinesToDocuments(cart.Saved),
		Version:   cart.Version,
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
}

func cartFromDocument(id string, doc cartDocument) domain.Cart {
	userID := strings.TrimSpace(doc.UserID)
	if userID == "" {
		userID = id
	}
	return domain.Cart{
		ID:        id,
		UserID:    userID,
		Items:     cartLinesFromDocuments(doc.Items),
		Saved:     cartLinesFromDocuments(doc.Saved),
		Version:   doc.Version,
		UpdatedAt: doc.UpdatedAt,
	}
}

func cartLinesToDocuments(lines []domain.CartLine) []cartLineDocument {
	if len(lines) == 0 {
		return nil
	}
	out := make([]cartLineDocument, 0, len(lines))
	for _, line := range lines {
		out = append(out, cartLineDocument{
			ProductID: strings.TrimSpace(line.ProductID),
			Title:     line.Title,
			UnitPrice: line.UnitPrice,
			ImageRef:  line.ImageRef,
			Quantity:  line.Quantity,
			AddedAt:   line.AddedAt.UTC(),
		})
	}
	return out
}

func cartLinesFromDocuments(docs []cartLineDocument) []domain.CartLine {
	if len(docs) == 0 {
		return nil
	}
	out := make([]domain.CartLine, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.CartLine{
			ProductID: doc.ProductID,
			Title:     doc.Title,
			UnitPrice: doc.UnitPrice,
			ImageRef:  doc.ImageRef,
			Quantity:  doc.Quantity,
			AddedAt:   doc.AddedAt,
		})
	}
	return out
}

type cartDocument struct {
	UserID    string             `firestore:"userId"`
	Items     []cartLineDocument `firestore:"items"`
	Saved     []cartLineDocument `firestore:"savedForLater"`
	Version   int64              `firestore:"version"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	ProductID string    `firestore:"productId"`
	Title     string    `firestore:"title"`
	UnitPrice int64     `firestore:"unitPrice"`
	ImageRef  string    `firestore:"imageRef,omitempty"`
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
