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
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/drift-commerce/api/internal/domain"
	pfirestore "github.com/drift-commerce/api/internal/platform/firestore"
	"github.com/drift-commerce/api/internal/repositories"
)

const wishlistCollectionPattern = "users/%s/wishlist"

// WishlistRepository persists wishlisted products per user.
type WishlistRepository struct {
	provider *pfirestore.Provider
}

// NewWishlistRepository constructs a Firestore-backed wishlist repository.
func NewWishlistRepository(provider *pfirestore.Provider) (*WishlistRepository, error) {
	if provider == nil {
		return nil, errors.New("wishlist repository requires firestore provider")
	}
	return &WishlistRepository{provider: provider}, nil
}

// List returns wishlist entries ordered by most recent addition.
func (r *WishlistRepository) List(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.WishlistItem], error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.CursorPage[domain.WishlistItem]{}, err
	}

	limit := pager.PageSize
	if limit < 0 {
		limit = 0
	}

	query := coll.OrderBy("addedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
	var fetchLimit int
	if limit > 0 {
		fetchLimit = limit + 1
		query = query.Limit(fetchLimit)
	}

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		tokenTime, tokenID, err := decodeWishlistToken(token)
		if err != nil {
			return domain.CursorPage[domain.WishlistItem]{}, fmt.Errorf("wishlist.list: invalid page token: %w", err)
		}
		query = query.StartAfter(tokenTime, tokenID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var items []domain.WishlistItem
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.WishlistItem]{}, pfirestore.WrapError("wishlist.list", err)
		}
		var doc wishlistDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.WishlistItem]{}, fmt.Errorf("decode wishlist item %s: %w", snap.Ref.ID, err)
		}
		items = append(items, domain.WishlistItem{
			ProductID: snap.Ref.ID,
			AddedAt:   doc.AddedAt,
		})
	}

	nextToken := ""
	if limit > 0 && len(items) == fetchLimit {
		last := items[len(items)-1]
		nextToken = encodeWishlistToken(last.AddedAt, last.ProductID)
		items = items[:len(items)-1]
	}

	return domain.CursorPage[domain.WishlistItem]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// Put stores the wishlist entry, preserving an existing one. The size cap is
// enforced inside the transaction.
func (r *WishlistRepository) Put(ctx context.Context, userID string, productID string, addedAt time.Time, limit int) (bool, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return false, err
	}

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, errors.New("wishlist repository: product id is required")
	}

	created := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(productID)
		if _, err := tx.Get(docRef); err == nil {
			created = false
			return nil
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		if limit > 0 {
			countQuery := coll.Select("addedAt").Limit(limit)
			iter := tx.Documents(countQuery)
			snaps, err := iter.GetAll()
			if err != nil {
				return err
			}
			if len(snaps) >= limit {
				return status.Error(codes.FailedPrecondition, "wishlist limit reached")
			}
		}

		doc := wishlistDocument{AddedAt: addedAt.UTC()}
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, pfirestore.WrapError("wishlist.put", err)
	}
	return created, nil
}

// Delete removes the wishlist entry.
func (r *WishlistRepository) Delete(ctx context.Context, userID string, productID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.New("wishlist repository: product id is required")
	}
	if _, err := coll.Doc(productID).Delete(ctx); err != nil {
		return pfirestore.WrapError("wishlist.delete", err)
	}
	return nil
}

func (r *WishlistRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("wishlist repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("wishlist repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(wishlistCollectionPattern, uid)), nil
}

type wishlistDocument struct {
	AddedAt time.Time `firestore:"addedAt"`
}

func encodeWishlistToken(addedAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", addedAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeWishlistToken(token string) (time.Time, string, error) {
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

var _ repositories.WishlistRepository = (*WishlistRepository)(nil)
