package firestore

import (
	"context"
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

const addressCollectionPattern = "users/%s/addresses"

// AddressRepository persists the saved address book in Firestore.
type AddressRepository struct {
	provider *pfirestore.Provider
}

// NewAddressRepository constructs a Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

// List returns all addresses for the specified user, newest first.
func (r *AddressRepository) List(ctx context.Context, userID string) ([]domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var results []domain.Address
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("addresses.list", err)
		}
		addr, err := decodeAddressDocument(snap)
		if err != nil {
			return nil, err
		}
		results = append(results, addr)
	}
	return results, nil
}

// Get loads a single address document.
func (r *AddressRepository) Get(ctx context.Context, userID string, addressID string) (domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}
	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.get", err)
	}
	return decodeAddressDocument(snap)
}

// Insert stores a new address document under the supplied ID.
func (r *AddressRepository) Insert(ctx context.Context, userID string, addr domain.Address) (domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(addr.ID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}

	createdAt := addr.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	doc := addressDocument{
		FirstName: addr.FirstName,
		LastName:  addr.LastName,
		Phone:     addr.Phone,
		Line1:     addr.Line1,
		City:      addr.City,
		State:     addr.State,
		Pincode:   addr.Pincode,
		IsDefault: addr.IsDefault,
		CreatedAt: createdAt,
	}
	if _, err := coll.Doc(id).Create(ctx, doc); err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.insert", err)
	}
	return doc.toDomain(id), nil
}

// Delete removes the specified address document.
func (r *AddressRepository) Delete(ctx context.Context, userID string, addressID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return errors.New("address repository: address id is required")
	}
	if _, err := coll.Doc(id).Delete(ctx); err != nil {
		return pfirestore.WrapError("addresses.delete", err)
	}
	return nil
}

// SetDefault marks the given address as default and clears the flag elsewhere.
func (r *AddressRepository) SetDefault(ctx context.Context, userID string, addressID string) (domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}

	var saved domain.Address
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc addressDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode address %s: %w", snap.Ref.ID, err)
		}

		query := coll.Where("isDefault", "==", true).Limit(10)
		snaps, err := tx.Documents(query).GetAll()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		for _, other := range snaps {
			if other.Ref.ID == id {
				continue
			}
			if err := tx.Update(other.Ref, []firestore.Update{{Path: "isDefault", Value: false}}); err != nil {
				return err
			}
		}

		if !doc.IsDefault {
			if err := tx.Update(docRef, []firestore.Update{{Path: "isDefault", Value: true}}); err != nil {
				return err
			}
			doc.IsDefault = true
		}
		saved = doc.toDomain(id)
		return nil
	})
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.set_default", err)
	}
	return saved, nil
}

func (r *AddressRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("address repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("address repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(addressCollectionPattern, uid)), nil
}

func decodeAddressDocument(snapshot *firestore.DocumentSnapshot) (domain.Address, error) {
	var doc addressDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Address{}, fmt.Errorf("decode address %s: %w", snapshot.Ref.ID, err)
	}
	return doc.toDomain(snapshot.Ref.ID), nil
}

type addressDocument struct {
	FirstName string    `firestore:"firstName"`
	LastName  string    `firestore:"lastName"`
	Phone     string    `firestore:"phone"`
	Line1     string    `firestore:"address"`
	City      string    `firestore:"city"`
	State     string    `firestore:"state"`
	Pincode   string    `firestore:"pincode"`
	IsDefault bool      `firestore:"isDefault"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (d addressDocument) toDomain(id string) domain.Address {
	return domain.Address{
		ID:        id,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Phone:     d.Phone,
		Line1:     d.Line1,
		City:      d.City,
		State:     d.State,
		Pincode:   d.Pincode,
		IsDefault: d.IsDefault,
		CreatedAt: d.CreatedAt,
	}
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)
