package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/drift-commerce/api/internal/domain"
	pfirestore "github.com/drift-commerce/api/internal/platform/firestore"
	"github.com/drift-commerce/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists order documents in Firestore. Reads normalise the
// legacy keyed-map items shape into the canonical list; writes always store
// the list.
type OrderRepository struct {
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

// Insert creates the order document, failing with a conflict when the ID is
// already taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	if _, err := coll.Doc(orderID).Create(ctx, orderToDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	snap, err := coll.Doc(orderID).Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", err)
	}
	return decodeOrderSnapshot(snap)
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	query := coll.Query
	if uid := strings.TrimSpace(filter.UserID); uid != "" {
		query = query.Where("userId", "==", uid)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				statuses = append(statuses, trimmed)
			}
		}
		if len(statuses) > 0 {
			query = query.Where("status", "in", statuses)
		}
	}
	if filter.DateRange.From != nil {
		query = query.Where("placedAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("placedAt", "<=", filter.DateRange.To.UTC())
	}

	query = query.OrderBy("placedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

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
		tokenTime, tokenID, err := decodeOrderToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("orders.list: invalid page token: %w", err)
		}
		query = query.StartAfter(tokenTime, tokenID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		order, err := decodeOrderSnapshot(snap)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		orders = append(orders, order)
	}

	nextToken := ""
	if limit > 0 && len(orders) == fetchLimit {
		last := orders[len(orders)-1]
		nextToken = encodeOrderToken(last.PlacedAt, last.ID)
		orders = orders[:len(orders)-1]
	}

	return domain.CursorPage[domain.Order]{
		Items:         orders,
		NextPageToken: nextToken,
	}, nil
}

// UpdateStatus writes the status transition fields without touching the rest
// of the document.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, update repositories.OrderStatusUpdate) (domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	updates := []firestore.Update{
		{Path: "status", Value: string(update.Status)},
		{Path: "updatedAt", Value: update.UpdatedAt.UTC()},
	}
	if update.ShippedAt != nil {
		updates = append(updates, firestore.Update{Path: "shippedAt", Value: update.ShippedAt.UTC()})
	}
	if update.DeliveredAt != nil {
		updates = append(updates, firestore.Update{Path: "deliveredAt", Value: update.DeliveredAt.UTC()})
	}
	if update.CancelledAt != nil {
		updates = append(updates, firestore.Update{Path: "cancelledAt", Value: update.CancelledAt.UTC()})
	}
	if update.CancelReason != nil {
		updates = append(updates, firestore.Update{Path: "cancelReason", Value: strings.TrimSpace(*update.CancelReason)})
	}

	if _, err := coll.Doc(orderID).Update(ctx, updates); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update_status", err)
	}
	return r.FindByID(ctx, orderID)
}

// UpdateStockSync records stock deduction progress for the order.
func (r *OrderRepository) UpdateStockSync(ctx context.Context, orderID string, update repositories.OrderStockSyncUpdate) (domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	applied := make([]string, 0, len(update.AppliedLines))
	for _, id := range update.AppliedLines {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			applied = append(applied, trimmed)
		}
	}

	updates := []firestore.Update{
		{Path: "stockSync", Value: string(update.State)},
		{Path: "stockApplied", Value: applied},
		{Path: "updatedAt", Value: update.UpdatedAt.UTC()},
	}
	if _, err := coll.Doc(orderID).Update(ctx, updates); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update_stock_sync", err)
	}
	return r.FindByID(ctx, orderID)
}

// ListPendingStockSync returns the oldest orders still awaiting stock deduction.
func (r *OrderRepository) ListPendingStockSync(ctx context.Context, limit int) ([]domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	query := coll.
		Where("stockSync", "==", string(domain.StockSyncPending)).
		OrderBy("placedAt", firestore.Asc).
		Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.list_pending_stock_sync", err)
		}
		order, err := decodeOrderSnapshot(snap)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *OrderRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("order repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(orderCollection), nil
}

func orderToDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		UserID:        strings.TrimSpace(order.UserID),
		CustomerEmail: strings.TrimSpace(order.CustomerEmail),
		Items:         cartLinesToDocuments(order.Items),
		Subtotal:      order.Subtotal,
		Tax:           order.Tax,
		Discount:      order.Discount,
		Total:         order.Total,
		PromoCode:     strings.TrimSpace(order.PromoCode),
		PaymentMethod: strings.TrimSpace(order.PaymentMethod),
		Status:        string(order.Status),
		StockSync:     string(order.StockSync),
		StockApplied:  append([]string(nil), order.StockApplied...),
		PlacedAt:      order.PlacedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
		ShippedAt:     order.ShippedAt,
		DeliveredAt:   order.DeliveredAt,
		CancelledAt:   order.CancelledAt,
	}
	if order.CancelReason != nil {
		doc.CancelReason = strings.TrimSpace(*order.CancelReason)
	}
	doc.ShippingAddress = addressToOrderDocument(order.ShippingAddress)
	return doc
}

func decodeOrderSnapshot(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}

	order := domain.Order{
		ID:            snap.Ref.ID,
		OrderNumber:   doc.OrderNumber,
		UserID:        doc.UserID,
		CustomerEmail: doc.CustomerEmail,
		Items:         normaliseOrderItems(doc.Items),
		Subtotal:      doc.Subtotal,
		Tax:           doc.Tax,
		Discount:      doc.Discount,
		Total:         doc.Total,
		PromoCode:     doc.PromoCode,
		PaymentMethod: doc.PaymentMethod,
		Status:        domain.OrderStatus(doc.Status),
		StockSync:     domain.StockSyncState(doc.StockSync),
		StockApplied:  doc.StockApplied,
		PlacedAt:      doc.PlacedAt,
		UpdatedAt:     doc.UpdatedAt,
		ShippedAt:     doc.ShippedAt,
		DeliveredAt:   doc.DeliveredAt,
		CancelledAt:   doc.CancelledAt,
	}
	if reason := strings.TrimSpace(doc.CancelReason); reason != "" {
		order.CancelReason = &reason
	}
	order.ShippingAddress = addressFromOrderDocument(doc.ShippingAddress)
	return order, nil
}

// normaliseOrderItems reconciles the two historical item shapes stored under
// the items field. Documents written before the list migration keyed lines by
// product ID; those entries are converted and sorted by product ID for a
// stable order.
func normaliseOrderItems(raw any) []domain.CartLine {
	switch value := raw.(type) {
	case []any:
		lines := make([]domain.CartLine, 0, len(value))
		for _, item := range value {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			line := cartLineFromMap(entry)
			if id, ok := entry["productId"].(string); ok {
				line.ProductID = id
			}
			lines = append(lines, line)
		}
		return lines
	case map[string]any:
		lines := make([]domain.CartLine, 0, len(value))
		for productID, item := range value {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			line := cartLineFromMap(entry)
			line.ProductID = productID
			lines = append(lines, line)
		}
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
		return lines
	default:
		return nil
	}
}

func cartLineFromMap(entry map[string]any) domain.CartLine {
	var line domain.CartLine
	if title, ok := entry["title"].(string); ok {
		line.Title = title
	}
	line.UnitPrice = int64FromAny(entry["unitPrice"], entry["price"])
	line.Quantity = int(int64FromAny(entry["quantity"]))
	if ts, ok := entry["addedAt"].(time.Time); ok {
		line.AddedAt = ts
	}
	if image, ok := entry["imageRef"].(string); ok {
		line.ImageRef = image
	}
	return line
}

func int64FromAny(candidates ...any) int64 {
	for _, candidate := range candidates {
		switch v := candidate.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

func addressToOrderDocument(addr domain.Address) *orderAddressDocument {
	if addr == (domain.Address{}) {
		return nil
	}
	return &orderAddressDocument{
		FirstName: addr.FirstName,
		LastName:  addr.LastName,
		Phone:     addr.Phone,
		Line1:     addr.Line1,
		City:      addr.City,
		State:     addr.State,
		Pincode:   addr.Pincode,
	}
}

func addressFromOrderDocument(doc *orderAddressDocument) domain.Address {
	if doc == nil {
		return domain.Address{}
	}
	return domain.Address{
		FirstName: doc.FirstName,
		LastName:  doc.LastName,
		Phone:     doc.Phone,
		Line1:     doc.Line1,
		City:      doc.City,
		State:     doc.State,
		Pincode:   doc.Pincode,
	}
}

type orderDocument struct {
	OrderNumber     string                `firestore:"orderNumber"`
	UserID          string                `firestore:"userId"`
	CustomerEmail   string                `firestore:"customerEmail,omitempty"`
	Items           any                   `firestore:"items"`
	Subtotal        int64                 `firestore:"subtotal"`
	Tax             int64                 `firestore:"tax"`
	Discount        int64                 `firestore:"discount"`
	Total           int64                 `firestore:"total"`
	PromoCode       string                `firestore:"promoCode,omitempty"`
	PaymentMethod   string                `firestore:"paymentMethod"`
	Status          string                `firestore:"status"`
	StockSync       string                `firestore:"stockSync"`
	StockApplied    []string              `firestore:"stockApplied"`
	ShippingAddress *orderAddressDocument `firestore:"shippingAddress,omitempty"`
	PlacedAt        time.Time             `firestore:"placedAt"`
	UpdatedAt       time.Time             `firestore:"updatedAt"`
	ShippedAt       *time.Time            `firestore:"shippedAt,omitempty"`
	DeliveredAt     *time.Time            `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time            `firestore:"cancelledAt,omitempty"`
	CancelReason    string                `firestore:"cancelReason,omitempty"`
}

type orderAddressDocument struct {
	FirstName string `firestore:"firstName"`
	LastName  string `firestore:"lastName"`
	Phone     string `firestore:"phone"`
	Line1     string `firestore:"address"`
	City      string `firestore:"city"`
	State     string `firestore:"state"`
	Pincode   string `firestore:"pincode"`
}

func encodeOrderToken(placedAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", placedAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeOrderToken(token string) (time.Time, string, error) {
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

var _ repositories.OrderRepository = (*OrderRepository)(nil)
