package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	domain "github.com/drift-commerce/api/internal/domain"
)

const invoiceFileName = "invoice.json"

// InvoiceArchiver writes immutable order snapshots to Cloud Storage and
// issues signed retrieval URLs for them.
type InvoiceArchiver struct {
	client  *gcs.Client
	urls    *Client
	bucket  string
	marshal func(any) ([]byte, error)
}

// NewInvoiceArchiver constructs an archiver writing to the given bucket.
func NewInvoiceArchiver(client *gcs.Client, urls *Client, bucket string) (*InvoiceArchiver, error) {
	if client == nil {
		return nil, errors.New("invoice archiver: storage client is required")
	}
	if urls == nil {
		return nil, errors.New("invoice archiver: signed url client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("invoice archiver: bucket is required")
	}
	return &InvoiceArchiver{
		client:  client,
		urls:    urls,
		bucket:  strings.TrimSpace(bucket),
		marshal: json.Marshal,
	}, nil
}

// ArchiveOrder persists the order snapshot as a JSON object. The object path
// is deterministic per order so re-archiving overwrites rather than
// duplicates.
func (a *InvoiceArchiver) ArchiveOrder(ctx context.Context, order domain.Order) error {
	if a == nil || a.client == nil {
		return errors.New("invoice archiver: not initialised")
	}

	object, err := BuildObjectPath(PurposeInvoice, PathParams{
		OrderID:  order.ID,
		FileName: invoiceFileName,
	})
	if err != nil {
		return err
	}

	data, err := a.marshal(invoiceSnapshot(order))
	if err != nil {
		return fmt.Errorf("invoice archiver: marshal order %s: %w", order.ID, err)
	}

	writer := a.client.Bucket(a.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-store"
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("invoice archiver: write order %s: %w", order.ID, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("invoice archiver: flush order %s: %w", order.ID, err)
	}
	return nil
}

// InvoiceURL issues a signed download URL for a previously archived order.
func (a *InvoiceArchiver) InvoiceURL(ctx context.Context, orderID string, expiry time.Duration) (string, error) {
	if a == nil || a.urls == nil {
		return "", errors.New("invoice archiver: not initialised")
	}

	object, err := BuildObjectPath(PurposeInvoice, PathParams{
		OrderID:  orderID,
		FileName: invoiceFileName,
	})
	if err != nil {
		return "", err
	}

	result, err := a.urls.SignedURL(ctx, a.bucket, object, SignedURLOptions{
		Download: &DownloadOptions{
			ExpiresIn:      expiry,
			ResponseType:   "application/json",
			AllowAnonymous: true,
		},
	})
	if err != nil {
		return "", err
	}
	return result.URL, nil
}

type invoiceDocument struct {
	OrderID         string                 `json:"orderId"`
	OrderNumber     string                 `json:"orderNumber"`
	UserID          string                 `json:"userId"`
	CustomerEmail   string                 `json:"customerEmail"`
	Items           []invoiceLineDocument  `json:"items"`
	Subtotal        int64                  `json:"subtotal"`
	Tax             int64                  `json:"tax"`
	Discount        int64                  `json:"discount,omitempty"`
	Total           int64                  `json:"total"`
	PromoCode       string                 `json:"promoCode,omitempty"`
	PaymentMethod   string                 `json:"paymentMethod"`
	Status          string                 `json:"status"`
	ShippingAddress invoiceAddressDocument `json:"shippingAddress"`
	PlacedAt        time.Time              `json:"placedAt"`
}

type invoiceLineDocument struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

type invoiceAddressDocument struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Line1     string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
}

func invoiceSnapshot(order domain.Order) invoiceDocument {
	lines := make([]invoiceLineDocument, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, invoiceLineDocument{
			ProductID: item.ProductID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return invoiceDocument{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		CustomerEmail: order.CustomerEmail,
		Items:         lines,
		Subtotal:      order.Subtotal,
		Tax:           order.Tax,
		Discount:      order.Discount,
		Total:         order.Total,
		PromoCode:     order.PromoCode,
		PaymentMethod: order.PaymentMethod,
		Status:        string(order.Status),
		ShippingAddress: invoiceAddressDocument{
			FirstName: order.ShippingAddress.FirstName,
			LastName:  order.ShippingAddress.LastName,
			Phone:     order.ShippingAddress.Phone,
			Line1:     order.ShippingAddress.Line1,
			City:      order.ShippingAddress.City,
			State:     order.ShippingAddress.State,
			Pincode:   order.ShippingAddress.Pincode,
		},
		PlacedAt: order.PlacedAt,
	}
}
