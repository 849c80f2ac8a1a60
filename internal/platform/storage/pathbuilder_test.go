package storage

import (
	"strings"
	"testing"
)

func TestBuildInvoicePath(t *testing.T) {
	path, err := BuildObjectPath(PurposeInvoice, PathParams{OrderID: "ORD-1", FileName: "invoice.pdf"})
	if err != nil {
		t.Fatalf("BuildObjectPath: %v", err)
	}
	if path != "orders/ORD-1/invoices/invoice.pdf" {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestBuildExportPath(t *testing.T) {
	path, err := BuildObjectPath(PurposeExport, PathParams{ExportName: "orders-2025-06", FileName: "orders.csv"})
	if err != nil {
		t.Fatalf("BuildObjectPath: %v", err)
	}
	if path != "exports/orders-2025-06/orders.csv" {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestBuildObjectPathRejectsBadSegments(t *testing.T) {
	cases := []struct {
		name    string
		purpose ObjectPurpose
		params  PathParams
		want    string
	}{
		{"missing order id", PurposeInvoice, PathParams{FileName: "invoice.pdf"}, "orderID is required"},
		{"slash in order id", PurposeInvoice, PathParams{OrderID: "ORD/1", FileName: "invoice.pdf"}, "invalid path characters"},
		{"traversal in file name", PurposeInvoice, PathParams{OrderID: "ORD-1", FileName: "..pdf"}, "traversal"},
		{"backslash in export name", PurposeExport, PathParams{ExportName: `a\b`, FileName: "orders.csv"}, "invalid path characters"},
		{"missing file name", PurposeExport, PathParams{ExportName: "orders-2025-06"}, "fileName is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := BuildObjectPath(tc.purpose, tc.params); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestBuildObjectPathUnknownPurpose(t *testing.T) {
	if _, err := BuildObjectPath(ObjectPurpose("thumbnail"), PathParams{}); err == nil {
		t.Fatal("expected error for unregistered purpose")
	}
}
