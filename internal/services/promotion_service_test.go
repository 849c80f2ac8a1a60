package services

import (
	"context"
	"errors"
	"testing"
)

func TestPromotionLookupBuiltinTable(t *testing.T) {
	svc, err := NewPromotionService(PromotionServiceDeps{})
	if err != nil {
		t.Fatalf("NewPromotionService: %v", err)
	}

	preview, err := svc.Lookup(context.Background(), "drift10")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if preview.Code != "DRIFT10" || preview.Discount != 1000 {
		t.Fatalf("unexpected preview %+v", preview)
	}
}

func TestPromotionLookupUnknownCode(t *testing.T) {
	svc, err := NewPromotionService(PromotionServiceDeps{})
	if err != nil {
		t.Fatalf("NewPromotionService: %v", err)
	}

	if _, err := svc.Lookup(context.Background(), "NOPE99"); !errors.Is(err, ErrPromoUnknownCode) {
		t.Fatalf("expected ErrPromoUnknownCode, got %v", err)
	}
	if _, err := svc.Lookup(context.Background(), "   "); !errors.Is(err, ErrPromoInvalidInput) {
		t.Fatalf("expected ErrPromoInvalidInput, got %v", err)
	}
}

func TestPromotionCustomTableReplacesBuiltin(t *testing.T) {
	svc, err := NewPromotionService(PromotionServiceDeps{Table: map[string]int64{"festive15": 1500}})
	if err != nil {
		t.Fatalf("NewPromotionService: %v", err)
	}

	preview, err := svc.Lookup(context.Background(), "FESTIVE15")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if preview.Discount != 1500 {
		t.Fatalf("unexpected discount %d", preview.Discount)
	}

	// Builtin codes are gone once a table is supplied.
	if _, err := svc.Lookup(context.Background(), "DRIFT10"); !errors.Is(err, ErrPromoUnknownCode) {
		t.Fatalf("expected ErrPromoUnknownCode, got %v", err)
	}
}

func TestPromotionRejectsInvalidTableEntries(t *testing.T) {
	if _, err := NewPromotionService(PromotionServiceDeps{Table: map[string]int64{"BROKEN": 0}}); err == nil {
		t.Fatal("expected error for non-positive discount")
	}
	if _, err := NewPromotionService(PromotionServiceDeps{Table: map[string]int64{"  ": 100}}); err == nil {
		t.Fatal("expected error for blank code")
	}
}
