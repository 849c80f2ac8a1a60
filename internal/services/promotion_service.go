package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Default promo table, flat discounts in minor currency units. Overridable
// through configuration.
var defaultPromoTable = map[string]int64{
	"DRIFT10":   1000,
	"WELCOME20": 2000,
	"SAVE50":    5000,
}

var (
	// ErrPromoInvalidInput indicates the supplied code is empty or malformed.
	ErrPromoInvalidInput = errors.New("promotion: invalid input")
	// ErrPromoUnknownCode indicates the code does not match any promotion.
	ErrPromoUnknownCode = errors.New("promotion: invalid promo code")
)

// PromotionServiceDeps bundles constructor inputs for the promotion service.
type PromotionServiceDeps struct {
	// Table maps uppercase promo codes to flat discounts in minor units.
	// Nil falls back to the built-in table.
	Table map[string]int64
}

type promotionService struct {
	table map[string]int64
}

// NewPromotionService builds the promo lookup over the configured code table.
func NewPromotionService(deps PromotionServiceDeps) (PromotionService, error) {
	source := deps.Table
	if source == nil {
		source = defaultPromoTable
	}
	table := make(map[string]int64, len(source))
	for code, discount := range source {
		normalized := strings.ToUpper(strings.TrimSpace(code))
		if normalized == "" || discount <= 0 {
			return nil, fmt.Errorf("promotion service: invalid table entry %q=%d", code, discount)
		}
		table[normalized] = discount
	}
	return &promotionService{table: table}, nil
}

// Lookup resolves a promo code case-insensitively. Unknown codes return
// ErrPromoUnknownCode so callers can reset any previously applied discount.
func (s *promotionService) Lookup(_ context.Context, code string) (PromoPreview, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return PromoPreview{}, ErrPromoInvalidInput
	}
	discount, ok := s.table[normalized]
	if !ok {
		return PromoPreview{}, fmt.Errorf("%w: %s", ErrPromoUnknownCode, normalized)
	}
	return PromoPreview{Code: normalized, Discount: discount}, nil
}
