package domain

// DefaultTaxRateBps is the flat GST rate applied to cart subtotals, in basis
// points (1800 = 18%).
const DefaultTaxRateBps = 1800

// TotalsFor derives the cart totals from the active line set. Pure function:
// the result never drifts from the lines it was computed over. Tax is rounded
// half-up in minor currency units.
func TotalsFor(lines []CartLine, taxRateBps int64) CartTotals {
	totals := CartTotals{}
	for _, line := range lines {
		totals.ItemCount += line.Quantity
		totals.Subtotal += line.UnitPrice * int64(line.Quantity)
	}
	totals.Tax = roundHalfUp(totals.Subtotal*taxRateBps, 10000)
	totals.GrandTotal = totals.Subtotal + totals.Tax
	return totals
}

// FinalTotal applies a flat discount to a grand total, clamped at zero.
func FinalTotal(grandTotal, discount int64) int64 {
	final := grandTotal - discount
	if final < 0 {
		return 0
	}
	return final
}

func roundHalfUp(numerator, denominator int64) int64 {
	if denominator == 0 {
		return 0
	}
	return (numerator + denominator/2) / denominator
}
