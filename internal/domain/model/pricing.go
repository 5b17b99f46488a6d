package model

import "github.com/shopspring/decimal"

// DiscountType selects how a discount value is applied to a line.
type DiscountType string

const (
	DiscountNone        DiscountType = "NONE"
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

// Discount describes a discount attached to a product variation.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// NoDiscount is the zero discount.
var NoDiscount = Discount{Type: DiscountNone, Value: decimal.Zero}

// PriceSummary holds exact amounts for a single line.
type PriceSummary struct {
	UnitPrice decimal.Decimal
	Quantity  int
	SubTotal  decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
}

// Totals holds order level aggregates.
type Totals struct {
	SubTotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}
