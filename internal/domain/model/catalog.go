package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductVariation is the catalog entry an order line refers to.
type ProductVariation struct {
	ID        uuid.UUID
	SKU       string
	UnitPrice decimal.Decimal
	Discount  Discount
	Available int
}
