package test

import (
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

const skuAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomASCIIString returns an alphanumeric string of length in [minLen, maxLen].
func RandomASCIIString(minLen, maxLen int) string {
	minLen = max(minLen, 1)
	maxLen = max(maxLen, minLen)
	buf := make([]byte, minLen+rand.IntN(maxLen-minLen+1))
	for i := range buf {
		c := skuAlphabet[rand.IntN(len(skuAlphabet))]
		if c >= 'A' && c <= 'Z' && rand.IntN(2) == 0 {
			c += 'a' - 'A'
		}
		buf[i] = c
	}
	return string(buf)
}

// Variation builds an undiscounted catalog entry with a fresh id and SKU.
func Variation(price string, available int) model.ProductVariation {
	return model.ProductVariation{
		ID:        uuid.New(),
		SKU:       "SKU-" + RandomASCIIString(6, 6),
		UnitPrice: decimal.RequireFromString(price),
		Discount:  model.Discount{Type: model.DiscountNone},
		Available: available,
	}
}

// Line is a cart line for v.
func Line(v model.ProductVariation, qty int) model.CartLine {
	return model.CartLine{ProductVariationID: v.ID, Quantity: qty}
}
