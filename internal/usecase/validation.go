package usecase

import (
	"slices"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

// MaxCartLines bounds a single checkout request.
const MaxCartLines = 100

// ValidateCart checks the shape of a checkout request before any lookup.
func ValidateCart(lines []model.CartLine) error {
	if len(lines) == 0 {
		return domainErrors.ErrEmptyCart
	}
	if len(lines) > MaxCartLines {
		return domainErrors.ErrTooManyLines
	}
	for _, line := range lines {
		if line.ProductVariationID == uuid.Nil {
			return &domainErrors.LineError{VariationID: line.ProductVariationID, Err: domainErrors.ErrProductNotFound}
		}
		if line.Quantity < 1 {
			return &domainErrors.LineError{VariationID: line.ProductVariationID, Err: domainErrors.ErrInvalidQuantity}
		}
	}
	return nil
}

type stockDemand struct {
	variationID uuid.UUID
	quantity    int
}

// mergeDemand sums quantities per variation and orders them by id so that
// concurrent reservations lock stock rows in the same order.
func mergeDemand(items []model.OrderItem) []stockDemand {
	totals := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		totals[item.ProductVariationID] += item.Quantity
	}
	out := make([]stockDemand, 0, len(totals))
	for id, qty := range totals {
		out = append(out, stockDemand{variationID: id, quantity: qty})
	}
	slices.SortFunc(out, func(a, b stockDemand) int {
		return slices.Compare(a.variationID[:], b.variationID[:])
	})
	return out
}

func variationIDs(lines []model.CartLine) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductVariationID]; ok {
			continue
		}
		seen[line.ProductVariationID] = struct{}{}
		ids = append(ids, line.ProductVariationID)
	}
	return ids
}
