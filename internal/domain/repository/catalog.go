package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

// CatalogRepository reads product variations at call time.
type CatalogRepository interface {
	// Snapshot returns the current price, discount and availability of the given variations.
	// Missing ids are absent from the result.
	Snapshot(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.ProductVariation, error)
}

// StockRepository mutates available quantities inside a transaction.
type StockRepository interface {
	// Decrement subtracts qty only when at least qty units are available.
	Decrement(ctx context.Context, variationID uuid.UUID, qty int) (bool, error)
	Increment(ctx context.Context, variationID uuid.UUID, qty int) error
	Available(ctx context.Context, variationID uuid.UUID) (int, error)
}
