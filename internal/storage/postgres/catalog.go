package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

type catalogRepository struct {
	db querier
}

// Snapshot reads price, discount and availability as of the call.
func (r *catalogRepository) Snapshot(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.ProductVariation, error) {
	const query = `SELECT id, sku, unit_price, discount_type, discount_value, available
                   FROM product_variations WHERE id = ANY($1)`
	result := make(map[uuid.UUID]model.ProductVariation, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var v model.ProductVariation
		if err := rows.Scan(&v.ID, &v.SKU, &v.UnitPrice, &v.Discount.Type, &v.Discount.Value, &v.Available); err != nil {
			return nil, err
		}
		result[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
