package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
)

type stockRepository struct {
	tx pgx.Tx
}

// Decrement is a single conditional update, so concurrent checkouts never oversell.
func (r *stockRepository) Decrement(ctx context.Context, variationID uuid.UUID, qty int) (bool, error) {
	const query = `UPDATE product_variations SET available = available - $1, updated_at = NOW()
                   WHERE id = $2 AND available >= $1`
	tag, err := r.tx.Exec(ctx, query, qty, variationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *stockRepository) Increment(ctx context.Context, variationID uuid.UUID, qty int) error {
	const query = `UPDATE product_variations SET available = available + $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.tx.Exec(ctx, query, qty, variationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrProductNotFound
	}
	return nil
}

func (r *stockRepository) Available(ctx context.Context, variationID uuid.UUID) (int, error) {
	const query = `SELECT available FROM product_variations WHERE id = $1`
	var available int
	if err := r.tx.QueryRow(ctx, query, variationID).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return available, nil
}
