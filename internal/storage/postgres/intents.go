package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

type intentRepository struct {
	tx pgx.Tx
}

// Record is a no-op for an intent already on file, since the gateway returns the same
// intent for a repeated idempotency key.
func (r *intentRepository) Record(ctx context.Context, rec model.PaymentIntentRecord) error {
	const query = `INSERT INTO payment_intents (id, order_id, attempt, amount_minor, currency, status, created_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7)
                   ON CONFLICT (id) DO NOTHING`
	_, err := r.tx.Exec(ctx, query, rec.ID, rec.OrderID, rec.Attempt, rec.AmountMinor, rec.Currency, rec.Status, rec.CreatedAt)
	return err
}

func (r *intentRepository) SetStatus(ctx context.Context, intentID string, status model.IntentStatus) error {
	const query = `UPDATE payment_intents SET status=$1, updated_at=NOW()
                   WHERE id=$2 AND status NOT IN ('succeeded', 'canceled', 'failed')`
	_, err := r.tx.Exec(ctx, query, status, intentID)
	return err
}

func (r *intentRepository) Supersede(ctx context.Context, intentID string, at time.Time) error {
	const query = `UPDATE payment_intents SET superseded_at=$1, updated_at=NOW()
                   WHERE id=$2 AND superseded_at IS NULL`
	_, err := r.tx.Exec(ctx, query, at, intentID)
	return err
}
