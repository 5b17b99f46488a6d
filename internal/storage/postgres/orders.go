package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

const orderColumns = `id, user_id, currency, sub_total, discount, total, status, is_stock_reserved,
                      payment_intent_id, payment_attempt, client_secret, payment_url,
                      expires_at, created_at, updated_at, is_deleted`

const itemColumns = `id, order_id, product_variation_id, quantity, unit_price, discount_type,
                     discount_value, sub_total, discount, line_total`

var terminalStatuses = []string{
	string(model.OrderStatusPaid),
	string(model.OrderStatusCancelled),
	string(model.OrderStatusExpired),
	string(model.OrderStatusStockReservationFailed),
}

type orderRepository struct {
	db querier
}

type orderTxRepository struct {
	tx pgx.Tx
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Currency, &o.SubTotal, &o.Discount, &o.Total, &o.Status, &o.IsStockReserved,
		&o.PaymentIntentID, &o.PaymentAttempt, &o.ClientSecret, &o.PaymentURL,
		&o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt, &o.IsDeleted)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	const query = `SELECT ` + itemColumns + ` FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`
	rows, err := q.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductVariationID, &it.Quantity, &it.UnitPrice, &it.DiscountType,
			&it.DiscountValue, &it.SubTotal, &it.Discount, &it.LineTotal); err != nil {
			return nil, err
		}
		items[it.OrderID] = append(items[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func withItems(ctx context.Context, q querier, order *model.Order) (*model.Order, error) {
	items, err := loadItems(ctx, q, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

// --- OrderRepository implementation ---

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err, &domainErrors.OrderNotFoundError{OrderID: id})
	}
	return withItems(ctx, r.db, order)
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders
                   WHERE user_id=$1 AND NOT is_deleted ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, len(result))
	for i := range result {
		ids[i] = result[i].ID
	}
	items, err := loadItems(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Items = items[result[i].ID]
	}
	return result, nil
}

func (r *orderRepository) SelectExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const query = `SELECT id FROM orders
                   WHERE status IN ('AWAITING_PAYMENT', 'PAYMENT_FAILED') AND expires_at <= $1
                     AND (sweep_after IS NULL OR sweep_after <= $1)
                   ORDER BY expires_at
                   LIMIT $2`
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.db.Query(ctx, query, now, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *orderRepository) DeferSweep(ctx context.Context, id uuid.UUID, until time.Time) error {
	const query = `UPDATE orders SET sweep_after=$1 WHERE id=$2`
	tag, err := r.db.Exec(ctx, query, until, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domainErrors.OrderNotFoundError{OrderID: id}
	}
	return nil
}

func (r *orderRepository) SoftDelete(ctx context.Context, id uuid.UUID, userID int64) (model.Outcome, error) {
	const deleteQuery = `UPDATE orders SET is_deleted=TRUE, updated_at=NOW()
                         WHERE id=$1 AND user_id=$2 AND NOT is_deleted AND status = ANY($3)`
	tag, err := r.db.Exec(ctx, deleteQuery, id, userID, terminalStatuses)
	if err != nil {
		return model.OutcomeUnchanged, err
	}
	if tag.RowsAffected() == 1 {
		return model.OutcomeOK, nil
	}

	const existsQuery = `SELECT status FROM orders WHERE id=$1 AND user_id=$2 AND NOT is_deleted`
	var status model.OrderStatus
	if err := r.db.QueryRow(ctx, existsQuery, id, userID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OutcomeNotFound, nil
		}
		return model.OutcomeUnchanged, err
	}
	return model.OutcomeConflict, nil
}

// --- OrderTxRepository implementation ---

func (r *orderTxRepository) Insert(ctx context.Context, order *model.Order) error {
	const orderQuery = `INSERT INTO orders (` + orderColumns + `)
                        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.tx.Exec(ctx, orderQuery,
		order.ID, order.UserID, order.Currency, order.SubTotal, order.Discount, order.Total, order.Status, order.IsStockReserved,
		order.PaymentIntentID, order.PaymentAttempt, order.ClientSecret, order.PaymentURL,
		order.ExpiresAt, order.CreatedAt, order.UpdatedAt, order.IsDeleted)
	if err != nil {
		if isUniqueViolation(err) {
			return domainErrors.ErrAlreadyExists
		}
		return err
	}

	const itemQuery = `INSERT INTO order_items (` + itemColumns + `)
                       VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, it := range order.Items {
		if _, err := r.tx.Exec(ctx, itemQuery,
			it.ID, order.ID, it.ProductVariationID, it.Quantity, it.UnitPrice, it.DiscountType,
			it.DiscountValue, it.SubTotal, it.Discount, it.LineTotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *orderTxRepository) Lock(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id=$1 FOR UPDATE`
	order, err := scanOrder(r.tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err, &domainErrors.OrderNotFoundError{OrderID: id})
	}
	return withItems(ctx, r.tx, order)
}

func (r *orderTxRepository) LockByIntent(ctx context.Context, intentID string) (*model.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders
                   WHERE id = (SELECT order_id FROM payment_intents WHERE id=$1)
                   FOR UPDATE`
	order, err := scanOrder(r.tx.QueryRow(ctx, query, intentID))
	if err != nil {
		return nil, mapNoRows(err, domainErrors.ErrNotFound)
	}
	return withItems(ctx, r.tx, order)
}

func (r *orderTxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, expected ...model.OrderStatus) (bool, error) {
	const query = `UPDATE orders SET status=$1, updated_at=NOW() WHERE id=$2 AND status = ANY($3)`
	from := make([]string, len(expected))
	for i, s := range expected {
		from[i] = string(s)
	}
	tag, err := r.tx.Exec(ctx, query, status, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderTxRepository) SetStockReserved(ctx context.Context, id uuid.UUID, reserved bool) (bool, error) {
	const query = `UPDATE orders SET is_stock_reserved=$1, updated_at=NOW()
                   WHERE id=$2 AND is_stock_reserved <> $1`
	tag, err := r.tx.Exec(ctx, query, reserved, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderTxRepository) SetPayment(ctx context.Context, id uuid.UUID, intent model.PaymentIntent, attempt int) error {
	const query = `UPDATE orders
                   SET payment_intent_id=$1, client_secret=$2, payment_url=$3, payment_attempt=$4, updated_at=NOW()
                   WHERE id=$5`
	tag, err := r.tx.Exec(ctx, query, intent.ID, intent.ClientSecret, intent.PaymentURL, attempt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domainErrors.OrderNotFoundError{OrderID: id}
	}
	return nil
}

func (r *orderTxRepository) SetExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	const query = `UPDATE orders SET expires_at=$1, sweep_after=NULL, updated_at=NOW() WHERE id=$2`
	tag, err := r.tx.Exec(ctx, query, expiresAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domainErrors.OrderNotFoundError{OrderID: id}
	}
	return nil
}
