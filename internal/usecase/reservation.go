package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
	"github.com/polkiloo/ordercheckout/internal/domain/repository"
)

// ReservationManager holds and returns catalog stock for order items.
type ReservationManager struct {
	logger *slog.Logger
}

// NewReservationManager constructs ReservationManager.
func NewReservationManager(logger *slog.Logger) *ReservationManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReservationManager{logger: logger}
}

// Reserve decrements stock for every item or reports all short lines.
// On error the caller must roll the transaction back.
func (m *ReservationManager) Reserve(ctx context.Context, tx repository.Tx, orderID uuid.UUID, items []model.OrderItem) error {
	var shortages []domainErrors.StockShortage
	for _, d := range mergeDemand(items) {
		ok, err := tx.Stock().Decrement(ctx, d.variationID, d.quantity)
		if err != nil {
			return fmt.Errorf("reserve variation %s: %w", d.variationID, err)
		}
		if ok {
			continue
		}
		available, err := tx.Stock().Available(ctx, d.variationID)
		if err != nil {
			return fmt.Errorf("read stock of variation %s: %w", d.variationID, err)
		}
		shortages = append(shortages, domainErrors.StockShortage{
			VariationID: d.variationID,
			Requested:   d.quantity,
			Available:   available,
		})
	}
	if len(shortages) > 0 {
		m.logger.Info("stock reservation failed",
			slog.String("order_id", orderID.String()),
			slog.Int("short_lines", len(shortages)),
		)
		return &domainErrors.OutOfStockError{OrderID: orderID, Lines: shortages}
	}
	return nil
}

// Release returns the order's stock once. Repeated calls report OutcomeNotFound.
func (m *ReservationManager) Release(ctx context.Context, tx repository.Tx, order *model.Order) (model.Outcome, error) {
	changed, err := tx.Orders().SetStockReserved(ctx, order.ID, false)
	if err != nil {
		return model.OutcomeUnchanged, fmt.Errorf("clear reservation of order %s: %w", order.ID, err)
	}
	if !changed {
		order.IsStockReserved = false
		return model.OutcomeNotFound, nil
	}
	for _, d := range mergeDemand(order.Items) {
		if err := tx.Stock().Increment(ctx, d.variationID, d.quantity); err != nil {
			return model.OutcomeUnchanged, fmt.Errorf("return variation %s: %w", d.variationID, err)
		}
	}
	order.IsStockReserved = false
	return model.OutcomeOK, nil
}
