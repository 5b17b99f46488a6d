package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
	"github.com/polkiloo/ordercheckout/internal/server/http/dto"
)

// OrderHandler manages order-related endpoints.
type OrderHandler struct {
	facade OrderFacade
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade) *OrderHandler {
	return &OrderHandler{facade: facade}
}

// Checkout handles POST /api/user/orders.
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "malformed checkout request"})
		return
	}

	lines := make([]model.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		id, err := uuid.Parse(item.ProductVariationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid product variation id"})
			return
		}
		lines = append(lines, model.CartLine{ProductVariationID: id, Quantity: item.Quantity})
	}

	order, err := h.facade.Checkout(c.Request.Context(), CurrentUserID(c), lines)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(*order))
}

// List handles GET /api/user/orders.
func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.facade.Orders(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(orders) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	response := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		response = append(response, toOrderResponse(o))
	}
	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/user/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	order, err := h.facade.Order(c.Request.Context(), CurrentUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

// RetryPayment handles POST /api/user/orders/:id/payment.
func (h *OrderHandler) RetryPayment(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	payload, err := h.facade.RetryPayment(c.Request.Context(), CurrentUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RetryPaymentResponse{
		OrderID:         payload.OrderID.String(),
		IsPaymentNeeded: payload.IsPaymentNeeded,
		ClientSecret:    payload.ClientSecret,
		PaymentURL:      payload.PaymentURL,
	})
}

// Cancel handles POST /api/user/orders/:id/cancel.
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	order, err := h.facade.Cancel(c.Request.Context(), CurrentUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

// Delete handles DELETE /api/user/orders/:id.
func (h *OrderHandler) Delete(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	outcome, err := h.facade.DeleteOrder(c.Request.Context(), CurrentUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	switch outcome {
	case model.OutcomeOK:
		c.Status(http.StatusNoContent)
	case model.OutcomeNotFound:
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "order not found", OrderID: id.String()})
	default:
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "only completed orders can be deleted", OrderID: id.String()})
	}
}

func toOrderResponse(order model.Order) dto.OrderResponse {
	scale := model.CurrencyScale(order.Currency)
	resp := dto.OrderResponse{
		ID:              order.ID.String(),
		Status:          string(order.Status),
		Currency:        order.Currency,
		SubTotal:        order.SubTotal.StringFixed(scale),
		Discount:        order.Discount.StringFixed(scale),
		Total:           order.Total.StringFixed(scale),
		IsStockReserved: order.IsStockReserved,
		CreatedAt:       order.CreatedAt,
		Items:           make([]dto.OrderItemResponse, 0, len(order.Items)),
	}
	if order.Status == model.OrderStatusAwaitingPayment {
		resp.ClientSecret = order.ClientSecret
		resp.PaymentURL = order.PaymentURL
	}
	if !order.ExpiresAt.IsZero() && !order.Status.IsTerminal() {
		expires := order.ExpiresAt.UTC().Truncate(time.Second)
		resp.ExpiresAt = &expires
	}
	for _, it := range order.Items {
		resp.Items = append(resp.Items, dto.OrderItemResponse{
			ProductVariationID: it.ProductVariationID.String(),
			Quantity:           it.Quantity,
			UnitPrice:          it.UnitPrice.String(),
			DiscountType:       string(it.DiscountType),
			DiscountValue:      it.DiscountValue.String(),
			SubTotal:           it.SubTotal.StringFixed(scale),
			Discount:           it.Discount.StringFixed(scale),
			LineTotal:          it.LineTotal.StringFixed(scale),
		})
	}
	return resp
}
