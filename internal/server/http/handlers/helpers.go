package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/server/http/dto"
	"github.com/polkiloo/ordercheckout/internal/server/http/middleware"
)

// CurrentUserID extracts authenticated user identifier from context.
func CurrentUserID(c *gin.Context) int64 {
	val, ok := c.Get(middleware.UserIDContextKey)
	if !ok {
		return 0
	}
	id, _ := val.(int64)
	return id
}

func orderIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid order id"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		discountErr   *domainErrors.InvalidDiscountError
		stockErr      *domainErrors.OutOfStockError
		gatewayErr    *domainErrors.PaymentGatewayError
		transitionErr *domainErrors.InvalidStateTransitionError
		notFoundErr   *domainErrors.OrderNotFoundError
		lineErr       *domainErrors.LineError
	)
	_ = c.Error(err)

	switch {
	case errors.As(err, &stockErr):
		resp := dto.ErrorResponse{Error: "insufficient stock", OrderID: stockErr.OrderID.String()}
		for _, l := range stockErr.Lines {
			resp.Shortages = append(resp.Shortages, dto.StockShortageResponse{
				ProductVariationID: l.VariationID.String(),
				Requested:          l.Requested,
				Available:          l.Available,
			})
		}
		c.JSON(http.StatusConflict, resp)
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error(), OrderID: transitionErr.OrderID.String()})
	case errors.As(err, &discountErr):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error(), ProductVariationID: nonNil(discountErr.VariationID)})
	case errors.Is(err, domainErrors.ErrPaymentInProgress) && errors.As(err, &gatewayErr):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "payment in progress", OrderID: nonNil(gatewayErr.OrderID)})
	case errors.As(err, &gatewayErr):
		if gatewayErr.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(gatewayErr.RetryAfter.Seconds()))))
		}
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: "payment gateway error", OrderID: nonNil(gatewayErr.OrderID)})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error(), OrderID: notFoundErr.OrderID.String()})
	case errors.Is(err, domainErrors.ErrProductNotFound), errors.Is(err, domainErrors.ErrInvalidPrice):
		resp := dto.ErrorResponse{Error: err.Error()}
		if errors.As(err, &lineErr) {
			resp.ProductVariationID = nonNil(lineErr.VariationID)
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.Is(err, domainErrors.ErrEmptyCart),
		errors.Is(err, domainErrors.ErrTooManyLines),
		errors.Is(err, domainErrors.ErrInvalidQuantity):
		resp := dto.ErrorResponse{Error: err.Error()}
		if errors.As(err, &lineErr) {
			resp.ProductVariationID = nonNil(lineErr.VariationID)
		}
		c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, domainErrors.ErrNotFound):
		c.Status(http.StatusNotFound)
	default:
		c.Status(http.StatusInternalServerError)
	}
}

func nonNil(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
