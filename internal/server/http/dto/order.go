package dto

import "time"

// CartLineRequest is a single line of a checkout request.
type CartLineRequest struct {
	ProductVariationID string `json:"product_variation_id"`
	Quantity           int    `json:"quantity"`
}

// CheckoutRequest is the body of POST /api/user/orders.
type CheckoutRequest struct {
	Items []CartLineRequest `json:"items"`
}

// OrderItemResponse describes a priced order line. Money fields are decimal strings.
type OrderItemResponse struct {
	ProductVariationID string `json:"product_variation_id"`
	Quantity           int    `json:"quantity"`
	UnitPrice          string `json:"unit_price"`
	DiscountType       string `json:"discount_type"`
	DiscountValue      string `json:"discount_value"`
	SubTotal           string `json:"sub_total"`
	Discount           string `json:"discount"`
	LineTotal          string `json:"line_total"`
}

// OrderResponse describes an order.
type OrderResponse struct {
	ID              string              `json:"id"`
	Status          string              `json:"status"`
	Currency        string              `json:"currency"`
	SubTotal        string              `json:"sub_total"`
	Discount        string              `json:"discount"`
	Total           string              `json:"total"`
	IsStockReserved bool                `json:"is_stock_reserved"`
	ClientSecret    string              `json:"client_secret,omitempty"`
	PaymentURL      string              `json:"payment_url,omitempty"`
	ExpiresAt       *time.Time          `json:"expires_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	Items           []OrderItemResponse `json:"items"`
}

// RetryPaymentResponse is returned when a client re-enters the payment step.
type RetryPaymentResponse struct {
	OrderID         string `json:"order_id"`
	IsPaymentNeeded bool   `json:"is_payment_needed"`
	ClientSecret    string `json:"client_secret,omitempty"`
	PaymentURL      string `json:"payment_url,omitempty"`
}

// StockShortageResponse names a line that could not be reserved.
type StockShortageResponse struct {
	ProductVariationID string `json:"product_variation_id"`
	Requested          int    `json:"requested"`
	Available          int    `json:"available"`
}

// ErrorResponse is the body of every failed request that carries details.
type ErrorResponse struct {
	Error              string                  `json:"error"`
	OrderID            string                  `json:"order_id,omitempty"`
	ProductVariationID string                  `json:"product_variation_id,omitempty"`
	Shortages          []StockShortageResponse `json:"shortages,omitempty"`
}
