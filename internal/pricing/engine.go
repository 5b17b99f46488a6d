// Package pricing turns catalog prices and discounts into exact line and order amounts.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

// Policy decides what happens to a fixed discount larger than the line subtotal.
type Policy string

const (
	PolicyReject Policy = "reject"
	PolicyClamp  Policy = "clamp"
)

// ParsePolicy validates a policy name.
func ParsePolicy(name string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(name))); p {
	case PolicyReject, PolicyClamp:
		return p, nil
	case "":
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown discount policy %q", name)
	}
}

var hundred = decimal.NewFromInt(100)

// Engine computes prices with one policy and currency scale for every line.
type Engine struct {
	policy Policy
	scale  int32
}

// NewEngine builds an engine rounding percentage discounts to the currency minor unit.
func NewEngine(policy Policy, currency string) *Engine {
	if policy == "" {
		policy = PolicyReject
	}
	return &Engine{policy: policy, scale: model.CurrencyScale(currency)}
}

// Policy returns the configured fixed discount policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// ComputeLine prices quantity units of unitPrice with the given discount.
func (e *Engine) ComputeLine(unitPrice decimal.Decimal, discount model.Discount, quantity int) (model.PriceSummary, error) {
	if quantity < 1 {
		return model.PriceSummary{}, domainErrors.ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return model.PriceSummary{}, domainErrors.ErrInvalidPrice
	}

	subTotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	amount, err := e.discountAmount(subTotal, discount)
	if err != nil {
		return model.PriceSummary{}, err
	}

	return model.PriceSummary{
		UnitPrice: unitPrice,
		Quantity:  quantity,
		SubTotal:  subTotal,
		Discount:  amount,
		Total:     subTotal.Sub(amount),
	}, nil
}

func (e *Engine) discountAmount(subTotal decimal.Decimal, discount model.Discount) (decimal.Decimal, error) {
	switch discount.Type {
	case model.DiscountNone, "":
		return decimal.Zero, nil
	case model.DiscountPercentage:
		if discount.Value.IsNegative() {
			return decimal.Zero, &domainErrors.InvalidDiscountError{Reason: "negative percentage"}
		}
		if discount.Value.GreaterThan(hundred) {
			return decimal.Zero, &domainErrors.InvalidDiscountError{Reason: "percentage above 100"}
		}
		// rounding can overshoot a subtotal carrying more digits than the currency scale
		amount := subTotal.Mul(discount.Value).Shift(-2).Round(e.scale)
		if amount.GreaterThan(subTotal) {
			amount = subTotal
		}
		return amount, nil
	case model.DiscountFixedAmount:
		if discount.Value.IsNegative() {
			return decimal.Zero, &domainErrors.InvalidDiscountError{Reason: "negative fixed amount"}
		}
		if discount.Value.GreaterThan(subTotal) {
			if e.policy == PolicyClamp {
				return subTotal, nil
			}
			return decimal.Zero, &domainErrors.InvalidDiscountError{
				Reason: fmt.Sprintf("fixed amount %s exceeds subtotal %s", discount.Value, subTotal),
			}
		}
		return discount.Value, nil
	default:
		return decimal.Zero, &domainErrors.InvalidDiscountError{Reason: fmt.Sprintf("unknown discount type %q", discount.Type)}
	}
}

// Aggregate sums line summaries. The total is the sum of line totals so it never
// drifts from the amounts stored on the items.
func (e *Engine) Aggregate(lines []model.PriceSummary) model.Totals {
	totals := model.Totals{SubTotal: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero}
	for _, line := range lines {
		totals.SubTotal = totals.SubTotal.Add(line.SubTotal)
		totals.Discount = totals.Discount.Add(line.Discount)
		totals.Total = totals.Total.Add(line.Total)
	}
	return totals
}
