package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when configuration does not override it.
const DefaultCurrency = "usd"

var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

var threeDecimalCurrencies = map[string]struct{}{
	"bhd": {}, "jod": {}, "kwd": {}, "omr": {}, "tnd": {},
}

// CurrencyScale returns the number of minor-unit digits of an ISO currency.
func CurrencyScale(currency string) int32 {
	code := strings.ToLower(currency)
	if _, ok := zeroDecimalCurrencies[code]; ok {
		return 0
	}
	if _, ok := threeDecimalCurrencies[code]; ok {
		return 3
	}
	return 2
}

// ToMinorUnits converts a decimal amount into the integer amount sent to the gateway.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", amount)
	}
	scale := CurrencyScale(currency)
	minor := amount.Round(scale).Shift(scale)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s is not representable in %s minor units", amount, currency)
	}
	return minor.IntPart(), nil
}
