package pot

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ParseCurrency validates an ISO 4217 code and returns it uppercased along
// with the number of decimal places the currency uses.
func ParseCurrency(code string) (string, int32, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "", 0, ErrInvalidCurrency
	}
	scale, _ := currency.Standard.Rounding(unit)
	return unit.String(), int32(scale), nil
}

// CheckScale rejects amounts finer than the currency's minor unit.
func CheckScale(amount decimal.Decimal, scale int32) error {
	if !amount.Equal(amount.Truncate(scale)) {
		return ErrTooPrecise
	}
	return nil
}
