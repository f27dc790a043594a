package enums

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 settlement currency accepted by the gateway.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyUSD Currency = "USD"
)

// minor unit exponent per currency
var currencyExponents = map[Currency]int32{
	CurrencyEUR: 2,
	CurrencyGBP: 2,
	CurrencyUSD: 2,
}

func (c Currency) String() string {
	return string(c)
}

func (c Currency) IsValid() bool {
	_, ok := currencyExponents[c]
	return ok
}

// ToMinor converts a major-unit amount into the integer minor units the
// gateway expects, rounding half away from zero.
func (c Currency) ToMinor(amount decimal.Decimal) int64 {
	exp, ok := currencyExponents[c]
	if !ok {
		exp = 2
	}
	return amount.Shift(exp).Round(0).IntPart()
}

// ParseCurrency accepts any casing ("eur", "EUR").
func ParseCurrency(value string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid currency %q", value)
	}
	return c, nil
}
