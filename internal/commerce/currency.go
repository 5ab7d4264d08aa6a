package commerce

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyConverter converts display amounts. It is never used for the
// authoritative invoice totals.
type CurrencyConverter interface {
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// units of each currency per 1 INR
var inrRates = map[string]decimal.Decimal{
	"INR": decimal.NewFromInt(1),
	"USD": decimal.RequireFromString("0.012"),
	"GBP": decimal.RequireFromString("0.0095"),
	"EUR": decimal.RequireFromString("0.011"),
	"JPY": decimal.RequireFromString("1.8"),
	"CNY": decimal.RequireFromString("0.087"),
	"AUD": decimal.RequireFromString("0.018"),
	"CAD": decimal.RequireFromString("0.016"),
	"CHF": decimal.RequireFromString("0.011"),
	"SGD": decimal.RequireFromString("0.016"),
	"AED": decimal.RequireFromString("0.044"),
	"SAR": decimal.RequireFromString("0.045"),
}

var currencySymbols = map[string]string{
	"USD": "$", "GBP": "£", "EUR": "€", "INR": "₹", "JPY": "¥", "CNY": "¥",
	"AUD": "A$", "CAD": "C$", "CHF": "CHF ", "SGD": "S$", "AED": "AED ", "SAR": "SAR ",
}

// StaticRates converts through INR using a fixed table. Results are rounded
// half-up to two places.
type StaticRates struct{}

func (StaticRates) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount, nil
	}
	rf, ok := inrRates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unsupported currency %q", ErrValidation, from)
	}
	rt, ok := inrRates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unsupported currency %q", ErrValidation, to)
	}
	return amount.Div(rf).Mul(rt).Round(2), nil
}

func SupportedCurrencies() []string {
	out := make([]string, 0, len(inrRates))
	for c := range inrRates {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func CurrencySymbol(code string) string {
	code = strings.ToUpper(code)
	if s, ok := currencySymbols[code]; ok {
		return s
	}
	return code + " "
}
