package currency

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
)

// Pairwise rates, fixed at startup. The table is not guaranteed to be
// symmetric or transitively consistent; conversions always use the direct
// (from, to) entry and nothing else.
var exchangeRates = map[enums.Currency]map[enums.Currency]decimal.Decimal{
	enums.CurrencyUSD: {
		enums.CurrencyINR: decimal.RequireFromString("83.5"),
		enums.CurrencyEUR: decimal.RequireFromString("0.92"),
		enums.CurrencyGBP: decimal.RequireFromString("0.79"),
	},
	enums.CurrencyINR: {
		enums.CurrencyUSD: decimal.RequireFromString("0.012"),
		enums.CurrencyEUR: decimal.RequireFromString("0.011"),
		enums.CurrencyGBP: decimal.RequireFromString("0.0095"),
	},
	enums.CurrencyEUR: {
		enums.CurrencyUSD: decimal.RequireFromString("1.09"),
		enums.CurrencyINR: decimal.RequireFromString("91.0"),
		enums.CurrencyGBP: decimal.RequireFromString("0.86"),
	},
	enums.CurrencyGBP: {
		enums.CurrencyUSD: decimal.RequireFromString("1.27"),
		enums.CurrencyINR: decimal.RequireFromString("105.8"),
		enums.CurrencyEUR: decimal.RequireFromString("1.16"),
	},
}

var currencySymbols = map[enums.Currency]string{
	enums.CurrencyUSD: "$",
	enums.CurrencyINR: "₹",
	enums.CurrencyEUR: "€",
	enums.CurrencyGBP: "£",
}

// UnsupportedConversionError reports a (from, to) pair with no rate entry.
type UnsupportedConversionError struct {
	From enums.Currency
	To   enums.Currency
}

func (e *UnsupportedConversionError) Error() string {
	return fmt.Sprintf("currency conversion not supported: %s to %s", e.From, e.To)
}

// Rate returns the exchange rate between two currencies.
func Rate(from, to enums.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	rates, ok := exchangeRates[from]
	if !ok {
		return decimal.Zero, &UnsupportedConversionError{From: from, To: to}
	}
	rate, ok := rates[to]
	if !ok {
		return decimal.Zero, &UnsupportedConversionError{From: from, To: to}
	}
	return rate, nil
}

// Convert converts an amount between currencies. The identity case returns
// the amount untouched so the common path never accumulates rounding noise.
func Convert(amount decimal.Decimal, from, to enums.Currency) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, err := Rate(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// MinorUnits converts a major-unit amount to integer minor units
// (e.g. rupees to paise) with half-away-from-zero rounding.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts integer minor units back to a major-unit amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}

// Format renders an amount as a 2-decimal string prefixed with the currency
// symbol, falling back to the currency code when no symbol is known.
func Format(amount decimal.Decimal, cur enums.Currency) string {
	symbol, ok := currencySymbols[cur]
	if !ok {
		symbol = string(cur)
	}
	return symbol + amount.StringFixed(2)
}
