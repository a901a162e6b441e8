package cbgains

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money arithmetic and conversion failure modes. Mixing currencies silently
// would corrupt totals, so there is no default behaviour to fall back to.
var (
	ErrCurrencyMismatch      = errors.New("currency mismatch")
	ErrUnsupportedConversion = errors.New("unsupported currency conversion")
	ErrRateUnavailable       = errors.New("exchange rate unavailable")
)

// Money represents a monetary value tagged with its currency.
// It is a pure value: operations return new Money, never mutate.
type Money struct {
	value decimal.Decimal // as major unit value
	cur   string
}

func M[T float32 | float64 | int | int32 | int64 | uint | uint32 | uint64 | decimal.Decimal](value T, currency string) Money {
	return Money{value: newDecimal(value), cur: currency}
}

// USD is shorthand for M(value, "USD").
func USD[T float32 | float64 | int | int32 | int64 | uint | uint32 | uint64 | decimal.Decimal](value T) Money {
	return M(value, "USD")
}

// EUR is shorthand for M(value, "EUR").
func EUR[T float32 | float64 | int | int32 | int64 | uint | uint32 | uint64 | decimal.Decimal](value T) Money {
	return M(value, "EUR")
}

// currency returns the money's currency metadata.
func (m Money) currency() money.Currency {
	// to get a never nil currency I need to call the Money constructor
	return *money.New(0, m.cur).Currency()
}

func (m Money) Currency() string     { return m.cur }
func (m Money) Amount() decimal.Decimal { return m.value }
func (m Money) Equal(n Money) bool   { return m.value.Equal(n.value) && m.cur == n.cur }
func (m Money) IsZero() bool         { return m.value.IsZero() }
func (m Money) IsPositive() bool     { return m.value.IsPositive() }
func (m Money) IsNegative() bool     { return m.value.IsNegative() }
func (m Money) Neg() Money           { return Money{value: m.value.Neg(), cur: m.cur} }
func (m Money) Abs() Money           { return Money{value: m.value.Abs(), cur: m.cur} }

// Mul scales the amount by a quantity, preserving the currency.
func (m Money) Mul(q Quantity) Money { return Money{value: m.value.Mul(q.value), cur: m.cur} }

// Div divides the amount by a quantity, preserving the currency.
func (m Money) Div(q Quantity) Money { return Money{value: m.value.Div(q.value), cur: m.cur} }

// Add returns m+n. The zero Money is a universal additive identity; any
// other currency mismatch fails with ErrCurrencyMismatch.
func (m Money) Add(n Money) (Money, error) {
	cur, err := sameCurrency(m, n)
	if err != nil {
		return Money{}, err
	}
	return Money{value: m.value.Add(n.value), cur: cur}, nil
}

// Sub returns m-n, failing with ErrCurrencyMismatch like Add.
func (m Money) Sub(n Money) (Money, error) {
	cur, err := sameCurrency(m, n)
	if err != nil {
		return Money{}, err
	}
	return Money{value: m.value.Sub(n.value), cur: cur}, nil
}

// sameCurrency resolves the currency of a binary operation.
// The "" currency is totally weak so that the zero Money works as an accumulator seed.
func sameCurrency(a, b Money) (string, error) {
	if a.cur == "" {
		return b.cur, nil
	}
	if b.cur == "" {
		return a.cur, nil
	}
	if a.cur != b.cur {
		return "", fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, a.cur, b.cur)
	}
	return a.cur, nil
}

// Convert returns the value of m in target currency on a given day.
// An empty target defaults to the provider's currency. Supported pairings:
//
//   - same currency: identity, no rate lookup,
//   - USD to the provider's currency: multiply by the day's rate,
//   - the provider's currency to USD: divide by the day's rate.
//
// Anything else fails with ErrUnsupportedConversion; a day without a rate
// fails with ErrRateUnavailable.
func (m Money) Convert(on Date, rates RateProvider, target string) (Money, error) {
	if target == "" {
		target = rates.TargetCurrency()
	}
	if m.cur == target {
		return m, nil
	}
	rate, ok := rates.RateForDate(on)
	if !ok {
		return Money{}, fmt.Errorf("%w: %s on %s", ErrRateUnavailable, target, on)
	}
	if m.cur == "USD" && target == rates.TargetCurrency() {
		return Money{value: m.value.Mul(rate), cur: target}, nil
	}
	if target == "USD" && m.cur == rates.TargetCurrency() {
		return Money{value: m.value.Div(rate), cur: target}, nil
	}
	return Money{}, fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, m.cur, target)
}

// String renders the amount rounded to the currency's minor unit, with its
// symbol. An exact zero renders as "": there is nothing to show, and
// reporting relies on blank cells to suppress noise rows.
func (m Money) String() string {
	if m.value.IsZero() {
		return ""
	}
	cur := m.currency()
	return m.Fixed(int32(cur.Fraction))
}

// Fixed renders the amount with a fixed number of decimal digits and the
// currency symbol. Zero renders as "", like String.
func (m Money) Fixed(digits int32) string {
	if m.value.IsZero() {
		return ""
	}
	cur := m.currency()
	grapheme := cur.Grapheme
	if grapheme == "" {
		grapheme = m.cur
	}
	return m.value.StringFixed(digits) + grapheme
}

// SignedString is like String but with an explicit sign, and "-" for zero.
func (m Money) SignedString() string {
	if m.value.IsZero() {
		return "-"
	}
	if m.value.IsPositive() {
		return "+" + m.String()
	}
	return m.String()
}

// MarshalJSON implements the json.Marshaler interface for Money.
func (m Money) MarshalJSON() ([]byte, error) {
	var v = struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency,omitempty"`
	}{Amount: m.value, Currency: m.cur}
	return json.Marshal(v)
}
