package money

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
)

// Scale is the number of fractional digits every amount is rounded to.
const Scale = 2

// Money is a non-negative amount with two fractional digits.
// The zero value is a valid zero amount.
type Money struct {
	amount decimal.Decimal
}

var Zero = Money{}

func New(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, apperror.Validation("money.New", "amount must not be negative: %s", d.String())
	}
	return Money{amount: d.Round(Scale)}, nil
}

func Of(v float64) (Money, error) {
	return New(decimal.NewFromFloat(v))
}

func FromInt(v int64) (Money, error) {
	return New(decimal.NewFromInt(v))
}

func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, apperror.Validation("money.Parse", "invalid amount %q", s)
	}
	return New(d)
}

// MustParse is for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money {
	return Money{amount: m.amount.Add(o.amount).Round(Scale)}
}

func (m Money) Subtract(o Money) (Money, error) {
	diff := m.amount.Sub(o.amount)
	if diff.IsNegative() {
		return Money{}, apperror.Validation("money.Subtract", "%s - %s would be negative", m, o)
	}
	return Money{amount: diff.Round(Scale)}, nil
}

func (m Money) Multiply(n int) (Money, error) {
	if n < 0 {
		return Money{}, apperror.Validation("money.Multiply", "multiplier must not be negative: %d", n)
	}
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(n))).Round(Scale)}, nil
}

// Equal compares by value, so 100.0 equals 100.00.
func (m Money) Equal(o Money) bool {
	return m.amount.Equal(o.amount)
}

func (m Money) Cmp(o Money) int {
	return m.amount.Cmp(o.amount)
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// Key is a canonical representation usable as a map key.
func (m Money) Key() string {
	return m.amount.StringFixed(Scale)
}

func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

func (m Money) String() string {
	return m.amount.StringFixed(Scale)
}

func Sum(items ...Money) Money {
	total := Zero
	for _, m := range items {
		total = total.Add(m)
	}
	return total
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(b []byte) error {
	raw := string(bytes.Trim(b, `"`))
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
