// Package budget holds the balance arithmetic shared by the preview endpoint
// and the authoritative consume/release operations.
package budget

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBudget = errors.New("insufficient remaining budget")
	ErrBalanceChanged     = errors.New("remaining balance changed since preview")
	ErrNonPositiveAmount  = errors.New("amount must be positive")
	ErrOverRelease        = errors.New("release exceeds granted budget")
)

// Preview is the display-only remaining balance of a parent budget while a
// Regular visa is being filled in.
type Preview struct {
	Selected    decimal.Decimal
	SKURows     []decimal.Decimal
	AccountRows []decimal.Decimal
	Flat        string
}

// Result is what clients render; Negative drives the warning colour.
type Result struct {
	Selected  decimal.Decimal `json:"selected"`
	Allocated decimal.Decimal `json:"allocated"`
	Remaining decimal.Decimal `json:"remaining"`
	Negative  bool            `json:"negative"`
}

// Amounts are stored as NUMERIC(18,2).
const Scale = 2

// MaxAmount is the largest value the amount columns hold.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// ParseAmount reads a user typed amount. Blank or unparsable input counts as zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func Sum(rows []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r)
	}
	return total
}

// Allocated is everything the draft takes from the selected balance.
func (p Preview) Allocated() decimal.Decimal {
	return Sum(p.SKURows).Add(Sum(p.AccountRows)).Add(ParseAmount(p.Flat))
}

func (p Preview) Remaining() decimal.Decimal {
	return p.Selected.Sub(p.Allocated())
}

func (p Preview) Negative() bool {
	return p.Remaining().IsNegative()
}

func (p Preview) Result() Result {
	return Result{
		Selected:  p.Selected,
		Allocated: p.Allocated(),
		Remaining: p.Remaining(),
		Negative:  p.Negative(),
	}
}

// Consume returns the balance left after taking amount from current.
// expected, when non-nil, must equal current: it is the balance the caller
// based its decision on.
func Consume(current, amount decimal.Decimal, expected *decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return current, ErrNonPositiveAmount
	}
	if expected != nil && !expected.Equal(current) {
		return current, ErrBalanceChanged
	}
	if amount.GreaterThan(current) {
		return current, ErrInsufficientBudget
	}
	return current.Sub(amount), nil
}

// Release returns amount to current without exceeding granted.
func Release(current, amount, granted decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return current, ErrNonPositiveAmount
	}
	next := current.Add(amount)
	if next.GreaterThan(granted) {
		return current, ErrOverRelease
	}
	return next, nil
}
