// Package money converts between the gateway's integer minor units and the
// decimal major units stored in the local ledger.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MinorPerMajor is the minor-unit scale shared by every supported currency.
const MinorPerMajor = 100

var hundred = decimal.NewFromInt(MinorPerMajor)

// ToMinorUnits converts a major-unit amount into minor units. Amounts with more
// than two fraction digits or a negative sign are rejected rather than rounded.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", amount.String())
	}
	minor := amount.Mul(hundred)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than two fraction digits", amount.String())
	}
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("amount %s out of range", amount.String())
	}
	return minor.IntPart(), nil
}

// ToMajorUnits converts gateway minor units to an exact decimal amount.
func ToMajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
