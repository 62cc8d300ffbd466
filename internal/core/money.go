// Package core holds the domain model shared by the obligation ledgers:
// records, settlement states, recurrence arithmetic, amount rules and the
// percentage split configuration.
//
// Amounts are whole minor currency units carried as decimal values so
// that large sums stay exact beyond int64 range.
package core

import (
	"math/big"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// maxAmount is the largest representable amount: 2^127 - 1, the upper bound
// of the signed 128-bit range the persisted cells are encoded in.
var maxAmount = decimal.NewFromBigInt(
	new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1)), 0)

// ValidateAmount enforces the amount rules shared by every ledger: strictly
// positive, integral (no fractional units) and within the signed 128-bit
// range. Returns ErrInvalidAmount otherwise.
func ValidateAmount(d decimal.Decimal) error {
	if d.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !d.IsInteger() {
		return ErrInvalidAmount
	}
	if d.Cmp(maxAmount) > 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateLimit is ValidateAmount relaxed to admit zero: spending limits
// may be zero (a member who can receive but not spend) while obligation
// amounts may not.
func ValidateLimit(d decimal.Decimal) error {
	if d.Sign() < 0 {
		return ErrInvalidAmount
	}
	if !d.IsInteger() {
		return ErrInvalidAmount
	}
	if d.Cmp(maxAmount) > 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount converts a decimal digit string to an amount.
//
// Only unsigned whole-unit values are accepted; signs, separators and
// fractional parts are rejected. The result always satisfies
// ValidateAmount.
//
// Examples:
//
//	ParseAmount("100000000") -> 100000000, nil
//	ParseAmount("-5")        -> ErrInvalidAmount
//	ParseAmount("12.50")     -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseDigits(s)
	if err != nil {
		return decimal.Zero, err
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ParseLimit is ParseAmount relaxed to admit zero, for spending limits.
func ParseLimit(s string) (decimal.Decimal, error) {
	d, err := parseDigits(s)
	if err != nil {
		return decimal.Zero, err
	}
	if err := ValidateLimit(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func parseDigits(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
