package types

import (
	"strings"

	zerrors "github.com/mezonai/zakat/errors"
	"github.com/shopspring/decimal"
)

// DefaultLevyRate is the obligatory 2.5% assessment.
var DefaultLevyRate = decimal.RequireFromString("0.025")

// Bounds on the representation of an amount accepted from outside. Exact
// arithmetic cost grows with scale and magnitude, and it runs under the
// ledger lock.
const (
	MaxAmountScale         = 18
	MaxAmountIntegerDigits = 30
	// Derived values (levies, balances, totals) add up scales and
	// magnitudes, so they get looser bounds.
	MaxDerivedScale         = 1024
	MaxDerivedIntegerDigits = 64
)

// ParseAmount parses a decimal amount such as "97.5" or "1_000". Underscores
// are accepted as digit separators like the transfer CLI does.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), "_", ""))
	if err != nil {
		return decimal.Zero, zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "could not parse amount %q: %v", raw, err)
	}
	if err := CheckPrecision(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckPrecision rejects amounts with more than MaxAmountScale fractional
// digits or more than MaxAmountIntegerDigits integer digits.
func CheckPrecision(d decimal.Decimal) error {
	return checkBounds(d, MaxAmountScale, MaxAmountIntegerDigits)
}

// CheckDerivedPrecision is CheckPrecision for computed levies and balances.
func CheckDerivedPrecision(d decimal.Decimal) error {
	return checkBounds(d, MaxDerivedScale, MaxDerivedIntegerDigits)
}

func checkBounds(d decimal.Decimal, maxScale, maxIntDigits int64) error {
	exp := int64(d.Exponent())
	if exp < -maxScale {
		return zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "amount has %d decimal places, at most %d allowed", -exp, maxScale)
	}
	if int64(d.NumDigits())+exp > maxIntDigits {
		return zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "amount exceeds %d integer digits", maxIntDigits)
	}
	return nil
}

// RequirePositive returns ErrInvalidAmount unless d > 0 and d passes
// CheckPrecision.
func RequirePositive(d decimal.Decimal) error {
	if err := CheckPrecision(d); err != nil {
		return err
	}
	if !d.IsPositive() {
		return zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "amount must be positive, got %s", d)
	}
	return nil
}

// Levy computes rate * base exactly.
func Levy(base, rate decimal.Decimal) decimal.Decimal {
	return base.Mul(rate)
}
