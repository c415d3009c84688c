// Package finance implements FinancialCalculator (spec §2, item 7): exact
// decimal arithmetic primitives so money math never drifts through binary
// floating point, using github.com/shopspring/decimal throughout.
package finance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Add returns a+b at full precision.
func Add(a, b decimal.Decimal) decimal.Decimal { return a.Add(b) }

// Sub returns a-b at full precision.
func Sub(a, b decimal.Decimal) decimal.Decimal { return a.Sub(b) }

// Mul returns a*b at full precision.
func Mul(a, b decimal.Decimal) decimal.Decimal { return a.Mul(b) }

// Div returns a/b rounded to scale decimal places, with halves rounded away
// from zero.
func Div(a, b decimal.Decimal, scale int32) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, fmt.Errorf("finance: division by zero")
	}
	return a.DivRound(b, scale), nil
}

// Sum totals a slice of decimals.
func Sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// ApplyPercentage returns base * (pct/100), e.g. ApplyPercentage(amount, 7.25)
// for a 7.25% tax or fee computation.
func ApplyPercentage(base decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(decimal.NewFromInt(100))
}

// RoundCurrency rounds to 2 decimal places, the convention used everywhere
// a computed amount crosses back into a tool-call parameter.
func RoundCurrency(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Parse parses a decimal string, returning an error for malformed input
// rather than silently truncating — callers should treat this as a
// tool-call-shaped error, not a panic.
func Parse(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// AmortizationSchedule computes level payments for a fixed-rate loan:
// principal amortized over n periods at periodRate per period (e.g.
// monthlyRate = annualRate/12). Returns exactly one payment amount per
// period; the last payment is adjusted so the remaining balance reaches zero,
// absorbing rounding drift.
func AmortizationSchedule(principal decimal.Decimal, periodRate decimal.Decimal, periods int) []decimal.Decimal {
	if periods <= 0 {
		return nil
	}
	if periodRate.IsZero() {
		level := principal.DivRound(decimal.NewFromInt(int64(periods)), 2)
		schedule := make([]decimal.Decimal, periods)
		running := decimal.Zero
		for i := 0; i < periods-1; i++ {
			schedule[i] = level
			running = running.Add(level)
		}
		schedule[periods-1] = RoundCurrency(principal.Sub(running))
		return schedule
	}

	one := decimal.NewFromInt(1)
	factor := one.Add(periodRate).Pow(decimal.NewFromInt(int64(periods)))
	numerator := principal.Mul(periodRate).Mul(factor)
	denominator := factor.Sub(one)
	level := RoundCurrency(numerator.DivRound(denominator, 10))

	schedule := make([]decimal.Decimal, periods)
	balance := principal
	for i := 0; i < periods; i++ {
		interest := RoundCurrency(balance.Mul(periodRate))
		principalPortion := level.Sub(interest)
		if i == periods-1 {
			principalPortion = balance
			schedule[i] = RoundCurrency(principalPortion.Add(interest))
		} else {
			schedule[i] = level
		}
		balance = balance.Sub(principalPortion)
	}
	return schedule
}
