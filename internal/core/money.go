// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals so that installment splits and wallet
// deltas add up exactly.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MaxTransactionValue is the largest value a single transaction may carry.
var MaxTransactionValue = decimal.NewFromInt(999_999_999)

// BalanceEpsilon is the tolerance under which stored and recomputed wallet
// balances are considered equal.
var BalanceEpsilon = decimal.New(1, -3)

// Signed returns +value for income and -value for expense.
func Signed(value decimal.Decimal, t TransactionType) decimal.Decimal {
	if t == Expense {
		return value.Neg()
	}
	return value
}

// ParseAmount converts a user supplied amount to a decimal.
//
// It accepts dot (12.34) and comma (12,34) decimal separators. When both are
// present the last one is the decimal separator and the other groups
// thousands, so "1.234,56" and "1,234.56" both parse to 1234.56.
// Negative, zero and malformed amounts return ErrInvalidAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidAmount
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with a fixed number of decimals.
func FormatAmount(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

// SumSigned adds the signed values of the given transactions.
func SumSigned(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Signed())
	}
	return total
}
