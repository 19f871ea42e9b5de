package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceKind says whether the filer is due a refund or owes tax.
type BalanceKind string

const (
	BalanceRefund BalanceKind = "refund"
	BalanceOwe    BalanceKind = "owe"
)

// BalanceResult is the calculator's outcome for one record.
type BalanceResult struct {
	Amount decimal.Decimal `json:"amount"`
	Kind   BalanceKind     `json:"kind"`
}

// BalanceFromSigned builds a result from a signed amount; zero is a zero refund.
func BalanceFromSigned(signed decimal.Decimal) BalanceResult {
	if signed.IsNegative() {
		return BalanceResult{Amount: signed.Neg(), Kind: BalanceOwe}
	}
	return BalanceResult{Amount: signed, Kind: BalanceRefund}
}

// Signed is positive for a refund and negative for an amount owed.
func (b BalanceResult) Signed() decimal.Decimal {
	if b.Kind == BalanceOwe {
		return b.Amount.Neg()
	}
	return b.Amount
}

// Validate rejects negative amounts and unknown kinds.
func (b BalanceResult) Validate() error {
	if b.Amount.IsNegative() {
		return fmt.Errorf("balance amount %s is negative", b.Amount)
	}
	if b.Kind != BalanceRefund && b.Kind != BalanceOwe {
		return fmt.Errorf("unknown balance kind %q", b.Kind)
	}
	return nil
}
