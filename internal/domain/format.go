package domain

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatDollars renders the magnitude of d rounded to whole dollars, as in "$12,400".
func FormatDollars(d decimal.Decimal) string {
	return "$" + humanize.Comma(d.Abs().Round(0).IntPart())
}

// Describe renders a balance for prose, as in "refund of $1,200" or "owed $300".
func (b BalanceResult) Describe() string {
	if b.Kind == BalanceOwe {
		return "owed " + FormatDollars(b.Amount)
	}
	return "refund of " + FormatDollars(b.Amount)
}
