package explainer

import (
	"fmt"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/shopspring/decimal"
)

func verb(d decimal.Decimal) string {
	if d.IsNegative() {
		return "decreased"
	}
	return "increased"
}

// displayValue renders a field value for prose. Null deductions read as the
// standard deduction.
func displayValue(v domain.FieldValue) string {
	switch {
	case v.Null:
		return "the standard deduction"
	case v.Kind == domain.KindEnum:
		return "'" + v.Str + "'"
	case v.Kind == domain.KindCount:
		return v.Num.String()
	default:
		return domain.FormatDollars(v.Num)
	}
}

func signedDollars(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + domain.FormatDollars(d)
	}
	return domain.FormatDollars(d)
}

func describeField(f domain.Field, prior, current domain.FieldValue, impact decimal.Decimal) string {
	effect := fmt.Sprintf("which %s your refund by ~%s.", verb(impact), domain.FormatDollars(impact))

	if !prior.IsNumeric() || prior.Null || current.Null {
		return fmt.Sprintf("Your %s changed from %s to %s, %s",
			f.Label, displayValue(prior), displayValue(current), effect)
	}

	delta := current.Num.Sub(prior.Num)
	amount := domain.FormatDollars(delta)
	from, to := displayValue(prior), displayValue(current)
	if f.Kind == domain.KindCount {
		amount = delta.Abs().String()
	} else if f.Signed {
		from, to = signedDollars(prior.Num), signedDollars(current.Num)
	}

	return fmt.Sprintf("Your %s %s by %s (from %s to %s), %s",
		f.Label, verb(delta), amount, from, to, effect)
}

func describeInteraction(residual decimal.Decimal, priorYear, currentYear int) string {
	action := "added"
	prep := "to"
	if residual.IsNegative() {
		action, prep = "subtracted", "from"
	}
	if priorYear != currentYear {
		return fmt.Sprintf("Combined interaction of multiple changes and tax-rule differences between %d and %d %s ~%s %s your refund.",
			priorYear, currentYear, action, domain.FormatDollars(residual), prep)
	}
	return fmt.Sprintf("Combined interaction of multiple changes %s ~%s %s your refund.",
		action, domain.FormatDollars(residual), prep)
}
