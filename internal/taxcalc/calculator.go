// Package taxcalc defines the tax calculator contract the explainer depends on,
// together with an in-process federal reference implementation.
package taxcalc

import (
	"context"

	"github.com/dvloznov/refund-explainer/internal/domain"
)

// Calculator computes the refund or balance due for a single record.
// Implementations must be pure with respect to the record.
type Calculator interface {
	Calculate(ctx context.Context, r domain.TaxRecord) (domain.BalanceResult, error)
}

// CalculatorFunc adapts a function to the Calculator interface.
type CalculatorFunc func(ctx context.Context, r domain.TaxRecord) (domain.BalanceResult, error)

func (f CalculatorFunc) Calculate(ctx context.Context, r domain.TaxRecord) (domain.BalanceResult, error) {
	return f(ctx, r)
}
