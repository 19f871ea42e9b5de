// Package narrative turns an explanation into a short plain-English summary.
// A summary is optional: callers treat any error as "no summary".
package narrative

import (
	"context"

	"github.com/dvloznov/refund-explainer/internal/domain"
)

// Composer writes a prose summary of an explanation.
type Composer interface {
	Summarize(ctx context.Context, result domain.RefundExplainerResult) (string, error)
}

// Noop never produces a summary.
type Noop struct{}

func (Noop) Summarize(ctx context.Context, result domain.RefundExplainerResult) (string, error) {
	return "", ErrDisabled
}
