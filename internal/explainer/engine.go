// Package explainer attributes the change in a filer's refund between two
// records to the individual fields that changed.
//
// The walk is path-dependent: fields are swapped from the prior to the current
// value one at a time, in category order, and each swap is credited with the
// marginal change in balance it causes. Whatever the walk cannot attribute,
// such as tax-rule differences between years, is reported as a single
// interaction driver so the drivers always sum to the total change.
package explainer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/dvloznov/refund-explainer/internal/logger"
	"github.com/dvloznov/refund-explainer/internal/narrative"
	"github.com/dvloznov/refund-explainer/internal/taxcalc"
	"github.com/shopspring/decimal"
)

// Engine decomposes balance changes. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	calc     taxcalc.Calculator
	composer narrative.Composer
}

// NewEngine creates an engine. A nil composer disables summaries.
func NewEngine(calc taxcalc.Calculator, composer narrative.Composer) *Engine {
	if composer == nil {
		composer = narrative.Noop{}
	}
	return &Engine{calc: calc, composer: composer}
}

// Explain computes both baseline balances, decomposes the change and asks the
// composer for a summary when there is anything to summarize.
func (e *Engine) Explain(ctx context.Context, prior, current domain.TaxRecord) (domain.RefundExplainerResult, error) {
	log := logger.FromContext(ctx)

	if err := validateRecords(prior, current); err != nil {
		return domain.RefundExplainerResult{}, err
	}

	priorBalance, err := e.calculate(ctx, "prior", prior)
	if err != nil {
		return domain.RefundExplainerResult{}, err
	}
	currentBalance, err := e.calculate(ctx, "current", current)
	if err != nil {
		return domain.RefundExplainerResult{}, err
	}

	result, err := e.Decompose(ctx, prior, current, priorBalance, currentBalance)
	if err != nil {
		return domain.RefundExplainerResult{}, err
	}

	if len(result.Drivers) > 0 {
		summary, err := e.composer.Summarize(ctx, result)
		switch {
		case err == nil:
			result.Narrative = &summary
		case errors.Is(err, narrative.ErrDisabled):
		default:
			log.Warn().Err(err).Msg("Narrative summary unavailable")
		}
	}

	log.Debug().
		Int("prior_year", result.PriorYear).
		Int("current_year", result.CurrentYear).
		Str("total_change", result.TotalChange.String()).
		Int("drivers", len(result.Drivers)).
		Msg("Explained refund change")

	return result, nil
}

// Decompose attributes currentBalance - priorBalance to the fields that differ
// between prior and current. Both balances must have been computed by the
// engine's calculator for exactly these records.
func (e *Engine) Decompose(ctx context.Context, prior, current domain.TaxRecord, priorBalance, currentBalance domain.BalanceResult) (domain.RefundExplainerResult, error) {
	if err := validateRecords(prior, current); err != nil {
		return domain.RefundExplainerResult{}, err
	}
	if err := priorBalance.Validate(); err != nil {
		return domain.RefundExplainerResult{}, &domain.CalculationError{Stage: "prior", Err: err}
	}
	if err := currentBalance.Validate(); err != nil {
		return domain.RefundExplainerResult{}, &domain.CalculationError{Stage: "current", Err: err}
	}

	total := currentBalance.Signed().Sub(priorBalance.Signed())
	working := prior
	workingSigned := priorBalance.Signed()
	drivers := []domain.RefundChangeDriver{}

	for _, category := range domain.Categories {
		for _, f := range domain.FieldsIn(category) {
			pv, cv := f.Get(prior), f.Get(current)
			if pv.Equal(cv) {
				continue
			}

			working = f.Apply(working, cv)
			next, err := e.calculate(ctx, string(category)+":"+f.Name, working)
			if err != nil {
				return domain.RefundExplainerResult{}, err
			}

			impact := next.Signed().Sub(workingSigned)
			workingSigned = next.Signed()
			if impact.IsZero() {
				continue
			}

			drivers = append(drivers, domain.RefundChangeDriver{
				Field:        f.Name,
				Label:        f.Label,
				Category:     category,
				PriorValue:   pv,
				CurrentValue: cv,
				Impact:       impact,
				Direction:    domain.DirectionOf(impact),
				Explanation:  describeField(f, pv, cv, impact),
			})
		}
	}

	attributed := decimal.Zero
	for _, d := range drivers {
		attributed = attributed.Add(d.Impact)
	}
	if residual := total.Sub(attributed); !residual.IsZero() {
		drivers = append(drivers, domain.RefundChangeDriver{
			Field:        domain.InteractionField,
			Label:        "interaction effects",
			Category:     domain.CategoryInteraction,
			PriorValue:   domain.NullValue,
			CurrentValue: domain.NullValue,
			Impact:       residual,
			Direction:    domain.DirectionOf(residual),
			Explanation:  describeInteraction(residual, prior.TaxYear, current.TaxYear),
		})
	}

	SortDrivers(drivers)

	return domain.RefundExplainerResult{
		PriorYear:      prior.TaxYear,
		CurrentYear:    current.TaxYear,
		PriorBalance:   priorBalance,
		CurrentBalance: currentBalance,
		TotalChange:    total,
		Direction:      domain.DirectionOf(total),
		Drivers:        drivers,
	}, nil
}

// SortDrivers orders by absolute impact, largest first; ties go to category
// order, then field name.
func SortDrivers(drivers []domain.RefundChangeDriver) {
	sort.SliceStable(drivers, func(i, j int) bool {
		a, b := drivers[i], drivers[j]
		if c := a.Impact.Abs().Cmp(b.Impact.Abs()); c != 0 {
			return c > 0
		}
		if a.Category.Rank() != b.Category.Rank() {
			return a.Category.Rank() < b.Category.Rank()
		}
		return a.Field < b.Field
	})
}

// validateRecords reports the field errors of both records together, named
// prior_data.* and current_data.*.
func validateRecords(prior, current domain.TaxRecord) error {
	var out domain.ValidationError
	for _, rec := range []struct {
		prefix string
		record domain.TaxRecord
	}{{"prior_data", prior}, {"current_data", current}} {
		var verr *domain.ValidationError
		if errors.As(rec.record.Validate(), &verr) {
			out.Fields = append(out.Fields, verr.Prefix(rec.prefix).Fields...)
		}
	}
	return out.OrNil()
}

func (e *Engine) calculate(ctx context.Context, stage string, r domain.TaxRecord) (domain.BalanceResult, error) {
	res, err := e.calc.Calculate(ctx, r)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("stage", stage).Msg("Tax calculation failed")
		return domain.BalanceResult{}, &domain.CalculationError{Stage: stage, Err: err}
	}
	if err := res.Validate(); err != nil {
		return domain.BalanceResult{}, &domain.CalculationError{Stage: stage, Err: fmt.Errorf("invalid result: %w", err)}
	}
	return res, nil
}
