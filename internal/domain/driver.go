package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Direction is the effect a driver had on the refund.
type Direction string

const (
	IncreasedRefund Direction = "increased_refund"
	DecreasedRefund Direction = "decreased_refund"
	NoChange        Direction = "no_change"
)

// DirectionOf maps the sign of an impact to a direction. A zero impact is
// NoChange.
func DirectionOf(impact decimal.Decimal) Direction {
	switch impact.Sign() {
	case 1:
		return IncreasedRefund
	case -1:
		return DecreasedRefund
	default:
		return NoChange
	}
}

// InteractionField is the pseudo-field that carries the residual of a decomposition.
const InteractionField = "interaction"

// RefundChangeDriver is one attributed contribution to the change in balance.
type RefundChangeDriver struct {
	Field        string          `json:"field"`
	Label        string          `json:"label"`
	Category     Category        `json:"category"`
	PriorValue   FieldValue      `json:"prior_value"`
	CurrentValue FieldValue      `json:"current_value"`
	Impact       decimal.Decimal `json:"impact_on_balance"`
	Direction    Direction       `json:"direction"`
	Explanation  string          `json:"explanation"`
}

// RefundExplainerResult is the full explanation of how the balance moved between two records.
type RefundExplainerResult struct {
	PriorYear      int                  `json:"prior_year"`
	CurrentYear    int                  `json:"current_year"`
	PriorBalance   BalanceResult        `json:"-"`
	CurrentBalance BalanceResult        `json:"-"`
	TotalChange    decimal.Decimal      `json:"total_change"`
	// Direction is DirectionOf(TotalChange); a balance that did not move is
	// "no_change".
	Direction      Direction            `json:"total_change_direction"`
	Drivers        []RefundChangeDriver `json:"drivers"`
	Narrative      *string              `json:"ai_summary"`
}

// MarshalJSON writes the balances as signed amounts with a separate type field.
func (r RefundExplainerResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		PriorYear          int                  `json:"prior_year"`
		CurrentYear        int                  `json:"current_year"`
		PriorBalance       decimal.Decimal      `json:"prior_balance"`
		PriorBalanceType   BalanceKind          `json:"prior_balance_type"`
		CurrentBalance     decimal.Decimal      `json:"current_balance"`
		CurrentBalanceType BalanceKind          `json:"current_balance_type"`
		TotalChange        decimal.Decimal      `json:"total_change"`
		Direction          Direction            `json:"total_change_direction"`
		Drivers            []RefundChangeDriver `json:"drivers"`
		Narrative          *string              `json:"ai_summary"`
	}
	drivers := r.Drivers
	if drivers == nil {
		drivers = []RefundChangeDriver{}
	}
	return json.Marshal(wire{
		PriorYear:          r.PriorYear,
		CurrentYear:        r.CurrentYear,
		PriorBalance:       r.PriorBalance.Signed(),
		PriorBalanceType:   r.PriorBalance.Kind,
		CurrentBalance:     r.CurrentBalance.Signed(),
		CurrentBalanceType: r.CurrentBalance.Kind,
		TotalChange:        r.TotalChange,
		Direction:          r.Direction,
		Drivers:            drivers,
		Narrative:          r.Narrative,
	})
}

// ImpactSum adds up every driver impact.
func (r RefundExplainerResult) ImpactSum() decimal.Decimal {
	sum := decimal.Zero
	for _, d := range r.Drivers {
		sum = sum.Add(d.Impact)
	}
	return sum
}
