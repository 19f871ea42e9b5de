package taxcalc

import (
	"context"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/shopspring/decimal"
)

var rates = []decimal.Decimal{
	decimal.RequireFromString("0.10"),
	decimal.RequireFromString("0.12"),
	decimal.RequireFromString("0.22"),
	decimal.RequireFromString("0.24"),
	decimal.RequireFromString("0.32"),
	decimal.RequireFromString("0.35"),
	decimal.RequireFromString("0.37"),
}

// yearRules holds the federal parameters for one tax year. Bracket ceilings
// apply to the first six rates; the top rate is unbounded.
type yearRules struct {
	brackets          map[domain.FilingStatus][6]int64
	standardDeduction map[domain.FilingStatus]int64
	childCredit       int64
}

var rulesByYear = map[int]yearRules{
	2023: {
		brackets: map[domain.FilingStatus][6]int64{
			domain.FilingSingle:            {11000, 44725, 95375, 182100, 231250, 578125},
			domain.FilingMarriedJointly:    {22000, 89450, 190750, 364200, 462500, 693750},
			domain.FilingHeadOfHousehold:   {15700, 59850, 95350, 182100, 231250, 578100},
			domain.FilingMarriedSeparately: {11000, 44725, 95375, 182100, 231250, 346875},
		},
		standardDeduction: map[domain.FilingStatus]int64{
			domain.FilingSingle:            13850,
			domain.FilingMarriedJointly:    27700,
			domain.FilingHeadOfHousehold:   20800,
			domain.FilingMarriedSeparately: 13850,
		},
		childCredit: 2000,
	},
	2024: {
		brackets: map[domain.FilingStatus][6]int64{
			domain.FilingSingle:            {11600, 47150, 100525, 191950, 243725, 609350},
			domain.FilingMarriedJointly:    {23200, 94300, 201050, 383900, 487450, 731200},
			domain.FilingHeadOfHousehold:   {16550, 63100, 100500, 191950, 243700, 609350},
			domain.FilingMarriedSeparately: {11600, 47150, 100525, 191950, 243725, 365600},
		},
		standardDeduction: map[domain.FilingStatus]int64{
			domain.FilingSingle:            14600,
			domain.FilingMarriedJointly:    29200,
			domain.FilingHeadOfHousehold:   21900,
			domain.FilingMarriedSeparately: 14600,
		},
		childCredit: 2000,
	},
	2025: {
		brackets: map[domain.FilingStatus][6]int64{
			domain.FilingSingle:            {11925, 48475, 103350, 197300, 250525, 626350},
			domain.FilingMarriedJointly:    {23850, 96950, 206700, 394600, 501050, 751600},
			domain.FilingHeadOfHousehold:   {17000, 64850, 103350, 197300, 250500, 626350},
			domain.FilingMarriedSeparately: {11925, 48475, 103350, 197300, 250525, 375800},
		},
		standardDeduction: map[domain.FilingStatus]int64{
			domain.FilingSingle:            15750,
			domain.FilingMarriedJointly:    31500,
			domain.FilingHeadOfHousehold:   23625,
			domain.FilingMarriedSeparately: 15750,
		},
		childCredit: 2200,
	},
}

const (
	firstRulesYear = 2023
	lastRulesYear  = 2025
)

var capitalLossLimit = decimal.NewFromInt(-3000)

// Breakdown is the intermediate result of a federal calculation.
type Breakdown struct {
	TotalIncome   decimal.Decimal `json:"total_income"`
	AGI           decimal.Decimal `json:"agi"`
	Deduction     decimal.Decimal `json:"deduction"`
	TaxableIncome decimal.Decimal `json:"taxable_income"`
	IncomeTax     decimal.Decimal `json:"income_tax"`
	Credits       decimal.Decimal `json:"credits"`
	OtherTaxes    decimal.Decimal `json:"other_taxes"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	TotalPayments decimal.Decimal `json:"total_payments"`
	Balance       decimal.Decimal `json:"balance"`
	RulesYear     int             `json:"rules_year"`
}

// Federal is a simplified Form 1040 calculator for tax years 2023 to 2025.
// Years outside that range use the nearest supported year's parameters.
type Federal struct{}

// NewFederal returns the reference calculator.
func NewFederal() *Federal {
	return &Federal{}
}

func (f *Federal) Calculate(ctx context.Context, r domain.TaxRecord) (domain.BalanceResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.BalanceResult{}, err
	}
	b := f.Compute(r)
	return domain.BalanceFromSigned(b.Balance), nil
}

// Compute runs the full calculation. The balance is rounded to whole dollars.
func (f *Federal) Compute(r domain.TaxRecord) Breakdown {
	year := r.TaxYear
	if year < firstRulesYear {
		year = firstRulesYear
	}
	if year > lastRulesYear {
		year = lastRulesYear
	}
	rules := rulesByYear[year]

	capital := decimal.Max(r.CapitalGainOrLoss, capitalLossLimit)
	income := r.Wages.
		Add(r.Schedule1Income).
		Add(r.OtherIncome).
		Add(r.TaxableInterest).
		Add(r.OrdinaryDividends).
		Add(capital)
	agi := decimal.Max(income, decimal.Zero)

	deduction := decimal.NewFromInt(rules.standardDeduction[r.FilingStatus])
	if r.TotalDeductions != nil {
		deduction = *r.TotalDeductions
	}
	taxable := decimal.Max(agi.Sub(deduction).Sub(r.QBIDeduction), decimal.Zero)

	tax := bracketTax(taxable, rules.brackets[r.FilingStatus])

	childCredit := r.ChildTaxCredit
	if !childCredit.IsPositive() {
		childCredit = decimal.NewFromInt(int64(r.DependentsCount) * rules.childCredit)
	}
	credits := childCredit.Add(r.Schedule3Total)
	afterCredits := decimal.Max(tax.Sub(credits), decimal.Zero)

	other := r.SelfEmploymentTax.Add(r.Schedule2Total)
	total := afterCredits.Add(other)
	payments := r.W2Withholding.Add(r.Withholding1099).Add(r.EstimatedTaxPayments)

	return Breakdown{
		TotalIncome:   income,
		AGI:           agi,
		Deduction:     deduction,
		TaxableIncome: taxable,
		IncomeTax:     tax,
		Credits:       credits,
		OtherTaxes:    other,
		TotalTax:      total,
		TotalPayments: payments,
		Balance:       payments.Sub(total).Round(0),
		RulesYear:     year,
	}
}

func bracketTax(taxable decimal.Decimal, ceilings [6]int64) decimal.Decimal {
	tax := decimal.Zero
	floor := decimal.Zero
	for i, rate := range rates {
		if !taxable.GreaterThan(floor) {
			break
		}
		top := taxable
		if i < len(ceilings) {
			top = decimal.Min(taxable, decimal.NewFromInt(ceilings[i]))
		}
		tax = tax.Add(top.Sub(floor).Mul(rate))
		if i < len(ceilings) {
			floor = decimal.NewFromInt(ceilings[i])
		}
	}
	return tax
}
