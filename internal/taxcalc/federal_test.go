package taxcalc

import (
	"context"
	"testing"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/shopspring/decimal"
)

func record(year int, mutate func(r *domain.TaxRecord)) domain.TaxRecord {
	r := domain.DefaultRecord(year)
	r.Wages = decimal.NewFromInt(70000)
	r.W2Withholding = decimal.NewFromInt(11000)
	if mutate != nil {
		mutate(&r)
	}
	return r
}

func TestFederal_Calculate(t *testing.T) {
	tests := []struct {
		name       string
		record     domain.TaxRecord
		wantAmount int64
		wantKind   domain.BalanceKind
	}{
		{
			name:       "single 2024 standard deduction",
			record:     record(2024, nil),
			wantAmount: 3759,
			wantKind:   domain.BalanceRefund,
		},
		{
			name:       "single 2023 rounds half away from zero",
			record:     record(2023, nil),
			wantAmount: 3340,
			wantKind:   domain.BalanceRefund,
		},
		{
			name: "one dependent gets the child credit",
			record: record(2024, func(r *domain.TaxRecord) {
				r.DependentsCount = 1
			}),
			wantAmount: 5759,
			wantKind:   domain.BalanceRefund,
		},
		{
			name: "capital loss limited to 3000",
			record: record(2024, func(r *domain.TaxRecord) {
				r.CapitalGainOrLoss = decimal.NewFromInt(-10000)
			}),
			wantAmount: 4419,
			wantKind:   domain.BalanceRefund,
		},
		{
			name: "no withholding owes",
			record: record(2024, func(r *domain.TaxRecord) {
				r.W2Withholding = decimal.Zero
			}),
			wantAmount: 7241,
			wantKind:   domain.BalanceOwe,
		},
		{
			name: "years past the table use the latest rules",
			record: record(2030, func(r *domain.TaxRecord) {
				r.Wages = decimal.Zero
				r.W2Withholding = decimal.NewFromInt(500)
			}),
			wantAmount: 500,
			wantKind:   domain.BalanceRefund,
		},
	}

	calc := NewFederal()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Calculate(context.Background(), tt.record)
			if err != nil {
				t.Fatalf("Calculate failed: %v", err)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, got.Kind)
			}
			if !got.Amount.Equal(decimal.NewFromInt(tt.wantAmount)) {
				t.Errorf("Expected amount %d, got %s", tt.wantAmount, got.Amount)
			}
		})
	}
}

func TestFederal_Compute_ItemizedDeduction(t *testing.T) {
	r := record(2024, func(r *domain.TaxRecord) {
		d := decimal.NewFromInt(25000)
		r.TotalDeductions = &d
		r.DeductionType = domain.DeductionItemized
	})

	b := NewFederal().Compute(r)
	if !b.Deduction.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("Expected itemized deduction 25000, got %s", b.Deduction)
	}
	if !b.TaxableIncome.Equal(decimal.NewFromInt(45000)) {
		t.Errorf("Expected taxable income 45000, got %s", b.TaxableIncome)
	}
	if b.RulesYear != 2024 {
		t.Errorf("Expected rules year 2024, got %d", b.RulesYear)
	}
}

func TestFederal_Compute_MarriedJointlyWiderBrackets(t *testing.T) {
	single := NewFederal().Compute(record(2024, nil))
	joint := NewFederal().Compute(record(2024, func(r *domain.TaxRecord) {
		r.FilingStatus = domain.FilingMarriedJointly
	}))

	if !joint.TotalTax.LessThan(single.TotalTax) {
		t.Errorf("Expected MFJ tax %s to be below single tax %s", joint.TotalTax, single.TotalTax)
	}
}

func TestFederal_Calculate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewFederal().Calculate(ctx, record(2024, nil)); err == nil {
		t.Error("Expected error for canceled context")
	}
}
