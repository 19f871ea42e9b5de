package explainer

import (
	"testing"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/shopspring/decimal"
)

func field(t *testing.T, name string) domain.Field {
	t.Helper()
	f, ok := domain.LookupField(name)
	if !ok {
		t.Fatalf("unknown field %s", name)
	}
	return f
}

func TestDescribeField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		prior   domain.FieldValue
		current domain.FieldValue
		impact  int64
		want    string
	}{
		{
			name:    "money decrease",
			field:   "w2_withholding",
			prior:   domain.MoneyInt(11000),
			current: domain.MoneyInt(9500),
			impact:  -1500,
			want:    "Your W-2 withholding decreased by $1,500 (from $11,000 to $9,500), which decreased your refund by ~$1,500.",
		},
		{
			name:    "count",
			field:   "dependents_count",
			prior:   domain.Count(0),
			current: domain.Count(2),
			impact:  4000,
			want:    "Your number of dependents increased by 2 (from 0 to 2), which increased your refund by ~$4,000.",
		},
		{
			name:    "standard to itemized",
			field:   "total_deductions",
			prior:   domain.NullMoney(),
			current: domain.MoneyInt(25000),
			impact:  2288,
			want:    "Your total deductions changed from the standard deduction to $25,000, which increased your refund by ~$2,288.",
		},
		{
			name:    "capital loss keeps its sign",
			field:   "capital_gain_or_loss",
			prior:   domain.MoneyInt(2000),
			current: domain.MoneyInt(-3000),
			impact:  1100,
			want:    "Your capital gains or losses decreased by $5,000 (from $2,000 to -$3,000), which increased your refund by ~$1,100.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describeField(field(t, tt.field), tt.prior, tt.current, decimal.NewFromInt(tt.impact))
			if got != tt.want {
				t.Errorf("describeField() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescribeInteraction(t *testing.T) {
	got := describeInteraction(decimal.NewFromInt(-42), 2024, 2024)
	want := "Combined interaction of multiple changes subtracted ~$42 from your refund."
	if got != want {
		t.Errorf("describeInteraction() = %q, want %q", got, want)
	}
}
