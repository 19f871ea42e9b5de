package domain

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Money crosses the wire as JSON numbers, matching the presentation layer's contract.
	decimal.MarshalJSONWithoutQuotes = true
}

// FilingStatus is the filer's federal filing status.
type FilingStatus string

const (
	FilingSingle            FilingStatus = "Single"
	FilingMarriedJointly    FilingStatus = "Married filing jointly"
	FilingHeadOfHousehold   FilingStatus = "Head of household"
	FilingMarriedSeparately FilingStatus = "Married filing separately"
)

// FilingStatuses lists every supported filing status in display order.
var FilingStatuses = []FilingStatus{
	FilingSingle,
	FilingMarriedJointly,
	FilingHeadOfHousehold,
	FilingMarriedSeparately,
}

// DeductionType records whether the filer took the standard or itemized deduction.
type DeductionType string

const (
	DeductionStandard DeductionType = "Standard"
	DeductionItemized DeductionType = "Itemized"
)

// TaxRecord is the input snapshot for one filing year.
//
// A TaxRecord is a value: transforms such as With return a new record and never
// modify the receiver. TotalDeductions is nil when the filer uses the standard
// deduction; resolving that amount is the calculator's job.
type TaxRecord struct {
	TaxYear              int              `json:"tax_year"`
	FilingStatus         FilingStatus     `json:"filing_status"`
	Wages                decimal.Decimal  `json:"wages"`
	Schedule1Income      decimal.Decimal  `json:"schedule_1_income"`
	W2Withholding        decimal.Decimal  `json:"w2_withholding"`
	Schedule3Total       decimal.Decimal  `json:"schedule_3_total"`
	TotalDeductions      *decimal.Decimal `json:"total_deductions"`
	DeductionType        DeductionType    `json:"deduction_type"`
	DependentsCount      int              `json:"dependents_count"`
	ChildTaxCredit       decimal.Decimal  `json:"child_tax_credit"`
	OtherIncome          decimal.Decimal  `json:"other_income"`
	TaxableInterest      decimal.Decimal  `json:"taxable_interest"`
	OrdinaryDividends    decimal.Decimal  `json:"ordinary_dividends"`
	CapitalGainOrLoss    decimal.Decimal  `json:"capital_gain_or_loss"`
	SelfEmploymentTax    decimal.Decimal  `json:"self_employment_tax"`
	QBIDeduction         decimal.Decimal  `json:"qbi_deduction"`
	Schedule2Total       decimal.Decimal  `json:"schedule_2_total"`
	EstimatedTaxPayments decimal.Decimal  `json:"estimated_tax_payments"`
	Withholding1099      decimal.Decimal  `json:"withholding_1099"`
}

// DefaultRecord returns a record with the same defaults the intake form uses:
// Single, standard deduction, every amount zero.
func DefaultRecord(taxYear int) TaxRecord {
	return TaxRecord{
		TaxYear:       taxYear,
		FilingStatus:  FilingSingle,
		DeductionType: DeductionStandard,
	}
}

// Validate checks the record invariants and reports every offending field.
func (r TaxRecord) Validate() error {
	var verr ValidationError

	if r.TaxYear < 1000 || r.TaxYear > 9999 {
		verr.Add("tax_year", "must be a four-digit year")
	}
	if !r.FilingStatus.Valid() {
		verr.Add("filing_status", "unknown filing status %q", string(r.FilingStatus))
	}
	if !r.DeductionType.Valid() {
		verr.Add("deduction_type", "unknown deduction type %q", string(r.DeductionType))
	}
	if r.DependentsCount < 0 {
		verr.Add("dependents_count", "must be a non-negative integer")
	}

	for _, f := range fields {
		if f.Kind != KindMoney || f.Signed {
			continue
		}
		v := f.get(r)
		if !v.Null && v.Num.IsNegative() {
			verr.Add(f.Name, "must not be negative")
		}
	}

	return verr.OrNil()
}

// Get returns the value of the named field.
func (r TaxRecord) Get(name string) (FieldValue, bool) {
	f, ok := LookupField(name)
	if !ok {
		return FieldValue{}, false
	}
	return f.get(r), true
}

// With returns a copy of r with the given field values applied, validated.
func (r TaxRecord) With(updates map[string]FieldValue) (TaxRecord, error) {
	var verr ValidationError
	next := r

	for _, name := range sortedKeys(updates) {
		f, ok := LookupField(name)
		if !ok {
			verr.Add(name, "unknown field")
			continue
		}
		v := updates[name]
		if err := f.accepts(v); err != nil {
			verr.Add(name, "%s", err.Error())
			continue
		}
		f.set(&next, v)
	}
	if err := verr.OrNil(); err != nil {
		return r, err
	}

	if err := next.Validate(); err != nil {
		return r, err
	}
	return next, nil
}

// Snapshot returns the values of the named fields.
func (r TaxRecord) Snapshot(names []string) map[string]FieldValue {
	out := make(map[string]FieldValue, len(names))
	for _, name := range names {
		if v, ok := r.Get(name); ok {
			out[name] = v
		}
	}
	return out
}

// Equal reports whether two records match field for field, tax year included.
func (r TaxRecord) Equal(o TaxRecord) bool {
	if r.TaxYear != o.TaxYear {
		return false
	}
	for _, f := range fields {
		if !f.get(r).Equal(f.get(o)) {
			return false
		}
	}
	return true
}

// Valid reports whether s is a known filing status.
func (s FilingStatus) Valid() bool {
	for _, known := range FilingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Valid reports whether d is a known deduction type.
func (d DeductionType) Valid() bool {
	return d == DeductionStandard || d == DeductionItemized
}
