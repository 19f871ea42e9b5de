package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Category groups fields for attribution. The walk order is fixed.
type Category string

const (
	CategoryIncome      Category = "income"
	CategoryDeduction   Category = "deduction"
	CategoryTax         Category = "tax"
	CategoryCredit      Category = "credit"
	CategoryPayment     Category = "payment"
	CategoryStructural  Category = "structural"
	CategoryInteraction Category = "interaction"
)

// Categories is the canonical attribution order.
var Categories = []Category{
	CategoryIncome,
	CategoryDeduction,
	CategoryTax,
	CategoryCredit,
	CategoryPayment,
	CategoryStructural,
}

// Rank returns the position of c in the canonical order. Interaction ranks last.
func (c Category) Rank() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return len(Categories)
}

// ValueKind distinguishes money, count and enum fields.
type ValueKind int

const (
	KindMoney ValueKind = iota
	KindCount
	KindEnum
)

// FieldValue holds the value of a single TaxRecord field.
type FieldValue struct {
	Kind ValueKind
	Num  decimal.Decimal
	Str  string
	Null bool
}

func Money(d decimal.Decimal) FieldValue { return FieldValue{Kind: KindMoney, Num: d} }

func MoneyInt(n int64) FieldValue { return Money(decimal.NewFromInt(n)) }

func NullMoney() FieldValue { return FieldValue{Kind: KindMoney, Null: true} }

func Count(n int) FieldValue { return FieldValue{Kind: KindCount, Num: decimal.NewFromInt(int64(n))} }

func Enum(s string) FieldValue { return FieldValue{Kind: KindEnum, Str: s} }

// NullValue is the JSON null used for drivers that have no field values.
var NullValue = FieldValue{Null: true}

// IsNumeric reports whether the value is a money or count.
func (v FieldValue) IsNumeric() bool { return v.Kind != KindEnum }

// Number returns the numeric value, treating null as zero.
func (v FieldValue) Number() decimal.Decimal {
	if v.Null || v.Kind == KindEnum {
		return decimal.Zero
	}
	return v.Num
}

// Equal is exact: a null total_deductions is not equal to zero.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Kind != o.Kind || v.Null != o.Null {
		return false
	}
	if v.Null {
		return true
	}
	if v.Kind == KindEnum {
		return v.Str == o.Str
	}
	return v.Num.Equal(o.Num)
}

func (v FieldValue) String() string {
	switch {
	case v.Null:
		return "null"
	case v.Kind == KindEnum:
		return v.Str
	default:
		return v.Num.String()
	}
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Null:
		return []byte("null"), nil
	case v.Kind == KindEnum:
		return json.Marshal(v.Str)
	default:
		return []byte(v.Num.String()), nil
	}
}

// Field describes one attributable TaxRecord field.
type Field struct {
	Name     string
	Label    string
	Category Category
	Kind     ValueKind
	Nullable bool
	Signed   bool

	get func(TaxRecord) FieldValue
	set func(*TaxRecord, FieldValue)
}

func moneyField(name, label string, c Category, ptr func(*TaxRecord) *decimal.Decimal) Field {
	return Field{
		Name:     name,
		Label:    label,
		Category: c,
		Kind:     KindMoney,
		get:      func(r TaxRecord) FieldValue { return Money(*ptr(&r)) },
		set:      func(r *TaxRecord, v FieldValue) { *ptr(r) = v.Num },
	}
}

// fields is ordered by category, then by position within the category.
var fields = []Field{
	moneyField("wages", "W-2 wages", CategoryIncome, func(r *TaxRecord) *decimal.Decimal { return &r.Wages }),
	moneyField("schedule_1_income", "self-employment / Schedule 1 income", CategoryIncome, func(r *TaxRecord) *decimal.Decimal { return &r.Schedule1Income }),
	moneyField("other_income", "other income", CategoryIncome, func(r *TaxRecord) *decimal.Decimal { return &r.OtherIncome }),
	moneyField("taxable_interest", "taxable interest", CategoryIncome, func(r *TaxRecord) *decimal.Decimal { return &r.TaxableInterest }),
	moneyField("ordinary_dividends", "ordinary dividends", CategoryIncome, func(r *TaxRecord) *decimal.Decimal { return &r.OrdinaryDividends }),
	func() Field {
		f := moneyField("capital_gain_or_loss", "capital gains or losses", CategoryIncome, func(r *TaxRecord) *decimal.Decimal { return &r.CapitalGainOrLoss })
		f.Signed = true
		return f
	}(),
	{
		Name:     "total_deductions",
		Label:    "total deductions",
		Category: CategoryDeduction,
		Kind:     KindMoney,
		Nullable: true,
		get: func(r TaxRecord) FieldValue {
			if r.TotalDeductions == nil {
				return NullMoney()
			}
			return Money(*r.TotalDeductions)
		},
		set: func(r *TaxRecord, v FieldValue) {
			if v.Null {
				r.TotalDeductions = nil
				return
			}
			d := v.Num
			r.TotalDeductions = &d
		},
	},
	moneyField("qbi_deduction", "Qualified Business Income deduction", CategoryDeduction, func(r *TaxRecord) *decimal.Decimal { return &r.QBIDeduction }),
	moneyField("self_employment_tax", "self-employment tax", CategoryTax, func(r *TaxRecord) *decimal.Decimal { return &r.SelfEmploymentTax }),
	moneyField("schedule_2_total", "Schedule 2 additional taxes", CategoryTax, func(r *TaxRecord) *decimal.Decimal { return &r.Schedule2Total }),
	moneyField("child_tax_credit", "Child Tax Credit", CategoryCredit, func(r *TaxRecord) *decimal.Decimal { return &r.ChildTaxCredit }),
	moneyField("schedule_3_total", "Schedule 3 credits", CategoryCredit, func(r *TaxRecord) *decimal.Decimal { return &r.Schedule3Total }),
	moneyField("w2_withholding", "W-2 withholding", CategoryPayment, func(r *TaxRecord) *decimal.Decimal { return &r.W2Withholding }),
	moneyField("withholding_1099", "1099 withholding", CategoryPayment, func(r *TaxRecord) *decimal.Decimal { return &r.Withholding1099 }),
	moneyField("estimated_tax_payments", "estimated tax payments", CategoryPayment, func(r *TaxRecord) *decimal.Decimal { return &r.EstimatedTaxPayments }),
	{
		Name:     "filing_status",
		Label:    "filing status",
		Category: CategoryStructural,
		Kind:     KindEnum,
		get:      func(r TaxRecord) FieldValue { return Enum(string(r.FilingStatus)) },
		set:      func(r *TaxRecord, v FieldValue) { r.FilingStatus = FilingStatus(v.Str) },
	},
	{
		Name:     "dependents_count",
		Label:    "number of dependents",
		Category: CategoryStructural,
		Kind:     KindCount,
		get:      func(r TaxRecord) FieldValue { return Count(r.DependentsCount) },
		set:      func(r *TaxRecord, v FieldValue) { r.DependentsCount = int(v.Num.IntPart()) },
	},
	{
		Name:     "deduction_type",
		Label:    "deduction type",
		Category: CategoryStructural,
		Kind:     KindEnum,
		get:      func(r TaxRecord) FieldValue { return Enum(string(r.DeductionType)) },
		set:      func(r *TaxRecord, v FieldValue) { r.DeductionType = DeductionType(v.Str) },
	},
}

var fieldIndex = func() map[string]int {
	m := make(map[string]int, len(fields))
	for i, f := range fields {
		m[f.Name] = i
	}
	return m
}()

// Fields returns the attributable fields in canonical order. tax_year is not among them.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// FieldsIn returns the fields of one category in canonical order.
func FieldsIn(c Category) []Field {
	var out []Field
	for _, f := range fields {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

// LookupField returns the field registered under name.
func LookupField(name string) (Field, bool) {
	i, ok := fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return fields[i], true
}

// FieldRank orders field names canonically; unknown names sort last.
func FieldRank(name string) int {
	if i, ok := fieldIndex[name]; ok {
		return i
	}
	return len(fields)
}

// Get reads the field from r.
func (f Field) Get(r TaxRecord) FieldValue { return f.get(r) }

// IsNumeric reports whether the field holds a money amount or a count.
func (f Field) IsNumeric() bool { return f.Kind != KindEnum }

// Apply returns a copy of r with the field set to v. The value is not
// validated; callers pass values read from another valid record.
func (f Field) Apply(r TaxRecord, v FieldValue) TaxRecord {
	f.set(&r, v)
	return r
}

func (f Field) accepts(v FieldValue) error {
	if v.Null {
		if !f.Nullable {
			return fmt.Errorf("must not be null")
		}
		return nil
	}
	if v.Kind != f.Kind {
		return fmt.Errorf("wrong value type")
	}
	if f.Kind == KindCount && !v.Num.IsInteger() {
		return fmt.Errorf("must be an integer")
	}
	return nil
}

// ParseValue converts a decoded JSON value into a FieldValue for f.
func (f Field) ParseValue(raw any) (FieldValue, error) {
	if raw == nil {
		if f.Nullable {
			return NullMoney(), nil
		}
		return FieldValue{}, fmt.Errorf("must not be null")
	}

	if f.Kind == KindEnum {
		s, ok := raw.(string)
		if !ok {
			return FieldValue{}, fmt.Errorf("must be a string")
		}
		switch f.Name {
		case "filing_status":
			fs, err := ParseFilingStatus(s)
			if err != nil {
				return FieldValue{}, err
			}
			return Enum(string(fs)), nil
		case "deduction_type":
			dt, err := ParseDeductionType(s)
			if err != nil {
				return FieldValue{}, err
			}
			return Enum(string(dt)), nil
		}
		return Enum(s), nil
	}

	d, err := ParseDecimal(raw)
	if err != nil {
		return FieldValue{}, err
	}
	if f.Kind == KindCount {
		if !d.IsInteger() {
			return FieldValue{}, fmt.Errorf("must be an integer")
		}
		return Count(int(d.IntPart())), nil
	}
	return Money(d), nil
}

// ParseDecimal converts a decoded JSON or YAML number into a decimal.
func ParseDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("must be a number")
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("must be a number")
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("must be a number")
	}
}

// ParseFilingStatus accepts the display form and the common short aliases.
func ParseFilingStatus(s string) (FilingStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "single":
		return FilingSingle, nil
	case "married filing jointly", "married_filing_jointly", "mfj":
		return FilingMarriedJointly, nil
	case "head of household", "head_of_household", "hoh":
		return FilingHeadOfHousehold, nil
	case "married filing separately", "married_filing_separately", "mfs":
		return FilingMarriedSeparately, nil
	}
	return "", fmt.Errorf("unknown filing status %q", s)
}

// ParseDeductionType is case-insensitive.
func ParseDeductionType(s string) (DeductionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard":
		return DeductionStandard, nil
	case "itemized":
		return DeductionItemized, nil
	}
	return "", fmt.Errorf("unknown deduction type %q", s)
}

// RecordFromMap builds a record from decoded JSON. Missing fields take the
// intake defaults and unknown keys are ignored.
func RecordFromMap(raw map[string]any) (TaxRecord, error) {
	var verr ValidationError
	r := DefaultRecord(0)

	if y, ok := raw["tax_year"]; ok {
		d, err := ParseDecimal(y)
		if err != nil || !d.IsInteger() {
			verr.Add("tax_year", "must be an integer year")
		} else {
			r.TaxYear = int(d.IntPart())
		}
	} else {
		verr.Add("tax_year", "is required")
	}

	for _, f := range fields {
		v, ok := raw[f.Name]
		if !ok {
			continue
		}
		fv, err := f.ParseValue(v)
		if err != nil {
			verr.Add(f.Name, "%s", err.Error())
			continue
		}
		f.set(&r, fv)
	}

	if err := verr.OrNil(); err != nil {
		return TaxRecord{}, err
	}
	if err := r.Validate(); err != nil {
		return TaxRecord{}, err
	}
	return r, nil
}

// ToMap renders the record with every field, tax_year included.
func (r TaxRecord) ToMap() map[string]FieldValue {
	out := make(map[string]FieldValue, len(fields)+1)
	out["tax_year"] = Count(r.TaxYear)
	for _, f := range fields {
		out[f.Name] = f.get(r)
	}
	return out
}

func (r *TaxRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode tax record: %w", err)
	}
	rec, err := RecordFromMap(raw)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func (r TaxRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
