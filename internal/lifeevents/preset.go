// Package lifeevents simulates hypothetical life changes, such as a marriage
// or a job loss, against a tax record.
package lifeevents

import (
	"fmt"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/shopspring/decimal"
)

// Op is the kind of edit an adjustment makes to a field.
type Op string

const (
	OpSet      Op = "set"
	OpAdd      Op = "add"
	OpSubtract Op = "subtract"
	OpMultiply Op = "multiply"
)

// Adjustment is one field edit in a preset definition.
type Adjustment struct {
	Field string `yaml:"field" json:"field"`
	Op    Op     `yaml:"op" json:"op"`
	Value any    `yaml:"value" json:"value"`
}

// Preset is a named set of adjustments.
type Preset struct {
	Key            string       `yaml:"key"`
	Name           string       `yaml:"name"`
	Description    string       `yaml:"description"`
	FieldsAffected []string     `yaml:"fields_affected"`
	Adjustments    []Adjustment `yaml:"adjustments"`

	compiled []compiledAdjustment
}

type compiledAdjustment struct {
	field  domain.Field
	op     Op
	value  domain.FieldValue
	amount decimal.Decimal
}

// Info returns the public catalog entry for p.
func (p Preset) Info() domain.LifeEventPreset {
	fields := make([]string, len(p.FieldsAffected))
	copy(fields, p.FieldsAffected)
	return domain.LifeEventPreset{
		Key:            p.Key,
		Name:           p.Name,
		Description:    p.Description,
		FieldsAffected: fields,
	}
}

// compile validates the definition and resolves fields and values. When
// FieldsAffected is empty it is derived from the adjustments.
func (p *Preset) compile() error {
	var verr domain.ValidationError

	if p.Key == "" {
		verr.Add("key", "is required")
	}
	if p.Name == "" {
		verr.Add("name", "is required")
	}
	if len(p.Adjustments) == 0 {
		verr.Add("adjustments", "at least one adjustment is required")
	}

	p.compiled = p.compiled[:0]
	derived := len(p.FieldsAffected) == 0
	for i, adj := range p.Adjustments {
		path := fmt.Sprintf("adjustments[%d]", i)
		f, ok := domain.LookupField(adj.Field)
		if !ok {
			verr.Add(path+".field", "unknown field %q", adj.Field)
			continue
		}

		c := compiledAdjustment{field: f, op: adj.Op}
		switch adj.Op {
		case OpSet:
			v, err := f.ParseValue(adj.Value)
			if err != nil {
				verr.Add(path+".value", "%s", err.Error())
				continue
			}
			c.value = v
		case OpAdd, OpSubtract, OpMultiply:
			if !f.IsNumeric() {
				verr.Add(path+".op", "%s is not valid for %s", adj.Op, f.Name)
				continue
			}
			d, err := domain.ParseDecimal(adj.Value)
			if err != nil {
				verr.Add(path+".value", "%s", err.Error())
				continue
			}
			c.amount = d
		default:
			verr.Add(path+".op", "unknown op %q", adj.Op)
			continue
		}
		p.compiled = append(p.compiled, c)

		if derived && !contains(p.FieldsAffected, f.Name) {
			p.FieldsAffected = append(p.FieldsAffected, f.Name)
		}
	}

	for _, name := range p.FieldsAffected {
		if _, ok := domain.LookupField(name); !ok {
			verr.Add("fields_affected", "unknown field %q", name)
		}
	}

	if err := verr.OrNil(); err != nil {
		return fmt.Errorf("preset %q: %w", p.Key, err)
	}
	return nil
}

// Adjust computes the preset's field updates for r. It is a pure function of
// r; adjustments see the results of earlier adjustments in the same preset.
func (p Preset) Adjust(r domain.TaxRecord) map[string]domain.FieldValue {
	out := make(map[string]domain.FieldValue, len(p.compiled))
	for _, c := range p.compiled {
		current, ok := out[c.field.Name]
		if !ok {
			current = c.field.Get(r)
		}
		out[c.field.Name] = c.apply(current)
	}
	return out
}

func (c compiledAdjustment) apply(current domain.FieldValue) domain.FieldValue {
	if c.op == OpSet {
		return c.value
	}

	n := current.Number()
	switch c.op {
	case OpAdd:
		n = n.Add(c.amount)
	case OpSubtract:
		n = n.Sub(c.amount)
	case OpMultiply:
		n = n.Mul(c.amount)
	}
	if !c.field.Signed && n.IsNegative() {
		n = decimal.Zero
	}

	if c.field.Kind == domain.KindCount {
		return domain.Count(int(n.Round(0).IntPart()))
	}
	// Scaled amounts land on whole dollars, halves away from zero.
	if c.op == OpMultiply {
		return domain.Money(n.Round(0))
	}
	return domain.Money(n.Round(2))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
