package domain

import (
	"github.com/shopspring/decimal"
)

// LifeEventPreset is a catalog entry describing a hypothetical life change.
type LifeEventPreset struct {
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	FieldsAffected []string `json:"fields_affected"`
}

// LifeEventApplyResult reports what a preset did to a base record.
//
// Before and After are restricted to the affected fields. Diff covers the
// numeric ones, zero deltas included. Record is the full adjusted record.
type LifeEventApplyResult struct {
	EventKey string                     `json:"event_key"`
	Before   map[string]FieldValue      `json:"before"`
	After    map[string]FieldValue      `json:"after"`
	Diff     map[string]decimal.Decimal `json:"diff"`
	Record   TaxRecord                  `json:"-"`
}
