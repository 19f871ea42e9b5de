package lifeevents

import (
	"sort"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/shopspring/decimal"
)

// Simulator applies catalog presets to records. It is stateless apart from
// the read-only catalog and is safe for concurrent use.
type Simulator struct {
	catalog *Catalog
}

// NewSimulator creates a simulator over catalog.
func NewSimulator(catalog *Catalog) *Simulator {
	return &Simulator{catalog: catalog}
}

// Catalog returns the simulator's preset catalog.
func (s *Simulator) Catalog() *Catalog {
	return s.catalog
}

// Apply runs one preset against base, then applies overrides field by field.
//
// Successive calls compose cumulatively: applying a preset to the record an
// earlier Apply returned moves it further, and nothing undoes a preset. Use
// Fold to recompute from the original record when presets are toggled.
func (s *Simulator) Apply(key string, base domain.TaxRecord, overrides map[string]domain.FieldValue) (domain.LifeEventApplyResult, error) {
	preset, err := s.catalog.Lookup(key)
	if err != nil {
		return domain.LifeEventApplyResult{}, err
	}

	updates := preset.Adjust(base)
	for name, v := range overrides {
		updates[name] = v
	}

	after, err := base.With(updates)
	if err != nil {
		return domain.LifeEventApplyResult{}, err
	}

	fields := affected(preset.FieldsAffected, overrides)
	return domain.LifeEventApplyResult{
		EventKey: preset.Key,
		Before:   base.Snapshot(fields),
		After:    after.Snapshot(fields),
		Diff:     numericDiff(base, after, fields),
		Record:   after,
	}, nil
}

// FoldResult is the record produced by a set of active presets.
type FoldResult struct {
	ActiveEvents []string                     `json:"active_events"`
	Before       map[string]domain.FieldValue `json:"before"`
	After        map[string]domain.FieldValue `json:"after"`
	Diff         map[string]decimal.Decimal   `json:"diff"`
	Record       domain.TaxRecord             `json:"record"`
}

// Fold applies every active preset to base from scratch, in catalog order.
// The result depends only on base and the set of keys, so enabling and then
// disabling a preset returns the original record.
func (s *Simulator) Fold(base domain.TaxRecord, activeKeys []string) (FoldResult, error) {
	var (
		presets []Preset
		seen    = make(map[string]bool, len(activeKeys))
	)
	for _, key := range activeKeys {
		if seen[key] {
			continue
		}
		seen[key] = true
		p, err := s.catalog.Lookup(key)
		if err != nil {
			return FoldResult{}, err
		}
		presets = append(presets, p)
	}
	sort.SliceStable(presets, func(i, j int) bool {
		return s.catalog.position(presets[i].Key) < s.catalog.position(presets[j].Key)
	})

	record := base
	active := make([]string, 0, len(presets))
	var fields []string
	for _, p := range presets {
		next, err := record.With(p.Adjust(record))
		if err != nil {
			return FoldResult{}, err
		}
		record = next
		active = append(active, p.Key)
		fields = append(fields, p.FieldsAffected...)
	}

	fields = affected(fields, nil)
	return FoldResult{
		ActiveEvents: active,
		Before:       base.Snapshot(fields),
		After:        record.Snapshot(fields),
		Diff:         numericDiff(base, record, fields),
		Record:       record,
	}, nil
}

// affected merges the preset's fields with any overridden ones, deduplicated
// and in canonical field order.
func affected(fields []string, overrides map[string]domain.FieldValue) []string {
	set := make(map[string]bool, len(fields)+len(overrides))
	for _, f := range fields {
		set[f] = true
	}
	for f := range overrides {
		set[f] = true
	}

	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return domain.FieldRank(out[i]) < domain.FieldRank(out[j])
	})
	return out
}

// numericDiff reports after - before for the numeric fields, zero deltas
// included. A null total_deductions counts as zero.
func numericDiff(before, after domain.TaxRecord, fields []string) map[string]decimal.Decimal {
	diff := make(map[string]decimal.Decimal, len(fields))
	for _, name := range fields {
		f, ok := domain.LookupField(name)
		if !ok || !f.IsNumeric() {
			continue
		}
		diff[name] = f.Get(after).Number().Sub(f.Get(before).Number())
	}
	return diff
}
