package lifeevents

import (
	"sort"

	"github.com/dvloznov/refund-explainer/internal/domain"
)

// ParseOverrides converts decoded JSON custom values into field values.
// Every key must name a known field.
func ParseOverrides(raw map[string]any) (map[string]domain.FieldValue, error) {
	var verr domain.ValidationError
	out := make(map[string]domain.FieldValue, len(raw))

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := raw[name]
		f, ok := domain.LookupField(name)
		if !ok {
			verr.Add(name, "unknown field")
			continue
		}
		fv, err := f.ParseValue(v)
		if err != nil {
			verr.Add(name, "%s", err.Error())
			continue
		}
		out[name] = fv
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}
