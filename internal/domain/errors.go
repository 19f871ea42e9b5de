package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPreset is returned when a life-event key is not in the catalog.
var ErrUnknownPreset = errors.New("unknown life event")

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field-level problem found in one input.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Add records a problem with field.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns e as an error if it holds any field errors.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Prefix returns a copy with each field name qualified by prefix, as in "prior_data.wages".
func (e *ValidationError) Prefix(prefix string) *ValidationError {
	out := &ValidationError{Fields: make([]FieldError, len(e.Fields))}
	for i, fe := range e.Fields {
		out.Fields[i] = FieldError{Field: prefix + "." + fe.Field, Message: fe.Message}
	}
	return out
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		parts[i] = fe.Field + " " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UnknownPresetError names the preset key that was not found.
type UnknownPresetError struct {
	Key string
}

func (e *UnknownPresetError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownPreset.Error(), e.Key)
}

func (e *UnknownPresetError) Is(target error) bool {
	return target == ErrUnknownPreset
}

// CalculationError wraps a tax calculator failure. Stage names the record that
// was being evaluated, for example "prior", "current" or "income:wages".
type CalculationError struct {
	Stage string
	Err   error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("tax calculation failed at %s: %v", e.Stage, e.Err)
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries field-level validation errors.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
