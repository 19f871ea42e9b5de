package narrative

import "errors"

var (
	// ErrDisabled is returned by composers that are switched off.
	ErrDisabled = errors.New("narrative disabled")

	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("empty response from model")
)
