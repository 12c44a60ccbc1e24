package tiebreak

import "errors"

// Sentinel kinds for tie-break errors. Callers match them with errors.Is.
var (
	// ErrInvalidParameter reports a criterion parameter outside its domain.
	ErrInvalidParameter = errors.New("invalid tie-break parameter")
	// ErrUnsupportedVariant reports a computation that is not defined for the
	// pairing system or parameter combination. No approximation is returned.
	ErrUnsupportedVariant = errors.New("unsupported tie-break variant")
	// ErrUnknownCriterion reports a configured name missing from the registry.
	ErrUnknownCriterion = errors.New("unknown tie-break criterion")
)
