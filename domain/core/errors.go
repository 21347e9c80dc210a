package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Design-time errors
	ErrInvalidDesign = errors.New("invalid experiment design")

	// Analysis-time errors
	ErrInsufficientData   = errors.New("insufficient data for analysis")
	ErrDegenerateSample   = errors.New("degenerate sample")
	ErrMetricTypeMismatch = errors.New("metric type mismatch")
)

// Error constructors with context
func NewInvalidDesignError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidDesign, field, reason)
}

func NewInsufficientDataError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInsufficientData, reason)
}

func NewDegenerateSampleError(variant string, reason string) error {
	return fmt.Errorf("%w: variant %q: %s", ErrDegenerateSample, variant, reason)
}

func NewMetricTypeMismatchError(control, treatment string) error {
	return fmt.Errorf("%w: control is %s, treatment is %s", ErrMetricTypeMismatch, control, treatment)
}

// Error checking helpers
func IsInvalidDesign(err error) bool {
	return errors.Is(err, ErrInvalidDesign)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsDegenerateSample(err error) bool {
	return errors.Is(err, ErrDegenerateSample)
}

func IsMetricTypeMismatch(err error) bool {
	return errors.Is(err, ErrMetricTypeMismatch)
}

// IsValidationError reports whether the error is any of the recoverable
// caller-input conditions, as opposed to an internal fault.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidDesign) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrDegenerateSample) ||
		errors.Is(err, ErrMetricTypeMismatch)
}
