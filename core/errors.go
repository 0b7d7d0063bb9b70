package core

import (
	"errors"
	"fmt"
)

// ErrorKind defines standardized error categories returned by the engine
type ErrorKind string

const (
	// KindInvalidInput is returned for missing or malformed top-level arguments
	KindInvalidInput ErrorKind = "invalid_input"

	// KindInvalidThreshold is returned for a confidence threshold outside [0,1]
	KindInvalidThreshold ErrorKind = "invalid_threshold"

	// KindInvalidPattern is returned when a custom pattern's regex does not compile
	KindInvalidPattern ErrorKind = "invalid_pattern"

	// KindNotFound is returned for unknown pattern, assessment or framework ids
	KindNotFound ErrorKind = "not_found"

	// KindUnsupportedFramework is returned when a framework has no registered rule
	KindUnsupportedFramework ErrorKind = "unsupported_framework"
)

// Sentinel errors, usable with errors.Is
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidThreshold     = errors.New("invalid threshold")
	ErrInvalidPattern       = errors.New("invalid pattern")
	ErrNotFound             = errors.New("not found")
	ErrUnsupportedFramework = errors.New("unsupported framework")
)

var sentinelByKind = map[ErrorKind]error{
	KindInvalidInput:         ErrInvalidInput,
	KindInvalidThreshold:     ErrInvalidThreshold,
	KindInvalidPattern:       ErrInvalidPattern,
	KindNotFound:             ErrNotFound,
	KindUnsupportedFramework: ErrUnsupportedFramework,
}

// RiskError wraps engine errors with the failing operation and its kind
type RiskError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *RiskError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: [%s] %v", e.Op, e.Kind, e.Err)
}

func (e *RiskError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *RiskError) Is(target error) bool {
	return sentinelByKind[e.Kind] == target
}

// newRiskError creates a RiskError with a formatted message
func newRiskError(op string, kind ErrorKind, format string, args ...interface{}) *RiskError {
	return &RiskError{
		Op:   op,
		Kind: kind,
		Err:  fmt.Errorf(format, args...),
	}
}

// KindOf returns the ErrorKind of err, or "" if err is not a RiskError
func KindOf(err error) ErrorKind {
	var riskErr *RiskError
	if errors.As(err, &riskErr) {
		return riskErr.Kind
	}
	return ""
}
