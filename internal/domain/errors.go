package domain

import "errors"

// Core error taxonomy. Every engine error wraps exactly one of these.
var (
	// ErrInsufficientData means fewer observations than a window or statistic needs.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidParameter means a misconfigured call: unknown method,
	// confidence outside (0,1), zero volatility used as a divisor.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDegenerateInput means the input has no variance where a statistic requires it.
	ErrDegenerateInput = errors.New("degenerate input")
)

// FailureKind classifies why a symbol was skipped.
type FailureKind string

const (
	FailureInsufficientData FailureKind = "INSUFFICIENT_DATA"
	FailureInvalidParameter FailureKind = "INVALID_PARAMETER"
	FailureDegenerateInput  FailureKind = "DEGENERATE_INPUT"
	FailureSource           FailureKind = "SOURCE_ERROR"
)

// Failure records a symbol excluded from a multi-asset computation.
type Failure struct {
	Symbol string      `json:"symbol"`
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

// ClassifyError maps an error onto the failure taxonomy.
// Errors outside the core taxonomy are treated as source errors.
func ClassifyError(err error) FailureKind {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return FailureInsufficientData
	case errors.Is(err, ErrInvalidParameter):
		return FailureInvalidParameter
	case errors.Is(err, ErrDegenerateInput):
		return FailureDegenerateInput
	default:
		return FailureSource
	}
}

// NewFailure builds a Failure for symbol from err.
func NewFailure(symbol string, err error) Failure {
	return Failure{Symbol: symbol, Kind: ClassifyError(err), Reason: err.Error()}
}
