package series

import "fmt"

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func requiredFieldError(field string) *ValidationError {
	return &ValidationError{Field: field, Message: field + " is required"}
}

func invalidFormatError(field string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("Invalid %s format", field)}
}

// UpstreamError reports a provider failure. Message is surfaced to callers verbatim.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NormalizationKind identifies why an observation could not be normalized.
type NormalizationKind string

const (
	KindNoObservations NormalizationKind = "no_observations"
	KindInvalidDate    NormalizationKind = "invalid_date"
	KindInvalidValue   NormalizationKind = "invalid_value"
)

// NormalizationError reports a provider payload whose latest observation is unusable.
type NormalizationError struct {
	Kind    NormalizationKind
	Message string
}

func (e *NormalizationError) Error() string {
	return e.Message
}

// Is matches on Kind so errors.Is works against the sentinels below.
func (e *NormalizationError) Is(target error) bool {
	t, ok := target.(*NormalizationError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNoObservations = &NormalizationError{Kind: KindNoObservations, Message: "No observations found"}
	ErrInvalidDate    = &NormalizationError{Kind: KindInvalidDate, Message: "Invalid timestamp"}
	ErrInvalidValue   = &NormalizationError{Kind: KindInvalidValue, Message: "Invalid value"}
)

// PersistenceError wraps a store failure. It never reaches job-run callers.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
