package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies engine errors so the API boundary and callers can react
// uniformly without inspecting message text.
type Kind string

const (
	// KindConfiguration marks an invalid rule or policy rejected at load time.
	// Fatal to that rule only, never to the process.
	KindConfiguration Kind = "configuration"

	// KindDetection marks a malformed or incomplete metric sample. The sample
	// is dropped and logged; no failure is emitted.
	KindDetection Kind = "detection"

	// KindInvalidTransition marks an illegal state-machine move. The entity
	// is left unchanged.
	KindInvalidTransition Kind = "invalid_transition"

	// KindDispatchFailure marks a notification channel failure after retries
	// were exhausted. Recorded against the alert, never blocks progression.
	KindDispatchFailure Kind = "dispatch_failure"

	// KindCorrelationRace marks a duplicate incident created by a correlation
	// race. Not fatal; resolved by a manual merge.
	KindCorrelationRace Kind = "correlation_race"

	// KindNotFound marks a lookup for an entity that does not exist.
	KindNotFound Kind = "not_found"
)

// EngineError is the error type carried across component boundaries.
type EngineError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *EngineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// New creates an EngineError of the given kind.
func New(kind Kind, message string) *EngineError {
	return &EngineError{Kind: kind, Message: message}
}

// Newf creates an EngineError with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to an EngineError.
func Wrap(kind Kind, message string, err error) *EngineError {
	return &EngineError{Kind: kind, Message: message, Err: err}
}

// WithDetails returns a copy of the error with details attached.
func (e *EngineError) WithDetails(details string) *EngineError {
	return &EngineError{Kind: e.Kind, Message: e.Message, Details: details, Err: e.Err}
}

// IsKind reports whether err is (or wraps) an EngineError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind == kind
	}
	return false
}

// IsInvalidTransition reports whether err is an illegal state-machine move.
func IsInvalidTransition(err error) bool { return IsKind(err, KindInvalidTransition) }

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// GetStatusCode returns the HTTP status code for an error at the API boundary.
func GetStatusCode(err error) int {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError
	}
	switch ee.Kind {
	case KindConfiguration, KindDetection:
		return http.StatusBadRequest
	case KindInvalidTransition:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
