// Package faults defines the error taxonomy for the orchestration core.
//
// Sentinel errors are checked with errors.Is; the constructor helpers wrap a
// specific reason so callers can surface it to the user verbatim.
package faults

import (
	"errors"
	"fmt"
)

// Sentinel errors for turn processing.
var (
	// ErrValidation indicates malformed or incomplete request fields.
	// Rejected before any operation executes.
	ErrValidation = errors.New("validation error")

	// ErrBusinessRule indicates a request that is well-formed but violates a
	// clinic rule (insurance on a non-Tuesday/Thursday, outside business
	// hours, weekend date). Rejected before any mutation.
	ErrBusinessRule = errors.New("business rule violation")

	// ErrConflict indicates the requested slot is already occupied, or a
	// duplicate mutation was detected via its correlation key.
	ErrConflict = errors.New("conflict")

	// ErrExternalService indicates the calendar backend was unreachable or
	// timed out. Subject to one bounded retry.
	ErrExternalService = errors.New("external service error")

	// ErrProtocol indicates a cross-role message that is not well-formed.
	// Fatal to the turn: no partial state is committed.
	ErrProtocol = errors.New("protocol error")
)

// Validationf wraps ErrValidation with a specific reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// BusinessRulef wraps ErrBusinessRule with a specific reason.
func BusinessRulef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBusinessRule, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with a specific reason.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Externalf wraps ErrExternalService with a specific reason.
func Externalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExternalService, fmt.Sprintf(format, args...))
}

// Protocolf wraps ErrProtocol with a specific reason.
func Protocolf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// Recoverable reports whether the error can be surfaced to the user as a
// specific explanation so the conversation continues collecting corrected
// input. External and protocol failures are not recoverable in-turn.
func Recoverable(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrBusinessRule) ||
		errors.Is(err, ErrConflict)
}

// Reason extracts the human-readable portion of a taxonomy error: the text
// following the sentinel prefix. Returns the full message for other errors.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrValidation, ErrBusinessRule, ErrConflict, ErrExternalService, ErrProtocol} {
		prefix := sentinel.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
