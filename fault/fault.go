package fault

import (
	"errors"
	"fmt"
)

/* fault carries the operational error taxonomy of the relay core.
 * Codes are stable strings consumed by metrics, logs and callers;
 * the wrapped error keeps the full cause chain for %w inspection.
 */

// Code identifies a class of expected, recoverable failure.
type Code string

const (
	// Configuration
	CodeSecretUnavailable Code = "webhook_secret_unavailable"
	CodeSecretEmpty       Code = "webhook_secret_empty"

	// Security
	CodeSignatureInvalid Code = "webhook_signature_invalid"

	// Storage
	CodeStorageReadFailed  Code = "storage_read_failed"
	CodeStorageWriteFailed Code = "storage_write_failed"

	// Duplicate delivery is a success path for callers; the code exists
	// for metrics only.
	CodeDuplicateDelivery Code = "webhook_duplicate_delivery"

	// Replay
	CodeReplayStorageCheckFailed Code = "replay_storage_check_failed"
	CodeReplayMaxAttempts        Code = "replay_max_attempts"
	CodeReplayRetryScheduled     Code = "replay_retry_scheduled"
	CodeReplayEnqueueFailed      Code = "replay_enqueue_failed"

	// Dead letter
	CodeDeadLetterWriteFailed   Code = "dead_letter_write_failed"
	CodeDeadLetterReadFailed    Code = "dead_letter_read_failed"
	CodeDeadLetterRequeueFailed Code = "dead_letter_requeue_failed"
	CodeDeadLetterDeleteFailed  Code = "dead_letter_delete_failed"
	CodeDeadLetterNotFound      Code = "dead_letter_not_found"

	// Authentication
	CodeTokenCreationFailed Code = "token_creation_failed"
	CodeTokenNull           Code = "token_null"
)

// Error pairs a taxonomy code with an underlying cause.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports equality by code, so errors.Is(err, fault.New(code)) works
// regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	var fe *Error
	if !errors.As(target, &fe) {
		return false
	}
	return e.Code == fe.Code
}

// New creates an error carrying only a code.
func New(code Code) error {
	return &Error{Code: code}
}

// Wrap attaches a code to an existing cause.
func Wrap(code Code, err error) error {
	return &Error{Code: code, Err: err}
}

// Errorf attaches a code to a formatted cause.
func Errorf(code Code, format string, args ...any) error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the taxonomy code from an error chain.
// Returns the empty code when no fault.Error is present.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
