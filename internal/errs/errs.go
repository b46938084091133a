// Package errs is the error taxonomy the collaboration core returns: a
// small closed set of kinds, not exceptions. Every error the core returns
// across an HTTP or WebSocket boundary carries one of these kinds so the
// transport layer can map it to a status code without inspecting error
// strings.
package errs

import "errors"

type Kind string

const (
	InvalidInput     Kind = "invalid_input"
	AuthError        Kind = "auth_error"
	MfaError         Kind = "mfa_error"
	NotFound         Kind = "not_found"
	ConflictError    Kind = "conflict_error"
	CryptoError      Kind = "crypto_error"
	StorageError     Kind = "storage_error"
	BackpressureDrop Kind = "backpressure_drop"
	CoreFatal        Kind = "core_fatal"
)

// Error wraps an underlying cause with a taxonomy Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to StorageError for anything
// that didn't originate from this package (an unclassified failure is
// treated as an internal storage/infra problem, never leaked as 4xx).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StorageError
}

var (
	// ErrTampered is the sentinel cause for CryptoError returned when an
	// AES-GCM tag fails to verify; decryption always fails closed, never panics.
	ErrTampered = errors.New("ciphertext failed authentication")
)
