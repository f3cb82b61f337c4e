package live

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/objectstore"
)

// ErrorCode categorizes live errors.
type ErrorCode string

const (
	// CodeThreadAffinity indicates use from a goroutine other than the
	// owning connection's.
	CodeThreadAffinity ErrorCode = "THREAD_AFFINITY_VIOLATION"

	// CodeStaleCollection indicates the collection's source was invalidated
	// (root deleted or connection closed).
	CodeStaleCollection ErrorCode = "STALE_COLLECTION"

	// CodeUnsupportedNotificationContext indicates notifications requested
	// inside a write transaction or on a frozen collection.
	CodeUnsupportedNotificationContext ErrorCode = "UNSUPPORTED_NOTIFICATION_CONTEXT"

	// CodeUnsupportedKeyPath indicates collection operator syntax ("@") in
	// an observed keypath.
	CodeUnsupportedKeyPath ErrorCode = "UNSUPPORTED_KEYPATH"

	// CodeAggregationUnsupported indicates a property aggregate on a
	// collection of primitives.
	CodeAggregationUnsupported ErrorCode = "AGGREGATION_UNSUPPORTED"

	// CodeInvalidKeyPath indicates a keypath naming an unknown property.
	CodeInvalidKeyPath ErrorCode = "INVALID_KEYPATH"

	// CodeObjectInvalidated indicates a read through a deleted object.
	CodeObjectInvalidated ErrorCode = "OBJECT_INVALIDATED"

	// CodeWriteTransaction indicates begin/commit/cancel misuse.
	CodeWriteTransaction ErrorCode = "WRITE_TRANSACTION"

	// CodeReferenceResolved indicates a reference resolved twice or onto a
	// different database.
	CodeReferenceResolved ErrorCode = "REFERENCE_RESOLVED"
)

// Error is returned synchronously by live operations.
type Error struct {
	Code    ErrorCode
	Message string
	// Cause is the engine error being translated, if any.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func hasCode(err error, code ErrorCode) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// IsThreadAffinity returns true for THREAD_AFFINITY_VIOLATION errors.
func IsThreadAffinity(err error) bool { return hasCode(err, CodeThreadAffinity) }

// IsStaleCollection returns true for STALE_COLLECTION errors.
func IsStaleCollection(err error) bool { return hasCode(err, CodeStaleCollection) }

// IsUnsupportedNotificationContext returns true for
// UNSUPPORTED_NOTIFICATION_CONTEXT errors.
func IsUnsupportedNotificationContext(err error) bool {
	return hasCode(err, CodeUnsupportedNotificationContext)
}

// IsUnsupportedKeyPath returns true for UNSUPPORTED_KEYPATH errors.
func IsUnsupportedKeyPath(err error) bool { return hasCode(err, CodeUnsupportedKeyPath) }

// IsAggregationUnsupported returns true for AGGREGATION_UNSUPPORTED errors.
func IsAggregationUnsupported(err error) bool { return hasCode(err, CodeAggregationUnsupported) }

// IsInvalidKeyPath returns true for INVALID_KEYPATH errors.
func IsInvalidKeyPath(err error) bool { return hasCode(err, CodeInvalidKeyPath) }

// IsObjectInvalidated returns true for OBJECT_INVALIDATED errors.
func IsObjectInvalidated(err error) bool { return hasCode(err, CodeObjectInvalidated) }

// IsWriteTransaction returns true for WRITE_TRANSACTION errors.
func IsWriteTransaction(err error) bool { return hasCode(err, CodeWriteTransaction) }

// IsReferenceResolved returns true for REFERENCE_RESOLVED errors.
func IsReferenceResolved(err error) bool { return hasCode(err, CodeReferenceResolved) }

// translate maps engine sentinels onto live error codes. Errors without a
// code mapping are wrapped with op and returned as is.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var code ErrorCode
	switch {
	case errors.Is(err, objectstore.ErrInvalidated), errors.Is(err, objectstore.ErrClosed):
		code = CodeStaleCollection
	case errors.Is(err, objectstore.ErrInvalidKeyPath):
		code = CodeInvalidKeyPath
	case errors.Is(err, objectstore.ErrNotInWrite),
		errors.Is(err, objectstore.ErrAlreadyInWrite),
		errors.Is(err, objectstore.ErrInWrite):
		code = CodeWriteTransaction
	case errors.Is(err, objectstore.ErrFrozen):
		code = CodeUnsupportedNotificationContext
	case errors.Is(err, objectstore.ErrWrongDatabase):
		code = CodeReferenceResolved
	default:
		return errors.Wrap(err, op)
	}
	return &Error{Code: code, Message: op, Cause: err}
}
