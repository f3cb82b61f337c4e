package objectstore

import "github.com/cockroachdb/errors"

// Sentinel errors. Callers match them with errors.Is; the returned errors
// wrap them with context.
var (
	ErrClosed          = errors.New("connection is closed")
	ErrNotInWrite      = errors.New("not in a write transaction")
	ErrAlreadyInWrite  = errors.New("already in a write transaction")
	ErrInWrite         = errors.New("not allowed inside a write transaction")
	ErrUnknownType     = errors.New("unknown object type")
	ErrInvalidKeyPath  = errors.New("invalid keypath")
	ErrNotFound        = errors.New("object not found")
	ErrFrozen          = errors.New("collection is frozen")
	ErrSchemaViolation = errors.New("schema violation")
	ErrOutOfRange      = errors.New("index out of range")
	ErrInvalidated     = errors.New("collection is no longer valid")
	ErrWrongDatabase   = errors.New("descriptor belongs to a different database")
)
