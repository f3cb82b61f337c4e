package live

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/livecoll/internal/objectstore"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		cause error
		check func(error) bool
	}{
		{objectstore.ErrInvalidated, IsStaleCollection},
		{objectstore.ErrClosed, IsStaleCollection},
		{objectstore.ErrInvalidKeyPath, IsInvalidKeyPath},
		{objectstore.ErrNotInWrite, IsWriteTransaction},
		{objectstore.ErrInWrite, IsWriteTransaction},
		{objectstore.ErrFrozen, IsUnsupportedNotificationContext},
		{objectstore.ErrWrongDatabase, IsReferenceResolved},
	}
	for _, tt := range tests {
		t.Run(tt.cause.Error(), func(t *testing.T) {
			err := translate(errors.Wrap(tt.cause, "inner"), "op")
			assert.True(t, tt.check(err))
			assert.ErrorIs(t, err, tt.cause, "the engine error stays reachable")
		})
	}

	err := translate(objectstore.ErrSchemaViolation, "put")
	var le *Error
	assert.False(t, errors.As(err, &le))
	assert.ErrorIs(t, err, objectstore.ErrSchemaViolation)
	assert.NoError(t, translate(nil, "op"))
}

func TestError_ClassifiesWrapped(t *testing.T) {
	err := errors.Wrap(newError(CodeThreadAffinity, "goroutine %d", 7), "outer")
	assert.True(t, IsThreadAffinity(err))
	assert.False(t, IsStaleCollection(err))
	assert.Contains(t, err.Error(), "THREAD_AFFINITY_VIOLATION: goroutine 7")
}
