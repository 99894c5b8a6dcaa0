package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntitySentinelsWrapNotFound(t *testing.T) {
	t.Parallel()

	for _, err := range []error{ErrUserNotFound, ErrTaskNotFound, ErrLedgerEntryNotFound} {
		assert.ErrorIs(t, err, ErrNotFound)
		assert.True(t, IsNotFoundError(err))
	}

	assert.False(t, IsNotFoundError(ErrDuplicateEntry))
	assert.False(t, IsNotFoundError(ErrStatusConflict))
	assert.False(t, IsNotFoundError(nil))
}

func TestStoreErrorWrapping(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewStoreError(cause, "query task %s", "abc")

	assert.Equal(t, "query task abc: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	var storeErr *StoreError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &storeErr))
}

func TestStoreErrorWithoutCause(t *testing.T) {
	t.Parallel()

	err := NewStoreError(nil, "no rows updated")
	assert.Equal(t, "no rows updated", err.Error())
	assert.Nil(t, err.Unwrap())
}
