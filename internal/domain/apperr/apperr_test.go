package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := Conflict("application %s is %s", "a1", "approved")
	assert.True(t, errors.Is(err, ErrStateConflict))
	assert.False(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("approve: %w", err)
	assert.True(t, errors.Is(wrapped, ErrStateConflict))
	assert.Equal(t, KindStateConflict, KindOf(wrapped))
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, KindNotFound, "employee lookup failed")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "employee lookup failed: connection reset", err.Error())
}
