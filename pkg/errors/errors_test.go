package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsSentinelIdentity(t *testing.T) {
	err := Clone(ErrInvalidScope, "course 42 not found")

	assert.True(t, errors.Is(err, ErrInvalidScope))
	assert.False(t, errors.Is(err, ErrInvalidWindow))
	assert.Equal(t, "course 42 not found", err.Error())
	assert.Equal(t, "scope references an unknown course or mentor", ErrInvalidScope.Message)
}

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestFromErrorUnwrapsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load scope: %w", Clone(ErrInvalidWindow, "days must be positive"))

	appErr := FromError(wrapped)

	assert.Equal(t, ErrInvalidWindow.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.True(t, errors.Is(wrapped, ErrInvalidWindow))
}
