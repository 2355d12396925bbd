package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vytor/kotoflash/internal/errors"
)

func TestHasCode_Wrapped(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("record answer: %w", errors.NewLocalPersistenceError(cause))

	assert.True(t, errors.HasCode(err, errors.ErrCodeLocalPersistence))
	assert.False(t, errors.HasCode(err, errors.ErrCodeValidation))
	assert.ErrorIs(t, err, cause)
}

func TestAsAppError(t *testing.T) {
	appErr := errors.AsAppError(stderrors.New("plain"))
	assert.Equal(t, errors.ErrCodeInternal, appErr.Code)
	assert.Equal(t, 500, appErr.Status)

	validation := errors.NewValidationError("quality", "out of range")
	assert.Same(t, validation, errors.AsAppError(validation))
}

func TestWrapValidationError_KeepsCause(t *testing.T) {
	sentinel := stderrors.New("invalid quality")
	err := errors.WrapValidationError("quality", sentinel)

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 400, err.Status)
	assert.Contains(t, err.Error(), "VALIDATION_ERROR")
}

func TestNewSyncRejectedError(t *testing.T) {
	cause := stderrors.New("syncer: offline")
	err := errors.NewSyncRejectedError(cause)

	assert.Equal(t, errors.ErrCodeSync, err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.Equal(t, "syncer: offline", err.Message)
	assert.ErrorIs(t, err, cause)
}
