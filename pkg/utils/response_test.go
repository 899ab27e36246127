package utils

import (
	"errors"
	"fmt"
	"testing"

	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/stretchr/testify/assert"
)

func TestErrorResponse_GenericError(t *testing.T) {
	res := ErrorResponse(fmt.Errorf("wrapped: %w", pkgError.ValidationError("confirmed: must be true")))

	assert.Equal(t, 400, res.Status)
	assert.Equal(t, "VALIDATION_ERROR", res.Code)
	assert.Equal(t, "confirmed: must be true", res.Message)
}

func TestErrorResponse_PlainError(t *testing.T) {
	res := ErrorResponse(errors.New("boom"))

	assert.Equal(t, 500, res.Status)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", res.Code)
}

func TestPanicIfNeeded(t *testing.T) {
	assert.NotPanics(t, func() { PanicIfNeeded(nil) })
	assert.Panics(t, func() { PanicIfNeeded(errors.New("x")) })
}
