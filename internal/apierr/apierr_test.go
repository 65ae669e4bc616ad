package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackendError_MessageVerbatim(t *testing.T) {
	err := &BackendError{Op: "login", Status: http.StatusBadRequest, Message: "Incorrect email or password"}

	assert.Equal(t, "Incorrect email or password", err.Error())
	assert.Equal(t, FallbackMessage, (&BackendError{Status: 500}).Error())
}

func TestIsUnauthorized(t *testing.T) {
	wrapped := fmt.Errorf("fetch user: %w", &BackendError{Status: http.StatusUnauthorized})

	assert.True(t, IsUnauthorized(wrapped))
	assert.False(t, IsUnauthorized(&BackendError{Status: http.StatusInternalServerError}))
	assert.False(t, IsUnauthorized(&RequestError{Op: "me", Err: errors.New("dial tcp")}))
}

func TestValidationError_Fields(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"email": "required", "city": "required"}}

	assert.Equal(t, "validation failed: city: required; email: required", err.Error())
	assert.True(t, IsValidation(err))
	assert.Equal(t, "required", FieldErrors(err)["email"])
	assert.Nil(t, FieldErrors(errors.New("x")))
}

func TestRequestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &RequestError{Op: "orders.create", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRequest(err))
	assert.Contains(t, err.Error(), "orders.create")
}

func TestDecodeError_IsNotRequestError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := fmt.Errorf("place order: %w", &DecodeError{Op: "create_order", Status: http.StatusCreated, Err: cause})

	assert.True(t, IsDecode(err))
	assert.False(t, IsRequest(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "unreadable 201 response")
}
