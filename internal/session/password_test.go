package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvdermeer/3dprint-website/internal/apierr"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  string
	}{
		{password: "", wantErr: "Password must be at least 8 characters long"},
		{password: "Ab1", wantErr: "Password must be at least 8 characters long"},
		{password: "lowercase1", wantErr: "Password must contain at least one uppercase letter"},
		{password: "UPPERCASE1", wantErr: "Password must contain at least one lowercase letter"},
		{password: "NoDigitsHere", wantErr: "Password must contain at least one digit or special character"},
		{password: "Secret123"},
		{password: "Secret!pass"},
		{password: "Ünïcode-Ok1"},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.True(t, apierr.IsValidation(err))
			assert.EqualError(t, err, tt.wantErr)
			assert.Equal(t, tt.wantErr, apierr.FieldErrors(err)["password"])
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("ann@example.com"))
	assert.EqualError(t, ValidateEmail(""), "Email is required")
	assert.EqualError(t, ValidateEmail("ann@"), "Please enter a valid email address")
}
