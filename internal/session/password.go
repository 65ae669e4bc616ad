package session

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/tvdermeer/3dprint-website/internal/apierr"
)

const (
	MinPasswordLength = 8
	passwordSpecials  = `!@#$%^&*(),.?":{}|<>`
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidatePassword applies the account password rules and reports the first one that fails.
func ValidatePassword(password string) error {
	switch {
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return apierr.InvalidField("password", "Password must be at least 8 characters long")
	case !strings.ContainsFunc(password, isASCIIUpper):
		return apierr.InvalidField("password", "Password must contain at least one uppercase letter")
	case !strings.ContainsFunc(password, isASCIILower):
		return apierr.InvalidField("password", "Password must contain at least one lowercase letter")
	case !strings.ContainsFunc(password, isASCIIDigit) && !strings.ContainsAny(password, passwordSpecials):
		return apierr.InvalidField("password", "Password must contain at least one digit or special character")
	}
	return nil
}

// ValidateEmail checks that email is present and well formed.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return apierr.InvalidField("email", "Email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return apierr.InvalidField("email", "Please enter a valid email address")
	}
	return nil
}

func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }
