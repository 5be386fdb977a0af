package auth

import (
	"fmt"
	"unicode"

	"github.com/rizara/luxe-api/internal/domain"
)

// ValidatePasswordStrength enforces the account password policy: at least
// 8 characters with an upper-case letter, a lower-case letter and a digit.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", domain.ErrBadRequest)
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("password must contain upper-case, lower-case and numeric characters: %w", domain.ErrBadRequest)
	}
	return nil
}
