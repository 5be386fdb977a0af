package auth

import (
	"testing"

	"github.com/rizara/luxe-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Str0ngPass", true},
		{"too short", "Ab1", false},
		{"no upper", "weakpass1", false},
		{"no lower", "WEAKPASS1", false},
		{"no digit", "WeakPassword", false},
		{"exactly eight", "Abcdefg1", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tc.password)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrBadRequest)
			}
		})
	}
}
