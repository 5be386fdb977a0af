package otp

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_SixDigitsNoLeadingZero(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", normalizeEmail("  A@X.com "))
	assert.Equal(t, "a@x.com", normalizeEmail("a@x.com"))
}

func TestIsExpired_StrictlyAfter(t *testing.T) {
	now := time.Now()

	assert.False(t, isExpired(now.Unix(), now), "expiry at exactly now is still valid")
	assert.False(t, isExpired(now.Add(time.Minute).Unix(), now))
	assert.True(t, isExpired(now.Add(-time.Second).Unix(), now))
}
