package otp

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// generateCode draws a code uniformly from [100000, 999999]. Codes below
// 100000 are excluded on purpose: every code renders as exactly six digits
// with no padding, at a small cost in entropy.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isExpired reports whether expiresAt (Unix seconds) is strictly in the past.
func isExpired(expiresAt int64, now time.Time) bool {
	return now.Unix() > expiresAt
}
