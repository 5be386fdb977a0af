package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a ULID string. Used for user ids and for the sort keys of
// OTP attempt events, where the time-ordered prefix keeps events for one
// email roughly in issuance order.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
