package domain

import "fmt"

// OTPPurpose tags what action a code guards. Each purpose gets its own
// active code per email; verifying with the wrong purpose is an invalid OTP.
type OTPPurpose string

const (
	PurposeRegistration   OTPPurpose = "registration"
	PurposePasswordReset  OTPPurpose = "password_reset"
	PurposePasswordChange OTPPurpose = "password_change"
	PurposeEmailChange    OTPPurpose = "email_change"
)

// ParseOTPPurpose validates a client-supplied purpose string.
func ParseOTPPurpose(s string) (OTPPurpose, error) {
	switch OTPPurpose(s) {
	case PurposeRegistration, PurposePasswordReset, PurposePasswordChange, PurposeEmailChange:
		return OTPPurpose(s), nil
	}
	return "", fmt.Errorf("unknown otp purpose %q: %w", s, ErrBadRequest)
}

// OTPRecord stores one active code per (email, purpose).
// PK: email, SK: "otp#<purpose>" — a PutItem on the same key atomically
// replaces any prior code for the tuple.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type OTPRecord struct {
	Email     string     `json:"email" dynamodbav:"email"`
	SK        string     `json:"-" dynamodbav:"sk"`
	Code      string     `json:"-" dynamodbav:"code"`
	Purpose   OTPPurpose `json:"purpose" dynamodbav:"purpose"`
	Verified  bool       `json:"verified" dynamodbav:"verified"`
	CreatedAt int64      `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64      `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
