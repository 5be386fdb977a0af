package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rizara/luxe-api/internal/domain"
)

// RateLimitError carries the retry-after hint for 429 responses.
type RateLimitError struct {
	Message string
	ResetIn int // minutes
}

func (e *RateLimitError) Error() string { return e.Message }
func (e *RateLimitError) Unwrap() error { return domain.ErrRateLimited }

// IssueResult reports a successful issuance back to the client.
type IssueResult struct {
	AttemptsRemaining int
	ExpiresIn         int // seconds until the code expires
}

type Service interface {
	// Issue creates a code for (email, purpose), replacing any prior one, and
	// delivers it by email. A delivery failure rolls the new code back.
	Issue(ctx context.Context, email string, purpose domain.OTPPurpose, name string) (*IssueResult, error)
	// Resend is Issue under the resend rate-limit threshold.
	Resend(ctx context.Context, email string, purpose domain.OTPPurpose, name string) (*IssueResult, error)
	// Verify consumes the code: domain.ErrOTPInvalid when no live unverified
	// record matches, domain.ErrOTPExpired (record deleted) when stale.
	Verify(ctx context.Context, email, code string, purpose domain.OTPPurpose) error
	// IsVerified reports whether a verified, unexpired code exists for the
	// tuple. An expired record found on the way is purged.
	IsVerified(ctx context.Context, email string, purpose domain.OTPPurpose) (bool, error)
	// Invalidate removes any record for the tuple. Best effort — storage
	// errors are logged, never returned.
	Invalidate(ctx context.Context, email string, purpose domain.OTPPurpose)
	// CleanupExpired deletes every expired record and returns the count.
	CleanupExpired(ctx context.Context) (int, error)
}

type otpStore interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	Get(ctx context.Context, email string, purpose domain.OTPPurpose) (*domain.OTPRecord, error)
	MarkVerified(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error
	Delete(ctx context.Context, email string, purpose domain.OTPPurpose) error
	DeleteIfCode(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type mailSender interface {
	SendEmail(to, subject, body string) error
}

type service struct {
	store     otpStore
	limiter   *Limiter
	mailer    mailSender
	expiry    time.Duration
	sendMax   int
	resendMax int
}

type ServiceDeps struct {
	Store     otpStore
	Limiter   *Limiter
	Mailer    mailSender
	Expiry    time.Duration
	SendMax   int
	ResendMax int
}

func NewService(deps ServiceDeps) Service {
	return &service{
		store:     deps.Store,
		limiter:   deps.Limiter,
		mailer:    deps.Mailer,
		expiry:    deps.Expiry,
		sendMax:   deps.SendMax,
		resendMax: deps.ResendMax,
	}
}

func (s *service) Issue(ctx context.Context, email string, purpose domain.OTPPurpose, name string) (*IssueResult, error) {
	return s.issue(ctx, email, purpose, name, s.sendMax)
}

func (s *service) Resend(ctx context.Context, email string, purpose domain.OTPPurpose, name string) (*IssueResult, error) {
	return s.issue(ctx, email, purpose, name, s.resendMax)
}

func (s *service) issue(ctx context.Context, email string, purpose domain.OTPPurpose, name string, maxAttempts int) (*IssueResult, error) {
	email = normalizeEmail(email)

	limit := s.limiter.Reserve(ctx, email, maxAttempts)
	if !limit.Allowed {
		return nil, &RateLimitError{Message: limit.Message, ResetIn: limit.ResetIn}
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp code: %w", err)
	}
	now := time.Now()
	rec := &domain.OTPRecord{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		Verified:  false,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.expiry).Unix(),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store otp record: %w", err)
	}

	if err := s.mailer.SendEmail(email, subjectFor(purpose), bodyFor(purpose, name, code, s.expiry)); err != nil {
		// Never leave behind a valid code the user was never shown. The
		// rollback is pinned to this code so it cannot take out a record a
		// concurrent issuance just wrote.
		s.discard(ctx, email, purpose, code)
		return nil, fmt.Errorf("send otp email: %w", err)
	}

	return &IssueResult{
		AttemptsRemaining: limit.AttemptsRemaining,
		ExpiresIn:         int(s.expiry.Seconds()),
	}, nil
}

func (s *service) Verify(ctx context.Context, email, code string, purpose domain.OTPPurpose) error {
	email = normalizeEmail(email)

	rec, err := s.store.Get(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no matching code: %w", domain.ErrOTPInvalid)
		}
		return err
	}
	if rec.Verified || rec.Code != code {
		return fmt.Errorf("no matching code: %w", domain.ErrOTPInvalid)
	}
	if isExpired(rec.ExpiresAt, time.Now()) {
		s.discard(ctx, email, purpose, rec.Code)
		return fmt.Errorf("code expired: %w", domain.ErrOTPExpired)
	}
	// Conditional flip pinned to the code read above. A concurrent verifier,
	// or a reissue that replaced the record after the Get, makes the
	// condition fail and the store returns ErrOTPInvalid.
	return s.store.MarkVerified(ctx, email, purpose, rec.Code)
}

func (s *service) IsVerified(ctx context.Context, email string, purpose domain.OTPPurpose) (bool, error) {
	email = normalizeEmail(email)

	rec, err := s.store.Get(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if isExpired(rec.ExpiresAt, time.Now()) {
		s.discard(ctx, email, purpose, rec.Code)
		return false, nil
	}
	return rec.Verified, nil
}

func (s *service) Invalidate(ctx context.Context, email string, purpose domain.OTPPurpose) {
	if err := s.store.Delete(ctx, normalizeEmail(email), purpose); err != nil {
		slog.Warn("failed to delete otp record", "email", email, "purpose", purpose, "err", err)
	}
}

// discard removes a specific stale code without touching a record that a
// concurrent reissue may have written at the same key.
func (s *service) discard(ctx context.Context, email string, purpose domain.OTPPurpose, code string) {
	if err := s.store.DeleteIfCode(ctx, email, purpose, code); err != nil {
		slog.Warn("failed to delete stale otp record", "email", email, "purpose", purpose, "err", err)
	}
}

func (s *service) CleanupExpired(ctx context.Context) (int, error) {
	return s.store.DeleteExpired(ctx, time.Now())
}

func subjectFor(purpose domain.OTPPurpose) string {
	switch purpose {
	case domain.PurposeRegistration:
		return "Verify your Rizara Luxe account"
	case domain.PurposePasswordReset:
		return "Reset your Rizara Luxe password"
	case domain.PurposePasswordChange:
		return "Confirm your password change"
	case domain.PurposeEmailChange:
		return "Confirm your new email address"
	}
	return "Your Rizara Luxe verification code"
}

func bodyFor(purpose domain.OTPPurpose, name, code string, expiry time.Duration) string {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}
	return fmt.Sprintf("%s,\n\nYour verification code is %s. It expires in %d minutes.\n\nIf you did not request this, you can ignore this email.",
		greeting, code, int(expiry.Minutes()))
}
