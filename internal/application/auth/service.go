package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rizara/luxe-api/internal/application/otp"
	"github.com/rizara/luxe-api/internal/domain"
	"github.com/rizara/luxe-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	// BeginRegistration validates the request, checks email uniqueness and
	// issues a registration OTP. No user row exists until completion.
	BeginRegistration(ctx context.Context, req domain.RegisterRequest) error
	// CompleteRegistration verifies the OTP, creates the account with
	// email_verified=true and returns the user plus a session token.
	CompleteRegistration(ctx context.Context, req domain.CompleteRegistrationRequest) (*domain.User, string, error)
	// ForgotPassword responds identically for known and unknown emails.
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error
	RequestPasswordChange(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error
	RequestEmailChange(ctx context.Context, userID, newEmail string) error
	ChangeEmail(ctx context.Context, userID string, req domain.ChangeEmailRequest) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type codeService interface {
	Issue(ctx context.Context, email string, purpose domain.OTPPurpose, name string) (*otp.IssueResult, error)
	Verify(ctx context.Context, email, code string, purpose domain.OTPPurpose) error
	Invalidate(ctx context.Context, email string, purpose domain.OTPPurpose)
}

type sessionSigner interface {
	SignSession(u *domain.User) (string, error)
}

type mailSender interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	users  userStore
	codes  codeService
	signer sessionSigner
	mailer mailSender
	sms    smsSender // may be nil
}

type ServiceDeps struct {
	UserRepo    userStore
	OTPService  codeService
	JWTProvider sessionSigner
	Mailer      mailSender
	SMSSender   smsSender
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:  deps.UserRepo,
		codes:  deps.OTPService,
		signer: deps.JWTProvider,
		mailer: deps.Mailer,
		sms:    deps.SMSSender,
	}
}

func (s *service) BeginRegistration(ctx context.Context, req domain.RegisterRequest) error {
	if err := ValidatePasswordStrength(req.Password); err != nil {
		return err
	}
	email := normalizeEmail(req.Email)
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return err
	}
	_, err := s.codes.Issue(ctx, email, domain.PurposeRegistration, req.Name)
	return err
}

func (s *service) CompleteRegistration(ctx context.Context, req domain.CompleteRegistrationRequest) (*domain.User, string, error) {
	email := normalizeEmail(req.Email)
	if err := s.codes.Verify(ctx, email, req.OTP, domain.PurposeRegistration); err != nil {
		return nil, "", err
	}
	if err := ValidatePasswordStrength(req.Password); err != nil {
		return nil, "", err
	}
	// A concurrent registration may have claimed the email between issuance
	// and verification.
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:        id.New(),
		Name:          req.Name,
		Email:         email,
		Phone:         req.Phone,
		PasswordHash:  string(hash),
		Role:          domain.RoleCustomer,
		EmailVerified: true, // OTP confirms ownership
		Enable:        1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, "", err
	}
	s.codes.Invalidate(ctx, email, domain.PurposeRegistration)

	token, err := s.signer.SignSession(u)
	if err != nil {
		return nil, "", err
	}

	if err := s.mailer.SendEmail(email, "Welcome to Rizara Luxe",
		fmt.Sprintf("Hello %s,\n\nYour account is ready. Happy shopping!", u.Name)); err != nil {
		slog.Warn("failed to send welcome email", "email", email, "err", err)
	}
	return u, token, nil
}

func (s *service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Keep the unknown-email branch shaped like the known one so
			// response timing does not reveal whether the account exists.
			_, _ = bcrypt.GenerateFromPassword([]byte("rizara-luxe-decoy"), bcrypt.DefaultCost)
			return nil
		}
		return err
	}

	if _, err := s.codes.Issue(ctx, email, domain.PurposePasswordReset, u.Name); err != nil {
		var rle *otp.RateLimitError
		if errors.As(err, &rle) {
			// A 429 here would confirm the account exists; the generic
			// response stands and the throttle is logged instead.
			slog.Warn("password reset issuance throttled", "email", email, "reset_in", rle.ResetIn)
			return nil
		}
		return err
	}
	return nil
}

func (s *service) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error {
	email := normalizeEmail(req.Email)
	if err := s.codes.Verify(ctx, email, req.OTP, domain.PurposePasswordReset); err != nil {
		return err
	}
	if err := ValidatePasswordStrength(req.Password); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no matching code: %w", domain.ErrOTPInvalid)
		}
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, u.UserID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		return err
	}
	s.codes.Invalidate(ctx, email, domain.PurposePasswordReset)
	return nil
}

func (s *service) RequestPasswordChange(ctx context.Context, userID string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	_, err = s.codes.Issue(ctx, u.Email, domain.PurposePasswordChange, u.Name)
	return err
}

func (s *service) ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.codes.Verify(ctx, u.Email, req.OTP, domain.PurposePasswordChange); err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthorized)
	}
	if err := ValidatePasswordStrength(req.NewPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, u.UserID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		return err
	}
	s.codes.Invalidate(ctx, u.Email, domain.PurposePasswordChange)

	if s.sms != nil && u.Phone != nil {
		if err := s.sms.SendSMS(ctx, *u.Phone, "Your Rizara Luxe password was changed. Contact support if this wasn't you."); err != nil {
			slog.Warn("failed to send password change alert", "user_id", u.UserID, "err", err)
		}
	}
	return nil
}

func (s *service) RequestEmailChange(ctx context.Context, userID, newEmail string) error {
	newEmail = normalizeEmail(newEmail)
	if err := s.ensureEmailFree(ctx, newEmail); err != nil {
		return err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	// The code goes to the NEW address: the flow proves the caller controls it.
	_, err = s.codes.Issue(ctx, newEmail, domain.PurposeEmailChange, u.Name)
	return err
}

func (s *service) ChangeEmail(ctx context.Context, userID string, req domain.ChangeEmailRequest) error {
	newEmail := normalizeEmail(req.NewEmail)
	if err := s.codes.Verify(ctx, newEmail, req.OTP, domain.PurposeEmailChange); err != nil {
		return err
	}
	if err := s.ensureEmailFree(ctx, newEmail); err != nil {
		return err
	}
	if err := s.users.Update(ctx, userID, map[string]interface{}{"email": newEmail}); err != nil {
		return err
	}
	s.codes.Invalidate(ctx, newEmail, domain.PurposeEmailChange)
	return nil
}

func (s *service) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
