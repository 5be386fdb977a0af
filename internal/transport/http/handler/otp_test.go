package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rizara/luxe-api/internal/application/otp"
	"github.com/rizara/luxe-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockOTPService struct{ mock.Mock }

func (m *mockOTPService) Issue(ctx context.Context, email string, purpose domain.OTPPurpose, name string) (*otp.IssueResult, error) {
	args := m.Called(ctx, email, purpose, name)
	if r, _ := args.Get(0).(*otp.IssueResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPService) Resend(ctx context.Context, email string, purpose domain.OTPPurpose, name string) (*otp.IssueResult, error) {
	args := m.Called(ctx, email, purpose, name)
	if r, _ := args.Get(0).(*otp.IssueResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPService) Verify(ctx context.Context, email, code string, purpose domain.OTPPurpose) error {
	return m.Called(ctx, email, code, purpose).Error(0)
}
func (m *mockOTPService) IsVerified(ctx context.Context, email string, purpose domain.OTPPurpose) (bool, error) {
	args := m.Called(ctx, email, purpose)
	return args.Bool(0), args.Error(1)
}
func (m *mockOTPService) Invalidate(ctx context.Context, email string, purpose domain.OTPPurpose) {
	m.Called(ctx, email, purpose)
}
func (m *mockOTPService) CleanupExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockUserLookup struct{ mock.Mock }

func (m *mockUserLookup) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

// --- Send ---

func TestSend_Success(t *testing.T) {
	svc := &mockOTPService{}
	users := &mockUserLookup{}
	users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)
	svc.On("Issue", mock.Anything, "a@x.com", domain.PurposeRegistration, "Amira").
		Return(&otp.IssueResult{AttemptsRemaining: 2, ExpiresIn: 600}, nil)

	h := NewOTPHandler(svc, users)
	rr := postJSON(t, h.Send, "/api/otp/send", `{"email":"a@x.com","type":"registration","name":"Amira"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp OTPSendEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.AttemptsRemaining)
	assert.Equal(t, 600, resp.ExpiresIn)
}

func TestSend_InvalidEmail(t *testing.T) {
	svc := &mockOTPService{}
	h := NewOTPHandler(svc, &mockUserLookup{})
	rr := postJSON(t, h.Send, "/api/otp/send", `{"email":"not-an-email","type":"registration"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_UnknownPurpose(t *testing.T) {
	svc := &mockOTPService{}
	h := NewOTPHandler(svc, &mockUserLookup{})
	rr := postJSON(t, h.Send, "/api/otp/send", `{"email":"a@x.com","type":"login"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSend_RegistrationEmailTaken(t *testing.T) {
	svc := &mockOTPService{}
	users := &mockUserLookup{}
	users.On("GetByEmail", mock.Anything, "a@x.com").Return(&domain.User{UserID: "u1", Enable: 1}, nil)

	h := NewOTPHandler(svc, users)
	rr := postJSON(t, h.Send, "/api/otp/send", `{"email":"a@x.com","type":"registration"}`)

	assert.Equal(t, http.StatusConflict, rr.Code)
	svc.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_RateLimited(t *testing.T) {
	svc := &mockOTPService{}
	users := &mockUserLookup{}
	users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)
	svc.On("Issue", mock.Anything, "a@x.com", domain.PurposeRegistration, "").
		Return(nil, &otp.RateLimitError{Message: "Too many OTP requests. Please try again in 9 minute(s).", ResetIn: 9})

	h := NewOTPHandler(svc, users)
	rr := postJSON(t, h.Send, "/api/otp/send", `{"email":"a@x.com","type":"registration"}`)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "540", rr.Header().Get("Retry-After"))
}

// --- Verify ---

func TestVerify_Success(t *testing.T) {
	svc := &mockOTPService{}
	svc.On("Verify", mock.Anything, "a@x.com", "123456", domain.PurposeRegistration).Return(nil)

	h := NewOTPHandler(svc, &mockUserLookup{})
	rr := postJSON(t, h.Verify, "/api/otp/verify", `{"email":"a@x.com","otp":"123456","type":"registration"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp OTPVerifyEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Verified)
}

func TestVerify_MalformedCodeNeverHitsStore(t *testing.T) {
	svc := &mockOTPService{}
	h := NewOTPHandler(svc, &mockUserLookup{})

	for _, code := range []string{"12345", "1234567", "12a456", ""} {
		rr := postJSON(t, h.Verify, "/api/otp/verify",
			`{"email":"a@x.com","otp":"`+code+`","type":"registration"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "code %q", code)
	}
	svc.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_Expired(t *testing.T) {
	svc := &mockOTPService{}
	svc.On("Verify", mock.Anything, "a@x.com", "123456", domain.PurposeRegistration).
		Return(domain.ErrOTPExpired)

	h := NewOTPHandler(svc, &mockUserLookup{})
	rr := postJSON(t, h.Verify, "/api/otp/verify", `{"email":"a@x.com","otp":"123456","type":"registration"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "expired")
}

// --- CheckVerified ---

func TestCheckVerified(t *testing.T) {
	svc := &mockOTPService{}
	svc.On("IsVerified", mock.Anything, "a@x.com", domain.PurposeRegistration).Return(true, nil)

	h := NewOTPHandler(svc, &mockUserLookup{})
	req := httptest.NewRequest(http.MethodGet, "/api/otp/check-verified?email=a@x.com&type=registration", nil)
	rr := httptest.NewRecorder()
	h.CheckVerified(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp OTPVerifyEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Verified)
}

func TestCheckVerified_MissingParams(t *testing.T) {
	h := NewOTPHandler(&mockOTPService{}, &mockUserLookup{})
	req := httptest.NewRequest(http.MethodGet, "/api/otp/check-verified", nil)
	rr := httptest.NewRecorder()
	h.CheckVerified(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// --- Cleanup ---

func TestCleanup(t *testing.T) {
	svc := &mockOTPService{}
	svc.On("CleanupExpired", mock.Anything).Return(12, nil)

	h := NewOTPHandler(svc, &mockUserLookup{})
	rr := postJSON(t, h.Cleanup, "/api/admin/otp/cleanup", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"removed":12`)
}
