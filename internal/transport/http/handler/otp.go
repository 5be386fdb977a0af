package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rizara/luxe-api/internal/application/otp"
	"github.com/rizara/luxe-api/internal/domain"
	"github.com/rizara/luxe-api/internal/pkg/validate"
)

type userLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// OTPHandler handles the OTP send/verify/resend/check endpoints.
type OTPHandler struct {
	svc   otp.Service
	users userLookup
}

func NewOTPHandler(svc otp.Service, users userLookup) *OTPHandler {
	return &OTPHandler{svc: svc, users: users}
}

type sendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Type  string `json:"type" validate:"required"`
	Name  string `json:"name"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
	Type  string `json:"type" validate:"required"`
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.svc.Issue)
}

func (h *OTPHandler) Resend(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.svc.Resend)
}

func (h *OTPHandler) issue(w http.ResponseWriter, r *http.Request,
	issueFn func(ctx context.Context, email string, purpose domain.OTPPurpose, name string) (*otp.IssueResult, error)) {

	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	purpose, err := domain.ParseOTPPurpose(req.Type)
	if err != nil {
		httpError(w, err)
		return
	}

	// Registration codes are pointless for an address that already has an
	// account; surface the conflict before spending an issuance slot.
	if purpose == domain.PurposeRegistration {
		if _, err := h.users.GetByEmail(r.Context(), req.Email); err == nil {
			writeError(w, http.StatusConflict, "email already registered")
			return
		} else if !errors.Is(err, domain.ErrNotFound) {
			httpError(w, err)
			return
		}
	}

	result, err := issueFn(r.Context(), req.Email, purpose, req.Name)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPSendEnvelope{
		Success:           true,
		AttemptsRemaining: result.AttemptsRemaining,
		ExpiresIn:         result.ExpiresIn,
	})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	purpose, err := domain.ParseOTPPurpose(req.Type)
	if err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.Verify(r.Context(), req.Email, req.OTP, purpose); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPVerifyEnvelope{Success: true, Verified: true})
}

func (h *OTPHandler) CheckVerified(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	purpose, err := domain.ParseOTPPurpose(r.URL.Query().Get("type"))
	if email == "" || err != nil {
		writeError(w, http.StatusBadRequest, "email and type query parameters are required")
		return
	}
	verified, err := h.svc.IsVerified(r.Context(), email, purpose)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPVerifyEnvelope{Success: true, Verified: verified})
}

// Cleanup triggers the expired-record sweep on demand (admin only; the same
// sweep also runs on a timer from main).
func (h *OTPHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.CleanupExpired(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		Removed int  `json:"removed"`
	}{Success: true, Removed: removed})
}
