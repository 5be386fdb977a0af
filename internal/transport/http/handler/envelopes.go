package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rizara/luxe-api/internal/application/otp"
	"github.com/rizara/luxe-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OTPSendEnvelope wraps send/resend responses.
type OTPSendEnvelope struct {
	Success           bool `json:"success"`
	AttemptsRemaining int  `json:"attemptsRemaining"`
	ExpiresIn         int  `json:"expiresIn"` // seconds
}

// OTPVerifyEnvelope wraps verify and check-verified responses.
type OTPVerifyEnvelope struct {
	Success  bool `json:"success"`
	Verified bool `json:"verified"`
}

// RegisterEnvelope tells the client the registration is OTP-gated.
type RegisterEnvelope struct {
	Success     bool   `json:"success"`
	RequiresOTP bool   `json:"requiresOTP"`
	Message     string `json:"message,omitempty"`
}

// AuthEnvelope wraps completed registration responses.
type AuthEnvelope struct {
	Success bool      `json:"success"`
	User    *SafeUser `json:"user,omitempty"`
	Token   string    `json:"token,omitempty"`
}

// SafeUser is the client-facing user shape, without internal flags.
type SafeUser struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         *string   `json:"phone,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created"`
}

func toSafeUser(u *domain.User) *SafeUser {
	if u == nil {
		return nil
	}
	return &SafeUser{
		ID:            u.UserID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps domain sentinels to HTTP status codes. Anything unmapped is
// an internal error: logged in full, surfaced generically.
func httpError(w http.ResponseWriter, err error) {
	var rle *otp.RateLimitError
	switch {
	case errors.As(err, &rle):
		w.Header().Set("Retry-After", strconv.Itoa(rle.ResetIn*60))
		writeError(w, http.StatusTooManyRequests, rle.Message)
	case errors.Is(err, domain.ErrOTPExpired):
		writeError(w, http.StatusBadRequest, "OTP has expired, please request a new one")
	case errors.Is(err, domain.ErrOTPInvalid):
		writeError(w, http.StatusBadRequest, "Invalid OTP")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many requests")
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
