package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rizara/luxe-api/internal/config"
	"github.com/rizara/luxe-api/internal/domain"
	jwtinfra "github.com/rizara/luxe-api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	p, err := jwtinfra.NewProvider(&config.Config{
		JWTSecret:     "test-secret",
		JWTExpiryDays: 7,
	})
	require.NoError(t, err)
	return p
}

func okHandler(seen *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = true
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims.UserID == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_MissingHeader(t *testing.T) {
	var seen bool
	h := Auth(testProvider(t))(okHandler(&seen))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, seen)
}

func TestAuth_GarbageToken(t *testing.T) {
	var seen bool
	h := Auth(testProvider(t))(okHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, seen)
}

func TestAuth_ValidSessionToken(t *testing.T) {
	p := testProvider(t)
	token, err := p.SignSession(&domain.User{UserID: "u1", Email: "a@x.com", Name: "Amira"})
	require.NoError(t, err)

	var seen bool
	h := Auth(p)(okHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, seen)
}

func TestAuth_EmailVerificationTokenRejected(t *testing.T) {
	p := testProvider(t)

	// Tokens minted by the retired link-based verification flow are validly
	// signed but carry type "email_verification".
	claims := jwtinfra.Claims{
		UserID:    "u1",
		Email:     "a@x.com",
		TokenType: jwtinfra.TokenTypeEmailVerification,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	var seen bool
	h := Auth(p)(okHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code, "link-verification tokens are not session tokens")
	assert.False(t, seen)
}
