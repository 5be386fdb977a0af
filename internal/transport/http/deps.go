package http

import (
	"github.com/rizara/luxe-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/rizara/luxe-api/internal/infrastructure/jwt"
	"github.com/rizara/luxe-api/internal/infrastructure/smtp"
	"github.com/rizara/luxe-api/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router. Everything is
// passed explicitly — no package-level singletons.
type Deps struct {
	UserRepo    *dynamo.UserRepo
	OTPRepo     *dynamo.OTPRepo
	Mailer      smtp.Mailer
	SMSSender   sns.SMSSender // may be nil
	JWTProvider *jwtinfra.Provider
}
