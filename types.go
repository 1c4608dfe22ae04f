package auth

import (
	"context"
	"time"
)

// Logger is the minimal logging surface the package depends on.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated identity.
type Identity interface {
	GetID() string
	GetEmail() string
}

// TokenService mints and validates session tokens.
type TokenService interface {
	Generate(identity Identity) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidator validates tokens and extracts claims without tying
// callers to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// Mailer dispatches a single message. Implementations are synchronous;
// callers treat a returned error as "not delivered".
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetResetTokenTTL() time.Duration
	GetUseHashIDs() bool
}
