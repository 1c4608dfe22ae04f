// Package jwtware is the session guard: it extracts the session token
// from the request, validates it, and attaches the resolved claims to the
// request before any protected handler runs.
package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup       = "cookie:token,header:" + fiber.HeaderAuthorization
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// TokenValidator interface for validating tokens without import cycles.
// This mirrors the TokenService.Validate method from the auth package.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims interface for structured claims without import cycles.
// This mirrors the AuthClaims interface from the auth package.
type AuthClaims interface {
	Subject() string
	UserID() string
}

type Config struct {
	// Filter skips the guard when it returns true.
	Filter func(*fiber.Ctx) bool
	// SuccessHandler runs after validation; defaults to c.Next().
	SuccessHandler fiber.Handler
	// ErrorHandler maps extraction/validation failures to a response.
	ErrorHandler func(*fiber.Ctx, error) error
	// ContextKey is where validated claims land in c.Locals.
	ContextKey string
	// TokenLookup is a comma list of "source:name" extractors, tried in
	// order. Supported sources: cookie, header, query.
	TokenLookup string
	// AuthScheme strips a scheme prefix from header values, e.g. "Bearer".
	AuthScheme string
	// TokenValidator is required for token validation.
	TokenValidator TokenValidator
	// ContextEnricher propagates claims to the standard Go context after
	// successful validation.
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context
}

// New builds the guard middleware.
func New(config ...Config) fiber.Handler {
	cfg := getDefaultConfig(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := extractRawToken(c, cfg)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, claims)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), claims))
		}

		return cfg.SuccessHandler(c)
	}
}

func getDefaultConfig(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   ErrJWTMissingOrMalformed.Error(),
			})
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.TokenValidator == nil {
		panic("jwtware: TokenValidator is required")
	}

	return cfg
}

func extractRawToken(c *fiber.Ctx, cfg Config) (string, error) {
	for _, lookup := range strings.Split(cfg.TokenLookup, ",") {
		source, name, found := strings.Cut(strings.TrimSpace(lookup), ":")
		if !found {
			continue
		}

		var raw string
		switch source {
		case "cookie":
			raw = c.Cookies(name)
		case "header":
			raw = stripScheme(c.Get(name), cfg.AuthScheme)
		case "query":
			raw = c.Query(name)
		}

		if raw != "" {
			return raw, nil
		}
	}

	return "", ErrJWTMissingOrMalformed
}

func stripScheme(value, scheme string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	if scheme == "" {
		return value
	}

	if len(value) > len(scheme) && strings.EqualFold(value[:len(scheme)], scheme) {
		return strings.TrimSpace(value[len(scheme):])
	}

	return value
}
