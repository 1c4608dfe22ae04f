package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// RouteAuthenticator owns the HTTP side of a session: issuing the cookie
// with each token response and invalidating it on logout.
type RouteAuthenticator struct {
	cfg            Config
	cookieDuration time.Duration
	Logger         Logger
}

// NewHTTPAuthenticator returns a RouteAuthenticator for the given config.
func NewHTTPAuthenticator(cfg Config) *RouteAuthenticator {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	return &RouteAuthenticator{
		cfg:            cfg,
		cookieDuration: cookieDuration,
		Logger:         defLogger{},
	}
}

// SendTokenResponse writes the success envelope for any workflow step
// that authenticated the caller: session cookie plus token and user view
// in the body, so the client ends the flow already signed in.
func (a *RouteAuthenticator) SendTokenResponse(c *fiber.Ctx, res *AuthResult) error {
	a.setCookieToken(c, res.Token, a.cookieDuration)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"token":   res.Token,
		"user":    res.User.View(),
	})
}

// Logout overwrites the session cookie with the immediate-expiry sentinel.
// The token itself stays valid until expiry, there is no revocation list.
func (a *RouteAuthenticator) Logout(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    "none",
		Expires:  time.Now().Add(10 * time.Second),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) setCookieToken(c *fiber.Ctx, val string, duration time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// ErrorHandler is the single boundary between the error taxonomy and HTTP
// responses. Internal detail never reaches the client; unknown errors are
// flattened to a generic message.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Server Error"

		var richErr *goerrors.Error
		var fiberErr *fiber.Error

		switch {
		case goerrors.As(err, &richErr):
			status = richErrorStatus(richErr)
			message = richErr.Message
		case goerrors.As(err, &fiberErr):
			status = fiberErr.Code
			message = fiberErr.Message
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed", "status", status, "path", c.Path(), "error", err)
		} else {
			logger.Info("request rejected", "status", status, "path", c.Path(), "error", message)
		}

		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}

func richErrorStatus(richErr *goerrors.Error) int {
	if richErr.Code > 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return fiber.StatusUnauthorized
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return fiber.StatusBadRequest
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}
