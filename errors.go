package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to clients through the boundary error handler.
const (
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeDuplicateKey       = "DUPLICATE_KEY"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeMailDispatch       = "MAIL_DISPATCH_FAILED"
)

// ErrInvalidCredentials is returned for a failed login. The wording is
// identical whether the identifier is unknown or the password is wrong.
var ErrInvalidCredentials = goerrors.New("Invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingCredentials is returned when the login payload lacks a field.
var ErrMissingCredentials = goerrors.New("Please provide an email and password", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the low-level comparison failure; login
// folds it into ErrInvalidCredentials before it reaches a client.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrDuplicateKey is returned when a signup collides with an existing
// email or phone.
var ErrDuplicateKey = goerrors.New("Duplicate field value entered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateKey).
	WithCode(goerrors.CodeBadRequest)

// ErrUserNotFound is returned by forgot-password for an unknown email.
var ErrUserNotFound = goerrors.New("There is no user with that email", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidOrExpiredToken covers confirmation and reset tokens that do
// not match an outstanding record. Expired reset tokens are deliberately
// indistinguishable from unknown ones.
var ErrInvalidOrExpiredToken = goerrors.New("Invalid token", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrEmailDispatchFailed is returned when the mail client could not
// deliver, after any token state written for the message was rolled back.
var ErrEmailDispatchFailed = goerrors.New("Email could not be sent", goerrors.CategoryInternal).
	WithTextCode(TextCodeMailDispatch).
	WithCode(goerrors.CodeInternal)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrUnableToFindSession is returned when the request carries no session
// token in the cookie or Authorization header.
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession is returned when claims cannot be decoded from
// an otherwise well-formed token.
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for session tokens past their expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for session tokens that fail to parse or
// carry a bad signature.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
