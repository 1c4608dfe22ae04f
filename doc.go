// Package auth implements the account and session backend for the
// secondchic API: signup, login/logout, email confirmation, and password
// reset, persisted via Bun and exposed over Fiber.
//
// Sessions:
//   - Sessions are stateless JWTs (HS256) minted by TokenService and
//     carried in an HTTP-only cookie or an Authorization header. Logout
//     overwrites the cookie with a short-lived sentinel; tokens are not
//     revoked server side.
//
// One-time tokens:
//   - Email confirmation and password reset use opaque random tokens.
//     Only the SHA-256 digest is stored, so a database leak never exposes
//     a usable link. Reset tokens additionally carry an expiry.
//
// Workflows:
//   - Auther owns the account workflows and issues a fresh session token
//     on every successful transition (signup, login, confirm, reset), so
//     the client ends each flow authenticated.
package auth
