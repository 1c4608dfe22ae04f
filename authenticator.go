package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// Auther runs the account workflows: signup, login, forgot password,
// reset password, and email confirmation. Each successful mutating
// transition re-issues a session token so the client ends the flow
// already authenticated.
type Auther struct {
	repo          RepositoryManager
	mailer        Mailer
	tokenService  TokenService
	resetTokenTTL time.Duration
	useHashIDs    bool
	logger        Logger
}

// NewAuthenticator returns a new Auther wired to the given store and mail
// dispatcher.
func NewAuthenticator(repo RepositoryManager, mailer Mailer, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		repo:          repo,
		mailer:        mailer,
		tokenService:  tokenService,
		resetTokenTTL: opts.GetResetTokenTTL(),
		useHashIDs:    opts.GetUseHashIDs(),
		logger:        defLogger{},
	}
}

// WithLogger replaces the logger.
func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithTokenService replaces the session token service.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Auther.
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// AuthResult is the outcome of a workflow step that authenticates the
// caller: a fresh session token plus the user it belongs to.
type AuthResult struct {
	Token string
	User  *User
}

// SignupMessage carries the signup input. ConfirmEmailBaseURL is the
// request-derived prefix the confirmation token gets appended to.
type SignupMessage struct {
	FirstName           string
	LastName            string
	Email               string
	Phone               string
	DOB                 *time.Time
	Password            string
	ConfirmEmailBaseURL string
}

// Signup creates the user, mints its confirmation token, dispatches the
// confirmation email, and returns a session token. A failed confirmation
// email does not fail the signup; the link can be re-requested later.
func (s *Auther) Signup(ctx context.Context, msg SignupMessage) (*AuthResult, error) {
	hash, err := HashPassword(msg.Password)
	if err != nil {
		if richErr := asRichError(err); richErr != nil {
			return nil, goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		FirstName:    msg.FirstName,
		LastName:     msg.LastName,
		Email:        msg.Email,
		Phone:        msg.Phone,
		DOB:          msg.DOB,
		PasswordHash: hash,
	}

	if s.useHashIDs {
		if id, err := hashid.NewUUID(msg.Email); err == nil {
			user.ID = id
		}
	}

	confirmToken, err := MintOneTimeToken()
	if err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if user, err = s.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return err
		}

		user.SetConfirmEmailTokenHash(confirmToken.Hash)
		if user, err = s.repo.Users().SaveTx(ctx, tx, user, false); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.mailer.Send(ctx,
		user.Email,
		"Email confirmation token",
		confirmEmailBody(msg.ConfirmEmailBaseURL+confirmToken.Cleartext),
	); err != nil {
		s.logger.Warn("Signup confirmation email dispatch failed", "email", user.Email, "error", err)
	}

	return s.authResult(user)
}

// Login verifies the identifier/password pair and issues a session token.
// Unknown identifiers and bad passwords produce the same error.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	if identifier == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Info("Login unknown identifier", "identifier", identifier)
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if goerrors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify credentials")
	}

	return s.authResult(user)
}

// ForgotPassword mints a reset token, persists its hash and expiry, and
// emails the reset link. If the email cannot be dispatched the stored
// token fields are rolled back so no dangling valid token survives.
func (s *Auther) ForgotPassword(ctx context.Context, email, resetBaseURL string) error {
	user, err := s.repo.Users().GetByIdentifier(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	resetToken, expiresAt, err := MintResetToken(s.resetTokenTTL)
	if err != nil {
		return err
	}

	user.SetResetPasswordToken(resetToken.Hash, expiresAt)
	if user, err = s.repo.Users().Save(ctx, user, false); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset token")
	}

	err = s.mailer.Send(ctx,
		user.Email,
		"Password reset token",
		resetEmailBody(resetBaseURL+resetToken.Cleartext),
	)
	if err != nil {
		s.logger.Error("ForgotPassword email dispatch failed, rolling back token", "email", user.Email, "error", err)

		user.ClearResetPasswordToken()
		if _, rbErr := s.repo.Users().Save(ctx, user, false); rbErr != nil {
			s.logger.Error("ForgotPassword token rollback failed", "email", user.Email, "error", rbErr)
		}

		return ErrEmailDispatchFailed
	}

	return nil
}

// ResetPassword consumes an unexpired reset token, stores the new
// password hash, clears the token fields, and issues a session token.
// Consuming the token also confirms the email address: following the
// reset link proves control of the inbox.
func (s *Auther) ResetPassword(ctx context.Context, rawToken, password string) (*AuthResult, error) {
	user, err := s.repo.Users().GetByResetTokenHash(ctx, HashOneTimeToken(rawToken), time.Now())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve reset token")
	}

	hash, err := HashPassword(password)
	if err != nil {
		if richErr := asRichError(err); richErr != nil {
			return nil, goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user.PasswordHash = hash
	user.ClearResetPasswordToken()
	user.IsEmailConfirmed = true

	if user, err = s.repo.Users().Save(ctx, user, false); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password")
	}

	return s.authResult(user)
}

// ConfirmEmail consumes a confirmation token, marking the user confirmed
// and issuing a session token. Any suffix after the first "." in the raw
// token is ignored, see NormalizeConfirmationToken.
func (s *Auther) ConfirmEmail(ctx context.Context, rawToken string) (*AuthResult, error) {
	if rawToken == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	hash := HashOneTimeToken(NormalizeConfirmationToken(rawToken))

	user, err := s.repo.Users().GetByConfirmEmailTokenHash(ctx, hash)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve confirmation token")
	}

	user.ClearConfirmEmailToken()
	if user, err = s.repo.Users().Save(ctx, user, false); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm email")
	}

	return s.authResult(user)
}

// IdentityFromClaims resolves validated session claims back to the stored
// user record.
func (s *Auther) IdentityFromClaims(ctx context.Context, claims AuthClaims) (*User, error) {
	user, err := s.repo.Users().GetByIdentifier(ctx, claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUnableToDecodeSession
		}
		return nil, err
	}
	return user, nil
}

func (s *Auther) authResult(user *User) (*AuthResult, error) {
	token, err := s.tokenService.Generate(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func asRichError(err error) *goerrors.Error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return nil
}

func confirmEmailBody(url string) string {
	return "You are receiving this email because you need to confirm your email address. Please make a GET request to: \n\n " + url
}

func resetEmailBody(url string) string {
	return "You are receiving this email because you (or someone else) has requested the reset of a password. Please make a PUT request to: \n\n " + url
}
