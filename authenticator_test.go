package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/secondchic/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func tokenFromMailBody(t *testing.T, body, sep string) string {
	t.Helper()
	i := strings.LastIndex(body, sep)
	require.GreaterOrEqual(t, i, 0, "mail body should contain %q", sep)
	return body[i+len(sep):]
}

func TestSignup(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the user and sends the confirmation email", func(t *testing.T) {
		mailer := new(MockMailer)
		var mailBody string
		mailer.On("Send", mock.Anything, "ada@example.com", "Email confirmation token", mock.Anything).
			Run(func(args mock.Arguments) { mailBody = args.String(3) }).
			Return(nil).Once()

		auther, repo := newTestAuther(t, mailer)

		res, err := auther.Signup(ctx, signupFixture())
		require.NoError(t, err)
		require.NotNil(t, res.User)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, "ada@example.com", res.User.Email)
		assert.False(t, res.User.IsEmailConfirmed)

		mailer.AssertExpectations(t)
		assert.Contains(t, mailBody, "confirm your email address")

		// the persisted record holds only the token hash
		stored, err := repo.Users().GetByIdentifier(ctx, "ada@example.com")
		require.NoError(t, err)
		require.NotNil(t, stored.ConfirmEmailTokenHash)
		cleartext := tokenFromMailBody(t, mailBody, "token=")
		assert.Equal(t, auth.HashOneTimeToken(cleartext), *stored.ConfirmEmailTokenHash)
		assert.NotContains(t, mailBody, *stored.ConfirmEmailTokenHash)
	})

	t.Run("lowercases the email", func(t *testing.T) {
		mailer := new(MockMailer)
		mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		auther, _ := newTestAuther(t, mailer)

		msg := signupFixture()
		msg.Email = "Ada@Example.COM"

		res, err := auther.Signup(ctx, msg)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", res.User.Email)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		mailer := new(MockMailer)
		mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		auther, _ := newTestAuther(t, mailer)

		_, err := auther.Signup(ctx, signupFixture())
		require.NoError(t, err)

		msg := signupFixture()
		msg.Phone = "555-0199"
		_, err = auther.Signup(ctx, msg)
		assert.True(t, goerrors.Is(err, auth.ErrDuplicateKey))
	})

	t.Run("duplicate phone is rejected", func(t *testing.T) {
		mailer := new(MockMailer)
		mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		auther, _ := newTestAuther(t, mailer)

		_, err := auther.Signup(ctx, signupFixture())
		require.NoError(t, err)

		msg := signupFixture()
		msg.Email = "other@example.com"
		_, err = auther.Signup(ctx, msg)
		assert.True(t, goerrors.Is(err, auth.ErrDuplicateKey))
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		mailer := new(MockMailer)
		auther, _ := newTestAuther(t, mailer)

		msg := signupFixture()
		msg.Password = ""
		_, err := auther.Signup(ctx, msg)
		assert.Error(t, err)
		mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a failed confirmation email does not fail the signup", func(t *testing.T) {
		mailer := new(MockMailer)
		mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("smtp down")).Once()

		auther, repo := newTestAuther(t, mailer)

		res, err := auther.Signup(ctx, signupFixture())
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)

		_, err = repo.Users().GetByIdentifier(ctx, "ada@example.com")
		assert.NoError(t, err)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	auther, _ := newTestAuther(t, mailer)

	_, err := auther.Signup(ctx, signupFixture())
	require.NoError(t, err)

	t.Run("by email", func(t *testing.T) {
		res, err := auther.Login(ctx, "ada@example.com", "secret-password")
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, "ada@example.com", res.User.Email)
	})

	t.Run("by phone", func(t *testing.T) {
		res, err := auther.Login(ctx, "555-0100", "secret-password")
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", res.User.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		res, err := auther.Login(ctx, "ada@example.com", "wrong-password")
		assert.Nil(t, res)
		assert.True(t, goerrors.Is(err, auth.ErrInvalidCredentials))
	})

	t.Run("unknown identifier gets the same error as a wrong password", func(t *testing.T) {
		res, err := auther.Login(ctx, "nobody@example.com", "secret-password")
		assert.Nil(t, res)
		assert.True(t, goerrors.Is(err, auth.ErrInvalidCredentials))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := auther.Login(ctx, "", "secret-password")
		assert.True(t, goerrors.Is(err, auth.ErrMissingCredentials))

		_, err = auther.Login(ctx, "ada@example.com", "")
		assert.True(t, goerrors.Is(err, auth.ErrMissingCredentials))
	})
}

func TestForgotPassword(t *testing.T) {
	ctx := context.Background()
	resetBase := "http://localhost/api/v1/secondchic/auth/resetpassword/"

	t.Run("stores the token hash and emails the link", func(t *testing.T) {
		mailer := new(MockMailer)
		mailer.On("Send", mock.Anything, mock.Anything, "Email confirmation token", mock.Anything).Return(nil).Once()

		var mailBody string
		mailer.On("Send", mock.Anything, "ada@example.com", "Password reset token", mock.Anything).
			Run(func(args mock.Arguments) { mailBody = args.String(3) }).
			Return(nil).Once()

		auther, repo := newTestAuther(t, mailer)
		_, err := auther.Signup(ctx, signupFixture())
		require.NoError(t, err)

		require.NoError(t, auther.ForgotPassword(ctx, "ada@example.com", resetBase))
		mailer.AssertExpectations(t)
		assert.Contains(t, mailBody, "requested the reset of a password")

		cleartext := tokenFromMailBody(t, mailBody, "/auth/resetpassword/")
		stored, err := repo.Users().GetByIdentifier(ctx, "ada@example.com")
		require.NoError(t, err)
		require.NotNil(t, stored.ResetPasswordTokenHash)
		assert.Equal(t, auth.HashOneTimeToken(cleartext), *stored.ResetPasswordTokenHash)
		require.NotNil(t, stored.ResetPasswordExpiresAt)
		assert.True(t, stored.ResetPasswordExpiresAt.After(time.Now()))
	})

	t.Run("unknown email", func(t *testing.T) {
		mailer := new(MockMailer)
		auther, _ := newTestAuther(t, mailer)

		err := auther.ForgotPassword(ctx, "nobody@example.com", resetBase)
		assert.True(t, goerrors.Is(err, auth.ErrUserNotFound))
		mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rolls the token back when the email cannot be sent", func(t *testing.T) {
		mailer := new(MockMailer)
		mailer.On("Send", mock.Anything, mock.Anything, "Email confirmation token", mock.Anything).Return(nil).Once()

		var mailBody string
		mailer.On("Send", mock.Anything, mock.Anything, "Password reset token", mock.Anything).
			Run(func(args mock.Arguments) { mailBody = args.String(3) }).
			Return(errors.New("smtp down")).Once()

		auther, repo := newTestAuther(t, mailer)
		_, err := auther.Signup(ctx, signupFixture())
		require.NoError(t, err)

		err = auther.ForgotPassword(ctx, "ada@example.com", resetBase)
		assert.True(t, goerrors.Is(err, auth.ErrEmailDispatchFailed))

		stored, err := repo.Users().GetByIdentifier(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Nil(t, stored.ResetPasswordTokenHash)
		assert.Nil(t, stored.ResetPasswordExpiresAt)

		// the minted token must not be usable either
		cleartext := tokenFromMailBody(t, mailBody, "/auth/resetpassword/")
		_, err = auther.ResetPassword(ctx, cleartext, "new-password")
		assert.True(t, goerrors.Is(err, auth.ErrInvalidOrExpiredToken))
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	resetBase := "http://localhost/api/v1/secondchic/auth/resetpassword/"

	forgot := func(t *testing.T, auther *auth.Auther, mailer *MockMailer) string {
		t.Helper()

		var mailBody string
		mailer.On("Send", mock.Anything, mock.Anything, "Password reset token", mock.Anything).
			Run(func(args mock.Arguments) { mailBody = args.String(3) }).
			Return(nil).Once()

		require.NoError(t, auther.ForgotPassword(ctx, "ada@example.com", resetBase))
		return tokenFromMailBody(t, mailBody, "/auth/resetpassword/")
	}

	t.Run("replaces the password and consumes the token", func(t *testing.T) {
		mailer := new(MockMailer)
		mailer.On("Send", mock.Anything, mock.Anything, "Email confirmation token", mock.Anything).Return(nil).Once()

		auther, _ := newTestAuther(t, mailer)
		_, err := auther.Signup(ctx, signupFixture())
		require.NoError(t, err)

		cleartext := forgot(t, auther, mailer)

		res, err := auther.ResetPassword(ctx, cleartext, "new-password")
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.True(t, res.User.IsEmailConfirmed, "a consumed reset link proves inbox control")

		_, err = auther.Login(ctx, "ada@example.com", "new-password")
		assert.NoError(t, err)

		_, err = auther.Login(ctx, "ada@example.com", "secret-password")
		assert.True(t, goerrors.Is(err, auth.ErrInvalidCredentials))

		// single use
		_, err = auther.ResetPassword(ctx, cleartext, "another-password")
		assert.True(t, goerrors.Is(err, auth.ErrInvalidOrExpiredToken))
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		mailer := new(MockMailer)
		mailer.On("Send", mock.Anything, mock.Anything, "Email confirmation token", mock.Anything).Return(nil).Once()

		repo := auth.NewRepositoryManager(newTestDB(t))
		auther := auth.NewAuthenticator(repo, mailer, testConfig{resetTokenTTL: time.Nanosecond})

		_, err := auther.Signup(ctx, signupFixture())
		require.NoError(t, err)

		cleartext := forgot(t, auther, mailer)
		time.Sleep(10 * time.Millisecond)

		_, err = auther.ResetPassword(ctx, cleartext, "new-password")
		assert.True(t, goerrors.Is(err, auth.ErrInvalidOrExpiredToken))
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		mailer := new(MockMailer)
		auther, _ := newTestAuther(t, mailer)

		_, err := auther.ResetPassword(ctx, "not-a-token", "new-password")
		assert.True(t, goerrors.Is(err, auth.ErrInvalidOrExpiredToken))
	})
}

func TestConfirmEmail(t *testing.T) {
	ctx := context.Background()

	signupAndCapture := func(t *testing.T) (*auth.Auther, auth.RepositoryManager, string) {
		t.Helper()

		mailer := new(MockMailer)
		var mailBody string
		mailer.On("Send", mock.Anything, mock.Anything, "Email confirmation token", mock.Anything).
			Run(func(args mock.Arguments) { mailBody = args.String(3) }).
			Return(nil).Once()

		auther, repo := newTestAuther(t, mailer)
		_, err := auther.Signup(ctx, signupFixture())
		require.NoError(t, err)

		return auther, repo, tokenFromMailBody(t, mailBody, "token=")
	}

	t.Run("marks the email confirmed", func(t *testing.T) {
		auther, repo, cleartext := signupAndCapture(t)

		res, err := auther.ConfirmEmail(ctx, cleartext)
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.True(t, res.User.IsEmailConfirmed)

		stored, err := repo.Users().GetByIdentifier(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.True(t, stored.IsEmailConfirmed)
		assert.Nil(t, stored.ConfirmEmailTokenHash)
	})

	t.Run("ignores a dotted suffix on the link token", func(t *testing.T) {
		auther, _, cleartext := signupAndCapture(t)

		_, err := auther.ConfirmEmail(ctx, cleartext+".checksum")
		assert.NoError(t, err)
	})

	t.Run("tokens are single use", func(t *testing.T) {
		auther, _, cleartext := signupAndCapture(t)

		_, err := auther.ConfirmEmail(ctx, cleartext)
		require.NoError(t, err)

		_, err = auther.ConfirmEmail(ctx, cleartext)
		assert.True(t, goerrors.Is(err, auth.ErrInvalidOrExpiredToken))
	})

	t.Run("empty and unknown tokens are rejected", func(t *testing.T) {
		auther, _, _ := signupAndCapture(t)

		_, err := auther.ConfirmEmail(ctx, "")
		assert.True(t, goerrors.Is(err, auth.ErrInvalidOrExpiredToken))

		_, err = auther.ConfirmEmail(ctx, "not-a-token")
		assert.True(t, goerrors.Is(err, auth.ErrInvalidOrExpiredToken))
	})
}

func TestIdentityFromClaims(t *testing.T) {
	ctx := context.Background()

	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	auther, _ := newTestAuther(t, mailer)

	res, err := auther.Signup(ctx, signupFixture())
	require.NoError(t, err)

	t.Run("resolves the user behind a validated token", func(t *testing.T) {
		claims, err := auther.TokenService().Validate(res.Token)
		require.NoError(t, err)

		user, err := auther.IdentityFromClaims(ctx, claims)
		require.NoError(t, err)
		assert.Equal(t, res.User.GetID(), user.GetID())
	})

	t.Run("stale claims do not resolve", func(t *testing.T) {
		stale := &auth.User{Email: "gone@example.com"}
		token, err := auther.TokenService().Generate(stale)
		require.NoError(t, err)

		claims, err := auther.TokenService().Validate(token)
		require.NoError(t, err)

		_, err = auther.IdentityFromClaims(ctx, claims)
		assert.Error(t, err)
	})
}
