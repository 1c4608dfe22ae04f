package auth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/secondchic/auth"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// MockMailer implements auth.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// testConfig is a fixed auth.Config for tests
type testConfig struct {
	resetTokenTTL time.Duration
}

func (c testConfig) GetSigningKey() string   { return "test-signing-key" }
func (c testConfig) GetContextKey() string   { return "token" }
func (c testConfig) GetTokenExpiration() int { return 1 }
func (c testConfig) GetTokenLookup() string  { return "cookie:token,header:Authorization" }
func (c testConfig) GetAuthScheme() string   { return "Bearer" }
func (c testConfig) GetIssuer() string       { return "test-issuer" }
func (c testConfig) GetAudience() []string   { return []string{"test:audience"} }
func (c testConfig) GetResetTokenTTL() time.Duration {
	if c.resetTokenTTL > 0 {
		return c.resetTokenTTL
	}
	return 10 * time.Minute
}
func (c testConfig) GetUseHashIDs() bool { return false }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, auth.CreateUsersTable(context.Background(), db))

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func newTestAuther(t *testing.T, mailer auth.Mailer) (*auth.Auther, auth.RepositoryManager) {
	t.Helper()

	repo := auth.NewRepositoryManager(newTestDB(t))
	repo.MustValidate()

	return auth.NewAuthenticator(repo, mailer, testConfig{}), repo
}

func signupFixture() auth.SignupMessage {
	return auth.SignupMessage{
		FirstName:           "Ada",
		LastName:            "Lovelace",
		Email:               "ada@example.com",
		Phone:               "555-0100",
		Password:            "secret-password",
		ConfirmEmailBaseURL: "http://localhost/api/v1/secondchic/auth/confirmemail?token=",
	}
}
