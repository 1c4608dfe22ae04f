package auth

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvConfig is the environment-backed configuration for the service. It
// implements the Config interface consumed by the authenticator and the
// session guard.
type EnvConfig struct {
	Addr      string
	BasePath  string
	StaticDir string

	DatabaseDSN string

	SigningKey      string
	Issuer          string
	Audience        []string
	TokenExpiration int
	ContextKey      string
	TokenLookup     string
	AuthScheme      string
	ResetTokenTTL   time.Duration
	UseHashIDs      bool

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTimeout  time.Duration
	SMTPInsecure bool

	RateLimitMax    int
	RateLimitWindow time.Duration

	LogLevel  string
	LogFormat string

	Debug bool
}

var _ Config = (*EnvConfig)(nil)

// LoadConfig reads a .env file when present and builds the configuration
// from the process environment.
func LoadConfig() *EnvConfig {
	// missing .env is fine, env vars may come from the host
	_ = godotenv.Load()

	return &EnvConfig{
		Addr:      ":" + envStr("PORT", "3000"),
		BasePath:  envStr("BASE_PATH", "/api/v1/secondchic"),
		StaticDir: envStr("STATIC_DIR", "./public"),

		DatabaseDSN: envStr("DATABASE_DSN", "file::memory:?cache=shared"),

		SigningKey:      envStr("JWT_SECRET", ""),
		Issuer:          envStr("JWT_ISSUER", "secondchic"),
		Audience:        envList("JWT_AUDIENCE"),
		TokenExpiration: envInt("TOKEN_EXPIRATION_HOURS", 24),
		ContextKey:      envStr("AUTH_COOKIE_NAME", "token"),
		TokenLookup:     envStr("AUTH_TOKEN_LOOKUP", "cookie:token,header:Authorization"),
		AuthScheme:      envStr("AUTH_SCHEME", "Bearer"),
		ResetTokenTTL:   envDuration("RESET_TOKEN_TTL", DefaultResetTokenTTL),
		UseHashIDs:      envBool("USE_HASH_IDS", false),

		SMTPHost:     envStr("SMTP_HOST", ""),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: envStr("SMTP_USERNAME", ""),
		SMTPPassword: envStr("SMTP_PASSWORD", ""),
		SMTPFrom:     envStr("SMTP_FROM", "noreply@secondchic.com"),
		SMTPTimeout:  envDuration("SMTP_TIMEOUT", 10*time.Second),
		SMTPInsecure: envBool("SMTP_INSECURE", false),

		RateLimitMax:    envInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: envDuration("RATE_LIMIT_WINDOW", 10*time.Minute),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", ""),

		Debug: envBool("DEBUG", false),
	}
}

func (c *EnvConfig) GetSigningKey() string           { return c.SigningKey }
func (c *EnvConfig) GetContextKey() string           { return c.ContextKey }
func (c *EnvConfig) GetTokenExpiration() int         { return c.TokenExpiration }
func (c *EnvConfig) GetTokenLookup() string          { return c.TokenLookup }
func (c *EnvConfig) GetAuthScheme() string           { return c.AuthScheme }
func (c *EnvConfig) GetIssuer() string               { return c.Issuer }
func (c *EnvConfig) GetAudience() []string           { return c.Audience }
func (c *EnvConfig) GetResetTokenTTL() time.Duration { return c.ResetTokenTTL }
func (c *EnvConfig) GetUseHashIDs() bool             { return c.UseHashIDs }

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
