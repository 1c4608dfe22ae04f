package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/secondchic/auth"
	"github.com/secondchic/auth/mailer"
	"github.com/secondchic/auth/middleware/jwtware"
)

func main() {
	cfg := auth.LoadConfig()
	lg := newLogger(cfg)

	if cfg.GetSigningKey() == "" {
		lg.Fatal().Msg("JWT_SECRET is required")
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
	if err != nil {
		lg.Fatal().Err(err).Msg("open database")
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := auth.CreateUsersTable(ctx, db); err != nil {
		lg.Fatal().Err(err).Msg("create users table")
	}

	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	logAdapter := auth.NewZerologAdapter(lg)

	var dispatcher auth.Mailer
	if cfg.SMTPHost != "" {
		dispatcher = mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  cfg.SMTPTimeout,
			Insecure: cfg.SMTPInsecure,
		}, lg)
	} else {
		lg.Warn().Msg("SMTP_HOST not set, emails will be logged instead of sent")
		dispatcher = mailer.NewLogMailer(lg)
	}

	auther := auth.NewAuthenticator(repo, dispatcher, cfg).WithLogger(logAdapter)

	httpAuth := auth.NewHTTPAuthenticator(cfg)
	httpAuth.Logger = logAdapter

	controller := auth.NewAuthController(
		auth.WithAuther(auther),
		auth.WithHTTPAuthenticator(httpAuth),
		auth.WithControllerLogger(logAdapter),
		auth.WithBasePath(cfg.BasePath),
		auth.WithDebug(cfg.Debug),
	)

	app := fiber.New(fiber.Config{
		AppName:      "secondchic-auth",
		ErrorHandler: auth.ErrorHandler(logAdapter),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(cors.New())
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
	}))
	app.Use(requestLogger(lg))

	app.Static("/", cfg.StaticDir)

	guard := jwtware.New(jwtware.Config{
		ContextKey:     cfg.GetContextKey(),
		TokenLookup:    cfg.GetTokenLookup(),
		AuthScheme:     cfg.GetAuthScheme(),
		TokenValidator: tokenValidator{ts: auther.TokenService()},
		ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
			if ac, ok := claims.(auth.AuthClaims); ok {
				return auth.WithClaimsContext(ctx, ac)
			}
			return ctx
		},
	})

	api := app.Group(cfg.BasePath)
	auth.RegisterAuthRoutes(api.Group("/auth"), controller, guard)

	go func() {
		lg.Info().Str("addr", cfg.Addr).Str("base_path", cfg.BasePath).Msg("server listening")
		if err := app.Listen(cfg.Addr); err != nil {
			lg.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	lg.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		lg.Error().Err(err).Msg("shutdown")
	}
	if err := db.Close(); err != nil {
		lg.Error().Err(err).Msg("close database")
	}
}

// tokenValidator adapts the session token service to the guard interface.
type tokenValidator struct {
	ts auth.TokenService
}

func (v tokenValidator) Validate(raw string) (jwtware.AuthClaims, error) {
	claims, err := v.ts.Validate(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func newLogger(cfg *auth.EnvConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.LogFormat == "json" {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func requestLogger(lg zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		lg.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("latency", time.Since(start)).
			Str("request_id", requestID(c)).
			Msg("request")

		return err
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}
