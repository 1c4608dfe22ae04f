// Package mailer delivers the workflow emails (confirmation and password
// reset tokens) over SMTP.
package mailer

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// Config holds the SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	Insecure bool
}

// SMTPMailer sends plain-text messages through an SMTP relay.
type SMTPMailer struct {
	lg zerolog.Logger

	host     string
	port     int
	user     string
	pass     string
	from     string
	insecure bool

	timeout time.Duration
}

// NewSMTPMailer builds a mailer from the given config.
func NewSMTPMailer(cfg Config, lg zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{
		lg:       lg.With().Str("component", "smtp_mailer").Logger(),
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.Username,
		pass:     cfg.Password,
		from:     cfg.From,
		insecure: cfg.Insecure,
		timeout:  cfg.Timeout,
	}
}

// Send delivers a single plain-text message. The context bounds the dial
// and the SMTP conversation.
func (s *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid from address")
	}
	if err := m.To(to); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid to address")
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	tlsPolicy := mail.TLSMandatory
	if s.insecure {
		tlsPolicy = mail.TLSOpportunistic
	}

	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if s.user != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithUsername(s.user), mail.WithPassword(s.pass))
	}

	c, err := mail.NewClient(s.host, opts...)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "smtp client init failed")
	}

	s.lg.Info().Str("host", s.host).Int("port", s.port).Str("to", to).Str("subject", subject).Msg("attempting smtp send")
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		s.lg.Error().Err(err).Str("to", to).Msg("smtp send failed")
		return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp send failed")
	}

	s.lg.Info().Str("to", to).Msg("smtp send ok")
	return nil
}

// LogMailer logs messages instead of sending them. Handy for local
// development without an SMTP relay.
type LogMailer struct {
	lg zerolog.Logger
}

func NewLogMailer(lg zerolog.Logger) *LogMailer {
	return &LogMailer{lg: lg.With().Str("component", "log_mailer").Logger()}
}

func (l *LogMailer) Send(_ context.Context, to, subject, body string) error {
	l.lg.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("mail (not sent)")
	return nil
}
