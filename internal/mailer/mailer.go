package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/wneessen/go-mail"
)

// Config holds the SMTP settings for the mailer.
type Config struct {
	Host        string `env:"SMTP_HOST" envDefault:"localhost"`
	Port        int    `env:"SMTP_PORT" envDefault:"587"`
	Username    string `env:"SMTP_USERNAME"`
	Password    string `env:"SMTP_PASSWORD"`
	FromAddress string `env:"SMTP_FROM_ADDRESS" envDefault:"no-reply@chautari.app"`
	FromName    string `env:"SMTP_FROM_NAME" envDefault:"Chautari"`
	Encryption  string `env:"SMTP_ENCRYPTION" envDefault:"starttls"`
}

// Mailer sends transactional email over SMTP. Sends run through a circuit
// breaker so a flapping mail relay does not pile up worker retries.
type Mailer struct {
	client  *mail.Client
	breaker *gobreaker.CircuitBreaker[any]
	cfg     Config
	logger  *slog.Logger
}

// New creates a mailer from the given config.
func New(cfg Config, logger *slog.Logger) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
		)
	}
	if cfg.Password != "" {
		opts = append(opts, mail.WithPassword(cfg.Password))
	}

	switch cfg.Encryption {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}

	settings := gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Mailer{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	from := m.cfg.FromAddress
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.FromAddress)
	}
	if err := msg.From(from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	_, err := m.breaker.Execute(func() (any, error) {
		return nil, m.client.DialAndSendWithContext(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	m.logger.DebugContext(ctx, "sent email", slog.String("subject", subject))
	return nil
}

// SendVerificationCode mails the email verification code to a new or
// re-requesting user.
func (m *Mailer) SendVerificationCode(ctx context.Context, to, firstName, code string) error {
	subject := "Verify your Chautari email"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour verification code is %s. It expires in 24 hours.\n\nIf you did not create a Chautari account, you can ignore this email.\n",
		firstName, code,
	)
	return m.send(ctx, to, subject, body)
}

// SendPasswordReset mails the password reset token.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, firstName, token string) error {
	subject := "Reset your Chautari password"
	body := fmt.Sprintf(
		"Hi %s,\n\nUse this token to reset your password: %s. It expires in 1 hour.\n\nIf you did not request a reset, you can ignore this email.\n",
		firstName, token,
	)
	return m.send(ctx, to, subject, body)
}

// SendWelcome mails a short welcome note after the address is verified.
func (m *Mailer) SendWelcome(ctx context.Context, to string) error {
	subject := "Welcome to Chautari"
	body := "Your email is verified. You can now list items for sale on Chautari.\n"
	return m.send(ctx, to, subject, body)
}
