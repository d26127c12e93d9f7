package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/chautari/chautari/pkg/kafka"
)

// Mailer is the outbound mail surface the worker needs. Satisfied by
// mailer.Mailer.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, firstName, code string) error
	SendPasswordReset(ctx context.Context, to, firstName, token string) error
	SendWelcome(ctx context.Context, to string) error
}

// MailHandlers processes account events that require mail delivery, plus
// audit logging of the remaining marketplace events.
type MailHandlers struct {
	mailer Mailer
	logger *slog.Logger
}

// NewMailHandlers creates the worker's Kafka event handlers.
func NewMailHandlers(mailer Mailer, logger *slog.Logger) *MailHandlers {
	return &MailHandlers{
		mailer: mailer,
		logger: logger,
	}
}

// HandleVerificationRequested mails the verification code to the user.
func (h *MailHandlers) HandleVerificationRequested(ctx context.Context, event *pkgkafka.Event) error {
	var data VerificationRequestedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode verification_requested payload: %w", err)
	}

	if err := h.mailer.SendVerificationCode(ctx, data.Email, data.FirstName, data.Code); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}

	h.logger.InfoContext(ctx, "verification code mailed",
		slog.String("user_id", data.UserID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// HandlePasswordResetRequested mails the password reset token to the user.
func (h *MailHandlers) HandlePasswordResetRequested(ctx context.Context, event *pkgkafka.Event) error {
	var data PasswordResetRequestedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode password_reset_requested payload: %w", err)
	}

	if err := h.mailer.SendPasswordReset(ctx, data.Email, data.FirstName, data.Token); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}

	h.logger.InfoContext(ctx, "password reset mailed",
		slog.String("user_id", data.UserID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// HandleEmailVerified sends the welcome mail after a user verifies their
// address.
func (h *MailHandlers) HandleEmailVerified(ctx context.Context, event *pkgkafka.Event) error {
	var data EmailVerifiedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode email_verified payload: %w", err)
	}

	if err := h.mailer.SendWelcome(ctx, data.Email); err != nil {
		return fmt.Errorf("send welcome mail: %w", err)
	}

	h.logger.InfoContext(ctx, "welcome mail sent",
		slog.String("user_id", data.UserID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// HandleAudit logs events that carry no mail action yet.
func (h *MailHandlers) HandleAudit(ctx context.Context, event *pkgkafka.Event) error {
	h.logger.InfoContext(ctx, "event received",
		slog.String("event_type", event.EventType),
		slog.String("event_id", event.EventID),
		slog.String("aggregate_id", event.AggregateID),
		slog.String("source", event.Source),
	)
	return nil
}
