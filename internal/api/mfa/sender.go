package mfa

import (
	"context"
	"log/slog"
)

// CodeSender dispatches one-time codes through external delivery channels.
// SMS gateways and mail providers are collaborators outside this service.
type CodeSender interface {
	SendSMS(ctx context.Context, phone, code string) error
	SendEmail(ctx context.Context, email, code string) error
}

// LogSender records dispatches without delivering anything. Code values are
// never written to the log.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) SendSMS(ctx context.Context, phone, _ string) error {
	s.Logger.InfoContext(ctx, "MFA code dispatched via SMS", slog.String("phone", maskDestination(phone)))
	return nil
}

func (s *LogSender) SendEmail(ctx context.Context, email, _ string) error {
	s.Logger.InfoContext(ctx, "MFA code dispatched via email", slog.String("email", maskDestination(email)))
	return nil
}

func maskDestination(dest string) string {
	if len(dest) <= 4 {
		return "****"
	}
	return "****" + dest[len(dest)-4:]
}
