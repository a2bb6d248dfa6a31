package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs emails instead of sending them. Used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info("launch result email (local dev)", "to", to, "subject", subject, "body", body)
	return nil
}

// ResendSender sends emails via the Resend API. Used in staging/production.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// EmailNotifier mirrors launch results to a mailbox.
type EmailNotifier struct {
	sender Sender
	to     string
}

func NewEmailNotifier(sender Sender, to string) *EmailNotifier {
	return &EmailNotifier{sender: sender, to: to}
}

func (n *EmailNotifier) NotifyResult(ctx context.Context, r Result) error {
	body := fmt.Sprintf("<p>%s</p><p>Schedule #%d</p>", html.EscapeString(r.Text()), r.ScheduleID)
	if err := n.sender.Send(ctx, n.to, r.Title(), body); err != nil {
		return fmt.Errorf("email result for schedule %d: %w", r.ScheduleID, err)
	}
	return nil
}

// LogNotifier writes results to the log only.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (n *LogNotifier) NotifyResult(ctx context.Context, r Result) error {
	n.logger.InfoContext(ctx, "launch result",
		"schedule_id", r.ScheduleID,
		"app", r.AppName,
		"success", r.Success,
		"reason", r.Reason,
	)
	return nil
}
