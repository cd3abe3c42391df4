package app

import (
	"context"
	"log/slog"
	"time"
)

// InterviewDetails carries what the mailer needs to render a message.
type InterviewDetails struct {
	Title           string
	ScheduledAt     time.Time
	DurationMinutes int
	Timezone        string
	MeetLink        string
	CandidateName   string
}

// EmailSender is the delivery boundary. Delivery itself is owned by another
// subsystem; failures are recorded, never retried here.
type EmailSender interface {
	SendInterviewReminder(ctx context.Context, recipient string, details InterviewDetails, timeText string) error
	SendInterviewScheduled(ctx context.Context, recipient string, details InterviewDetails) error
}

// LogEmailSender logs instead of delivering. Used until the real mailer is
// wired in deployment.
type LogEmailSender struct {
	Logger *slog.Logger
}

func (s *LogEmailSender) SendInterviewReminder(ctx context.Context, recipient string, details InterviewDetails, timeText string) error {
	s.Logger.Info("interview reminder",
		"recipient", recipient,
		"title", details.Title,
		"scheduled_at", details.ScheduledAt,
		"time_text", timeText,
	)
	return nil
}

func (s *LogEmailSender) SendInterviewScheduled(ctx context.Context, recipient string, details InterviewDetails) error {
	s.Logger.Info("interview scheduled confirmation",
		"recipient", recipient,
		"title", details.Title,
		"scheduled_at", details.ScheduledAt,
	)
	return nil
}
