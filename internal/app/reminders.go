package app

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

var reminderLeads = []struct {
	Type ReminderType
	Lead time.Duration
}{
	{Reminder24h, 24 * time.Hour},
	{Reminder1h, time.Hour},
}

// BuildReminders computes the reminder rows for a freshly booked interview:
// {24h, 1h} x {candidate, each interviewer}. Reminders whose send time has
// already passed are never created.
func BuildReminders(iv *ScheduledInterview, candidateEmail string, interviewerEmails []string, now time.Time) []InterviewReminder {
	var out []InterviewReminder
	for _, lead := range reminderLeads {
		at := iv.ScheduledAt.Add(-lead.Lead)
		if !at.After(now) {
			continue
		}
		out = append(out, InterviewReminder{
			InterviewID:    iv.ID,
			Type:           lead.Type,
			ScheduledFor:   at,
			Status:         ReminderPending,
			RecipientType:  RecipientCandidate,
			RecipientEmail: candidateEmail,
		})
		for _, email := range interviewerEmails {
			out = append(out, InterviewReminder{
				InterviewID:    iv.ID,
				Type:           lead.Type,
				ScheduledFor:   at,
				Status:         ReminderPending,
				RecipientType:  RecipientInterviewer,
				RecipientEmail: email,
			})
		}
	}
	return out
}

func (a *App) scheduleReminders(ctx context.Context, iv *ScheduledInterview, candidate *Candidate, participants []InterviewParticipant, now time.Time) {
	emails := make([]string, 0, len(participants))
	for _, p := range participants {
		emails = append(emails, p.Email)
	}
	reminders := BuildReminders(iv, candidate.Email, emails, now)
	if len(reminders) == 0 {
		return
	}
	if err := a.Store.CreateReminders(ctx, reminders); err != nil {
		a.Logger.Warn("failed to schedule reminders", "interview_id", iv.ID, "error", err)
	}
}

// ReminderSweeper periodically sends due reminders. It is an injected
// component owned by the service lifecycle, not process-global state.
type ReminderSweeper struct {
	store    Store
	email    EmailSender
	logger   *slog.Logger
	interval time.Duration
	batch    int
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewReminderSweeper creates a sweeper with the given poll interval and
// batch size.
func NewReminderSweeper(store Store, email EmailSender, logger *slog.Logger, interval time.Duration, batch int) *ReminderSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	return &ReminderSweeper{
		store:    store,
		email:    email,
		logger:   logger,
		interval: interval,
		batch:    batch,
		now:      time.Now,
	}
}

// Start begins the sweep loop in a goroutine. Starting twice is a no-op.
func (w *ReminderSweeper) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stop = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Info("reminder sweeper started", "interval", w.interval)
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (w *ReminderSweeper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("reminder sweeper stopped")
}

func (w *ReminderSweeper) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error("reminder sweep failed", "error", err)
			}
		}
	}
}

// Sweep sends every pending reminder that is due. A reminder whose parent
// interview was cancelled or completed is cancelled without sending. The
// pending->sent transition is guarded in the store, so a row is sent at
// most once per sweep generation.
func (w *ReminderSweeper) Sweep(ctx context.Context) error {
	due, err := w.store.DueReminders(ctx, w.now(), w.batch)
	if err != nil {
		return err
	}

	for _, r := range due {
		iv, err := w.store.GetInterview(ctx, r.InterviewID)
		if err != nil {
			w.logger.Warn("reminder references missing interview", "reminder_id", r.ID, "interview_id", r.InterviewID)
			continue
		}

		if iv.Status == InterviewCancelled || iv.Status == InterviewCompleted {
			if err := w.store.CancelReminder(ctx, r.ID); err != nil {
				w.logger.Warn("failed to cancel stale reminder", "reminder_id", r.ID, "error", err)
			}
			continue
		}

		details := InterviewDetails{
			Title:           iv.Title,
			ScheduledAt:     iv.ScheduledAt,
			DurationMinutes: iv.DurationMinutes,
			Timezone:        iv.Timezone,
			MeetLink:        iv.MeetLink,
		}

		if err := w.email.SendInterviewReminder(ctx, r.RecipientEmail, details, reminderTimeText(r.Type)); err != nil {
			if markErr := w.store.MarkReminderFailed(ctx, r.ID, err.Error()); markErr != nil {
				w.logger.Warn("failed to record reminder failure", "reminder_id", r.ID, "error", markErr)
			}
			continue
		}

		updated, err := w.store.MarkReminderSent(ctx, r.ID, w.now())
		if err != nil {
			w.logger.Warn("failed to mark reminder sent", "reminder_id", r.ID, "error", err)
			continue
		}
		if !updated {
			w.logger.Debug("reminder already handled elsewhere", "reminder_id", r.ID)
		}
	}
	return nil
}

func reminderTimeText(t ReminderType) string {
	switch t {
	case Reminder24h:
		return "in 24 hours"
	case Reminder1h:
		return "in 1 hour"
	default:
		return "soon"
	}
}
