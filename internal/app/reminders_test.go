package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReminders(t *testing.T) {
	now := utc(2025, 6, 2, 8, 0)
	interviewAt := func(at time.Time) *ScheduledInterview {
		return &ScheduledInterview{ID: "iv-1", ScheduledAt: at, Status: InterviewConfirmed}
	}
	interviewers := []string{"a@example.com", "b@example.com"}

	t.Run("far-out interview gets both waves for every recipient", func(t *testing.T) {
		reminders := BuildReminders(interviewAt(now.Add(48*time.Hour)), "jane@example.com", interviewers, now)

		// {24h, 1h} x {candidate, two interviewers}.
		require.Len(t, reminders, 6)

		byType := map[ReminderType]int{}
		candidates := 0
		for _, r := range reminders {
			byType[r.Type]++
			if r.RecipientType == RecipientCandidate {
				candidates++
				assert.Equal(t, "jane@example.com", r.RecipientEmail)
			}
			assert.Equal(t, ReminderPending, r.Status)
			assert.Equal(t, "iv-1", r.InterviewID)
		}
		assert.Equal(t, 3, byType[Reminder24h])
		assert.Equal(t, 3, byType[Reminder1h])
		assert.Equal(t, 2, candidates)
	})

	t.Run("near interview drops the already-past wave", func(t *testing.T) {
		reminders := BuildReminders(interviewAt(now.Add(12*time.Hour)), "jane@example.com", interviewers, now)
		require.Len(t, reminders, 3)
		for _, r := range reminders {
			assert.Equal(t, Reminder1h, r.Type)
			assert.Equal(t, now.Add(11*time.Hour), r.ScheduledFor)
		}
	})

	t.Run("imminent interview gets no reminders", func(t *testing.T) {
		reminders := BuildReminders(interviewAt(now.Add(30*time.Minute)), "jane@example.com", interviewers, now)
		assert.Empty(t, reminders)
	})
}

func newTestSweeper(store *memStore, email EmailSender, now time.Time) *ReminderSweeper {
	w := NewReminderSweeper(store, email, testLogger(), time.Minute, 100)
	w.now = func() time.Time { return now }
	return w
}

func TestReminderSweep(t *testing.T) {
	ctx := context.Background()
	now := utc(2025, 6, 2, 9, 0)

	seed := func(store *memStore, interviewID string, status InterviewStatus, due time.Time, recipient string) {
		store.addInterview(ScheduledInterview{
			ID:              interviewID,
			Title:           "Phone screen",
			Status:          status,
			ScheduledAt:     due.Add(time.Hour),
			DurationMinutes: 30,
			Timezone:        "UTC",
		})
		require.NoError(t, store.CreateReminders(ctx, []InterviewReminder{{
			InterviewID:    interviewID,
			Type:           Reminder1h,
			ScheduledFor:   due,
			Status:         ReminderPending,
			RecipientType:  RecipientCandidate,
			RecipientEmail: recipient,
		}}))
	}

	t.Run("due reminders are sent and marked", func(t *testing.T) {
		store := newMemStore()
		email := &fakeEmail{}
		seed(store, "iv-1", InterviewConfirmed, now.Add(-time.Minute), "jane@example.com")

		require.NoError(t, newTestSweeper(store, email, now).Sweep(ctx))

		assert.Equal(t, []string{"jane@example.com"}, email.reminders)
		reminders := store.remindersFor("iv-1")
		require.Len(t, reminders, 1)
		assert.Equal(t, ReminderSent, reminders[0].Status)
		require.NotNil(t, reminders[0].SentAt)
		assert.Equal(t, now, *reminders[0].SentAt)
	})

	t.Run("future reminders are left alone", func(t *testing.T) {
		store := newMemStore()
		email := &fakeEmail{}
		seed(store, "iv-1", InterviewConfirmed, now.Add(time.Hour), "jane@example.com")

		require.NoError(t, newTestSweeper(store, email, now).Sweep(ctx))

		assert.Empty(t, email.reminders)
		assert.Equal(t, ReminderPending, store.remindersFor("iv-1")[0].Status)
	})

	t.Run("reminders for cancelled interviews are cancelled unsent", func(t *testing.T) {
		store := newMemStore()
		email := &fakeEmail{}
		seed(store, "iv-1", InterviewCancelled, now.Add(-time.Minute), "jane@example.com")

		require.NoError(t, newTestSweeper(store, email, now).Sweep(ctx))

		assert.Empty(t, email.reminders)
		assert.Equal(t, ReminderCancelled, store.remindersFor("iv-1")[0].Status)
	})

	t.Run("reminders for completed interviews are cancelled unsent", func(t *testing.T) {
		store := newMemStore()
		email := &fakeEmail{}
		seed(store, "iv-1", InterviewCompleted, now.Add(-time.Minute), "jane@example.com")

		require.NoError(t, newTestSweeper(store, email, now).Sweep(ctx))

		assert.Empty(t, email.reminders)
		assert.Equal(t, ReminderCancelled, store.remindersFor("iv-1")[0].Status)
	})

	t.Run("send failure marks the reminder failed and continues", func(t *testing.T) {
		store := newMemStore()
		email := &fakeEmail{failFor: "broken"}
		seed(store, "iv-1", InterviewConfirmed, now.Add(-2*time.Minute), "broken@example.com")
		seed(store, "iv-2", InterviewConfirmed, now.Add(-time.Minute), "fine@example.com")

		require.NoError(t, newTestSweeper(store, email, now).Sweep(ctx))

		failed := store.remindersFor("iv-1")[0]
		assert.Equal(t, ReminderFailed, failed.Status)
		assert.NotEmpty(t, failed.LastError)

		assert.Equal(t, []string{"fine@example.com"}, email.reminders)
		assert.Equal(t, ReminderSent, store.remindersFor("iv-2")[0].Status)
	})

	t.Run("orphaned reminders are skipped", func(t *testing.T) {
		store := newMemStore()
		email := &fakeEmail{}
		require.NoError(t, store.CreateReminders(ctx, []InterviewReminder{{
			InterviewID:    "missing",
			Type:           Reminder1h,
			ScheduledFor:   now.Add(-time.Minute),
			Status:         ReminderPending,
			RecipientType:  RecipientCandidate,
			RecipientEmail: "jane@example.com",
		}}))

		require.NoError(t, newTestSweeper(store, email, now).Sweep(ctx))

		assert.Empty(t, email.reminders)
		assert.Equal(t, ReminderPending, store.remindersFor("missing")[0].Status)
	})

	t.Run("a sweep generation sends each reminder at most once", func(t *testing.T) {
		store := newMemStore()
		email := &fakeEmail{}
		seed(store, "iv-1", InterviewConfirmed, now.Add(-time.Minute), "jane@example.com")
		w := newTestSweeper(store, email, now)

		require.NoError(t, w.Sweep(ctx))
		require.NoError(t, w.Sweep(ctx))

		assert.Equal(t, []string{"jane@example.com"}, email.reminders)
	})
}

func TestReminderSweeperLifecycle(t *testing.T) {
	store := newMemStore()
	w := NewReminderSweeper(store, &fakeEmail{}, testLogger(), time.Hour, 10)

	w.Start(context.Background())
	w.Start(context.Background()) // second start is a no-op

	w.Stop()
	w.Stop() // as is a second stop
}

func TestReminderTimeText(t *testing.T) {
	assert.Equal(t, "in 24 hours", reminderTimeText(Reminder24h))
	assert.Equal(t, "in 1 hour", reminderTimeText(Reminder1h))
	assert.Equal(t, "soon", reminderTimeText(ReminderCustom))
}
