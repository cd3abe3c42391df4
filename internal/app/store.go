package app

import (
	"context"
	"time"
)

// Store is the persistence boundary for the scheduling core. The relational
// store is the only shared mutable state; every component reads and writes
// through it with one auto-committing transaction per logical operation.
type Store interface {
	// Roster
	GetTeamMember(ctx context.Context, id string) (*TeamMember, error)
	GetTeamMembers(ctx context.Context, ids []string) ([]TeamMember, error)
	SetCalendarToken(ctx context.Context, memberID, token string) error

	// Availability
	ListRecurringAvailability(ctx context.Context, memberID string) ([]RecurringAvailability, error)
	ReplaceRecurringAvailability(ctx context.Context, memberID string, windows []RecurringAvailability) error
	ListExceptions(ctx context.Context, memberID string, from, to time.Time) ([]AvailabilityException, error)
	ReplaceExceptions(ctx context.Context, memberID string, exceptions []AvailabilityException) error

	// Interviews. ListMemberInterviews returns pending/confirmed interviews
	// the member participates in, with scheduled_at inside [from, to).
	ListMemberInterviews(ctx context.Context, memberID string, from, to time.Time) ([]ScheduledInterview, error)
	GetInterview(ctx context.Context, id string) (*ScheduledInterview, error)
	ListParticipants(ctx context.Context, interviewID string) ([]InterviewParticipant, error)
	CreateInterview(ctx context.Context, iv *ScheduledInterview, participants []InterviewParticipant) error
	// SetInterviewCalendar records the external event id and meet link once
	// the calendar event exists; event creation happens after the insert.
	SetInterviewCalendar(ctx context.Context, id, eventID, meetLink string) error
	CancelInterview(ctx context.Context, id string) error

	// Candidates
	UpsertCandidate(ctx context.Context, email, name string) (*Candidate, error)

	// Scheduling links
	GetLinkBySlug(ctx context.Context, slug string) (*SelfSchedulingLink, error)
	CreateLink(ctx context.Context, link *SelfSchedulingLink) error
	ListLinks(ctx context.Context, employerID string) ([]SelfSchedulingLink, error)
	IncrementLinkViews(ctx context.Context, id int) error
	IncrementLinkBookings(ctx context.Context, id int) error

	// Reminders
	CreateReminders(ctx context.Context, reminders []InterviewReminder) error
	DueReminders(ctx context.Context, now time.Time, limit int) ([]InterviewReminder, error)
	// MarkReminderSent transitions pending->sent and reports whether the row
	// was still pending; a false result means another sweep got there first.
	MarkReminderSent(ctx context.Context, id int, at time.Time) (bool, error)
	MarkReminderFailed(ctx context.Context, id int, sendErr string) error
	CancelReminder(ctx context.Context, id int) error
	CancelRemindersForInterview(ctx context.Context, interviewID string) error
}
