package app

import "time"

// InterviewStatus is the lifecycle state of a scheduled interview.
type InterviewStatus string

const (
	InterviewPending     InterviewStatus = "pending"
	InterviewConfirmed   InterviewStatus = "confirmed"
	InterviewCompleted   InterviewStatus = "completed"
	InterviewCancelled   InterviewStatus = "cancelled"
	InterviewNoShow      InterviewStatus = "no_show"
	InterviewRescheduled InterviewStatus = "rescheduled"
)

// ReminderType identifies how far ahead of the interview a reminder fires.
type ReminderType string

const (
	Reminder24h    ReminderType = "24h"
	Reminder1h     ReminderType = "1h"
	ReminderCustom ReminderType = "custom"
)

// ReminderStatus is the lifecycle state of a reminder row.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

// RecipientType distinguishes who a reminder is addressed to.
type RecipientType string

const (
	RecipientCandidate   RecipientType = "candidate"
	RecipientInterviewer RecipientType = "interviewer"
)

// TeamMember is an interviewer record supplied by the employer-management
// subsystem. This service reads the roster and only writes the calendar
// token column (connect flow).
type TeamMember struct {
	ID                   string `json:"id"`
	EmployerID           string `json:"employer_id"`
	Email                string `json:"email"`
	Name                 string `json:"name"`
	IsActive             bool   `json:"is_active"`
	MaxInterviewsPerDay  int    `json:"max_interviews_per_day"`
	MaxInterviewsPerWeek int    `json:"max_interviews_per_week"`
	CalendarToken        string `json:"-"`
}

// RecurringAvailability is one weekly availability window for a team member.
// Windows are replaced wholesale on every update; there is no partial patch.
type RecurringAvailability struct {
	ID        int       `json:"id"`
	MemberID  string    `json:"member_id"`
	DayOfWeek int       `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	StartTime string    `json:"start_time"`  // HH:MM
	EndTime   string    `json:"end_time"`    // HH:MM
	Timezone  string    `json:"timezone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// AvailabilityException is a dated deviation from the recurring windows.
// Without start/end times it covers the whole day. Blocking exceptions
// filter slots; additive ones are stored only.
type AvailabilityException struct {
	ID            int       `json:"id"`
	MemberID      string    `json:"member_id"`
	Date          time.Time `json:"date"` // civil date, midnight UTC
	IsUnavailable bool      `json:"is_unavailable"`
	StartTime     string    `json:"start_time,omitempty"` // HH:MM, empty = whole day
	EndTime       string    `json:"end_time,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// FullDay reports whether the exception covers the entire date.
func (e AvailabilityException) FullDay() bool {
	return e.StartTime == "" || e.EndTime == ""
}

// ScheduledInterview is the authoritative busy record once created. Its busy
// interval is [ScheduledAt, ScheduledAt+Duration); buffers are re-added only
// when computing slots and conflicts.
type ScheduledInterview struct {
	ID              string          `json:"id"`
	EmployerID      string          `json:"employer_id"`
	CandidateID     string          `json:"candidate_id"`
	JobID           *string         `json:"job_id,omitempty"`
	Title           string          `json:"title"`
	ScheduledAt     time.Time       `json:"scheduled_at"`
	DurationMinutes int             `json:"duration_minutes"`
	Timezone        string          `json:"timezone"`
	Status          InterviewStatus `json:"status"`
	CalendarEventID string          `json:"calendar_event_id,omitempty"`
	MeetLink        string          `json:"meet_link,omitempty"`
	RescheduledTo   *string         `json:"rescheduled_to,omitempty"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
}

// EndsAt returns the exclusive end of the interview's busy interval.
func (iv ScheduledInterview) EndsAt() time.Time {
	return iv.ScheduledAt.Add(time.Duration(iv.DurationMinutes) * time.Minute)
}

// InterviewParticipant joins an interview to a team member. Interviewer
// matching is by member id; the email snapshot feeds calendar and email
// payloads only.
type InterviewParticipant struct {
	InterviewID string `json:"interview_id"`
	MemberID    string `json:"member_id"`
	Email       string `json:"email"`
}

// Candidate is the minimal candidate record upserted by email at booking.
type Candidate struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SelfSchedulingLink is a shareable, unauthenticated booking page bound to
// specific interviewers and constraints. The slug is immutable for the life
// of the link; configuration is not.
type SelfSchedulingLink struct {
	ID              int        `json:"id"`
	EmployerID      string     `json:"employer_id"`
	JobID           *string    `json:"job_id,omitempty"`
	Slug            string     `json:"slug"`
	Name            string     `json:"name"`
	DurationMinutes int        `json:"duration_minutes"`
	InterviewerIDs  []string   `json:"interviewer_ids"`
	BufferBeforeMin int        `json:"buffer_before_minutes"`
	BufferAfterMin  int        `json:"buffer_after_minutes"`
	MinNoticeHours  int        `json:"min_notice_hours"`
	MaxDaysAhead    int        `json:"max_days_ahead"`
	Active          bool       `json:"active"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	ViewCount       int        `json:"view_count"`
	BookingCount    int        `json:"booking_count"`
	CreatedAt       time.Time  `json:"created_at,omitempty"`
}

// Expired reports whether the link's expiry has passed at now.
func (l SelfSchedulingLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// InterviewReminder is one pending notification for one recipient of one
// interview. Rows are append-only apart from status transitions.
type InterviewReminder struct {
	ID             int            `json:"id"`
	InterviewID    string         `json:"interview_id"`
	Type           ReminderType   `json:"type"`
	ScheduledFor   time.Time      `json:"scheduled_for"`
	Status         ReminderStatus `json:"status"`
	RecipientType  RecipientType  `json:"recipient_type"`
	RecipientEmail string         `json:"recipient_email"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
}

// TimeSlot is a candidate bookable interview interval. It is the unit
// exchanged between the generator, resolver, intersector and balancer, and
// is never persisted.
type TimeSlot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	InterviewerID   string    `json:"interviewer_id"`
	InterviewerName string    `json:"interviewer_name"`
}
