package app

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const uniqueViolation = "23505"

func (s *PGStore) GetTeamMember(ctx context.Context, id string) (*TeamMember, error) {
	q := `SELECT id, employer_id, email, name, is_active,
	             max_interviews_per_day, max_interviews_per_week, COALESCE(calendar_token, '')
	      FROM team_members WHERE id=$1`
	var m TeamMember
	err := s.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.EmployerID, &m.Email, &m.Name,
		&m.IsActive, &m.MaxInterviewsPerDay, &m.MaxInterviewsPerWeek, &m.CalendarToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PGStore) GetTeamMembers(ctx context.Context, ids []string) ([]TeamMember, error) {
	q := `SELECT id, employer_id, email, name, is_active,
	             max_interviews_per_day, max_interviews_per_week, COALESCE(calendar_token, '')
	      FROM team_members WHERE id = ANY($1)`
	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.EmployerID, &m.Email, &m.Name, &m.IsActive,
			&m.MaxInterviewsPerDay, &m.MaxInterviewsPerWeek, &m.CalendarToken); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PGStore) SetCalendarToken(ctx context.Context, memberID, token string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE team_members SET calendar_token=$1 WHERE id=$2`, token, memberID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListRecurringAvailability(ctx context.Context, memberID string) ([]RecurringAvailability, error) {
	q := `SELECT id, member_id, day_of_week, start_time, end_time, timezone, active, created_at, updated_at
	      FROM recurring_availability WHERE member_id=$1 ORDER BY day_of_week, start_time`
	rows, err := s.pool.Query(ctx, q, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecurringAvailability
	for rows.Next() {
		var w RecurringAvailability
		if err := rows.Scan(&w.ID, &w.MemberID, &w.DayOfWeek, &w.StartTime, &w.EndTime,
			&w.Timezone, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ReplaceRecurringAvailability deletes all of a member's windows and inserts
// the new set in one transaction. There is no partial-patch semantics.
func (s *PGStore) ReplaceRecurringAvailability(ctx context.Context, memberID string, windows []RecurringAvailability) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM recurring_availability WHERE member_id=$1`, memberID); err != nil {
		return err
	}

	now := time.Now().UTC()
	q := `INSERT INTO recurring_availability
	      (member_id, day_of_week, start_time, end_time, timezone, active, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	for _, w := range windows {
		if _, err := tx.Exec(ctx, q, memberID, w.DayOfWeek, w.StartTime, w.EndTime,
			w.Timezone, w.Active, now, now); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) ListExceptions(ctx context.Context, memberID string, from, to time.Time) ([]AvailabilityException, error) {
	q := `SELECT id, member_id, date, is_unavailable,
	             COALESCE(start_time, ''), COALESCE(end_time, ''), COALESCE(reason, '')
	      FROM availability_exceptions
	      WHERE member_id=$1 AND date >= $2::date AND date <= $3::date
	      ORDER BY date`
	rows, err := s.pool.Query(ctx, q, memberID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AvailabilityException
	for rows.Next() {
		var e AvailabilityException
		if err := rows.Scan(&e.ID, &e.MemberID, &e.Date, &e.IsUnavailable,
			&e.StartTime, &e.EndTime, &e.Reason); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) ReplaceExceptions(ctx context.Context, memberID string, exceptions []AvailabilityException) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM availability_exceptions WHERE member_id=$1`, memberID); err != nil {
		return err
	}

	q := `INSERT INTO availability_exceptions
	      (member_id, date, is_unavailable, start_time, end_time, reason)
	      VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),NULLIF($6,''))`
	for _, e := range exceptions {
		if _, err := tx.Exec(ctx, q, memberID, e.Date, e.IsUnavailable,
			e.StartTime, e.EndTime, e.Reason); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

const interviewColumns = `i.id, i.employer_id, i.candidate_id, i.job_id, i.title, i.scheduled_at,
       i.duration_minutes, i.timezone, i.status, COALESCE(i.calendar_event_id, ''),
       COALESCE(i.meet_link, ''), i.rescheduled_to, i.created_at`

func scanInterview(row pgx.Row) (*ScheduledInterview, error) {
	var iv ScheduledInterview
	err := row.Scan(&iv.ID, &iv.EmployerID, &iv.CandidateID, &iv.JobID, &iv.Title,
		&iv.ScheduledAt, &iv.DurationMinutes, &iv.Timezone, &iv.Status,
		&iv.CalendarEventID, &iv.MeetLink, &iv.RescheduledTo, &iv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

func (s *PGStore) ListMemberInterviews(ctx context.Context, memberID string, from, to time.Time) ([]ScheduledInterview, error) {
	q := `SELECT ` + interviewColumns + `
	      FROM scheduled_interviews i
	      JOIN interview_participants p ON p.interview_id = i.id
	      WHERE p.member_id=$1 AND i.status IN ('pending','confirmed')
	        AND i.scheduled_at >= $2 AND i.scheduled_at < $3
	      ORDER BY i.scheduled_at`
	rows, err := s.pool.Query(ctx, q, memberID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduledInterview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *iv)
	}
	return out, rows.Err()
}

func (s *PGStore) GetInterview(ctx context.Context, id string) (*ScheduledInterview, error) {
	q := `SELECT ` + interviewColumns + ` FROM scheduled_interviews i WHERE i.id=$1`
	iv, err := scanInterview(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return iv, nil
}

func (s *PGStore) ListParticipants(ctx context.Context, interviewID string) ([]InterviewParticipant, error) {
	q := `SELECT interview_id, member_id, email FROM interview_participants WHERE interview_id=$1`
	rows, err := s.pool.Query(ctx, q, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InterviewParticipant
	for rows.Next() {
		var p InterviewParticipant
		if err := rows.Scan(&p.InterviewID, &p.MemberID, &p.Email); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateInterview inserts the interview and its participants in one
// transaction. A unique violation on the active-slot index surfaces as
// ErrSlotConflict.
func (s *PGStore) CreateInterview(ctx context.Context, iv *ScheduledInterview, participants []InterviewParticipant) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	insertIV := `INSERT INTO scheduled_interviews
	      (id, employer_id, candidate_id, job_id, title, scheduled_at, duration_minutes,
	       timezone, status, calendar_event_id, meet_link, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),NULLIF($11,''),$12)`
	if _, err := tx.Exec(ctx, insertIV, iv.ID, iv.EmployerID, iv.CandidateID, iv.JobID,
		iv.Title, iv.ScheduledAt, iv.DurationMinutes, iv.Timezone, iv.Status,
		iv.CalendarEventID, iv.MeetLink, iv.CreatedAt); err != nil {
		return err
	}

	insertP := `INSERT INTO interview_participants (interview_id, member_id, email, scheduled_at, released)
	      VALUES ($1,$2,$3,$4,false)`
	for _, p := range participants {
		if _, err := tx.Exec(ctx, insertP, p.InterviewID, p.MemberID, p.Email, iv.ScheduledAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrSlotConflict
			}
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) SetInterviewCalendar(ctx context.Context, id, eventID, meetLink string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE scheduled_interviews SET calendar_event_id=NULLIF($1,''), meet_link=NULLIF($2,'') WHERE id=$3`,
		eventID, meetLink, id)
	return err
}

// CancelInterview marks the interview cancelled and releases its slots so
// they can be booked again.
func (s *PGStore) CancelInterview(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE scheduled_interviews SET status='cancelled' WHERE id=$1 AND status != 'cancelled'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx,
		`UPDATE interview_participants SET released=true WHERE interview_id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) UpsertCandidate(ctx context.Context, email, name string) (*Candidate, error) {
	q := `INSERT INTO candidates (id, email, name)
	      VALUES (gen_random_uuid(), $1, $2)
	      ON CONFLICT (email) DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), candidates.name)
	      RETURNING id, email, name`
	var c Candidate
	if err := s.pool.QueryRow(ctx, q, email, name).Scan(&c.ID, &c.Email, &c.Name); err != nil {
		return nil, err
	}
	return &c, nil
}

const linkColumns = `id, employer_id, job_id, slug, name, duration_minutes, interviewer_ids,
       buffer_before_minutes, buffer_after_minutes, min_notice_hours, max_days_ahead,
       active, expires_at, view_count, booking_count, created_at`

func scanLink(row pgx.Row) (*SelfSchedulingLink, error) {
	var l SelfSchedulingLink
	err := row.Scan(&l.ID, &l.EmployerID, &l.JobID, &l.Slug, &l.Name, &l.DurationMinutes,
		&l.InterviewerIDs, &l.BufferBeforeMin, &l.BufferAfterMin, &l.MinNoticeHours,
		&l.MaxDaysAhead, &l.Active, &l.ExpiresAt, &l.ViewCount, &l.BookingCount, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PGStore) GetLinkBySlug(ctx context.Context, slug string) (*SelfSchedulingLink, error) {
	q := `SELECT ` + linkColumns + ` FROM self_scheduling_links WHERE slug=$1`
	l, err := scanLink(s.pool.QueryRow(ctx, q, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *PGStore) CreateLink(ctx context.Context, link *SelfSchedulingLink) error {
	q := `INSERT INTO self_scheduling_links
	      (employer_id, job_id, slug, name, duration_minutes, interviewer_ids,
	       buffer_before_minutes, buffer_after_minutes, min_notice_hours, max_days_ahead,
	       active, expires_at, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	      RETURNING id`
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx, q, link.EmployerID, link.JobID, link.Slug, link.Name,
		link.DurationMinutes, link.InterviewerIDs, link.BufferBeforeMin, link.BufferAfterMin,
		link.MinNoticeHours, link.MaxDaysAhead, link.Active, link.ExpiresAt, now).Scan(&link.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.New("slug already in use")
		}
		return err
	}
	link.CreatedAt = now
	return nil
}

func (s *PGStore) ListLinks(ctx context.Context, employerID string) ([]SelfSchedulingLink, error) {
	q := `SELECT ` + linkColumns + ` FROM self_scheduling_links WHERE employer_id=$1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, employerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SelfSchedulingLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *PGStore) IncrementLinkViews(ctx context.Context, id int) error {
	_, err := s.pool.Exec(ctx, `UPDATE self_scheduling_links SET view_count = view_count + 1 WHERE id=$1`, id)
	return err
}

func (s *PGStore) IncrementLinkBookings(ctx context.Context, id int) error {
	_, err := s.pool.Exec(ctx, `UPDATE self_scheduling_links SET booking_count = booking_count + 1 WHERE id=$1`, id)
	return err
}

func (s *PGStore) CreateReminders(ctx context.Context, reminders []InterviewReminder) error {
	q := `INSERT INTO interview_reminders
	      (interview_id, type, scheduled_for, status, recipient_type, recipient_email)
	      VALUES ($1,$2,$3,$4,$5,$6)`
	for _, r := range reminders {
		if _, err := s.pool.Exec(ctx, q, r.InterviewID, r.Type, r.ScheduledFor,
			r.Status, r.RecipientType, r.RecipientEmail); err != nil {
			return err
		}
	}
	return nil
}

func (s *PGStore) DueReminders(ctx context.Context, now time.Time, limit int) ([]InterviewReminder, error) {
	q := `SELECT id, interview_id, type, scheduled_for, status, recipient_type, recipient_email,
	             sent_at, COALESCE(last_error, '')
	      FROM interview_reminders
	      WHERE status='pending' AND scheduled_for <= $1
	      ORDER BY scheduled_for
	      LIMIT $2`
	rows, err := s.pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InterviewReminder
	for rows.Next() {
		var r InterviewReminder
		if err := rows.Scan(&r.ID, &r.InterviewID, &r.Type, &r.ScheduledFor, &r.Status,
			&r.RecipientType, &r.RecipientEmail, &r.SentAt, &r.LastError); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) MarkReminderSent(ctx context.Context, id int, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE interview_reminders SET status='sent', sent_at=$1 WHERE id=$2 AND status='pending'`, at, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) MarkReminderFailed(ctx context.Context, id int, sendErr string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE interview_reminders SET status='failed', last_error=$1 WHERE id=$2 AND status='pending'`, sendErr, id)
	return err
}

func (s *PGStore) CancelReminder(ctx context.Context, id int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE interview_reminders SET status='cancelled' WHERE id=$1 AND status='pending'`, id)
	return err
}

func (s *PGStore) CancelRemindersForInterview(ctx context.Context, interviewID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE interview_reminders SET status='cancelled' WHERE interview_id=$1 AND status='pending'`, interviewID)
	return err
}
