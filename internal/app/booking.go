package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookingRequest is the candidate-supplied side of a self-service booking.
type BookingRequest struct {
	CandidateEmail string
	CandidateName  string
	Notes          string
}

// LinkSlots resolves the full bookable slot set for a scheduling link:
// panel intersection across the assigned interviewers, then load-balanced
// ordering.
func (a *App) LinkSlots(ctx context.Context, link *SelfSchedulingLink, now time.Time) ([]TimeSlot, error) {
	p := SlotParams{
		Duration:     time.Duration(link.DurationMinutes) * time.Minute,
		BufferBefore: time.Duration(link.BufferBeforeMin) * time.Minute,
		BufferAfter:  time.Duration(link.BufferAfterMin) * time.Minute,
		MinStart:     now.Add(time.Duration(link.MinNoticeHours) * time.Hour),
	}
	to := now.AddDate(0, 0, link.MaxDaysAhead)

	slots, err := a.Scheduler.IntersectPanel(ctx, link.InterviewerIDs, now, to, p)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}

	members, err := a.Store.GetTeamMembers(ctx, link.InterviewerIDs)
	if err != nil {
		return nil, err
	}
	return a.Scheduler.BalanceSlots(ctx, slots, members, now)
}

// Book validates and commits a self-service booking against a scheduling
// link. Collaborator failures (calendar, email) degrade; the booking itself
// either commits or returns a BookingError.
func (a *App) Book(ctx context.Context, slug string, slotStart time.Time, req BookingRequest) (*ScheduledInterview, error) {
	now := a.now()

	link, err := a.Store.GetLinkBySlug(ctx, slug)
	if err == ErrNotFound {
		return nil, newBookingError(BookingErrInvalidSlot, "scheduling link not found")
	}
	if err != nil {
		return nil, newBookingError(BookingErrFailed, err.Error())
	}

	if !link.Active {
		return nil, newBookingError(BookingErrLinkInactive, "this scheduling link is no longer active")
	}
	if link.Expired(now) {
		return nil, newBookingError(BookingErrLinkExpired, "this scheduling link has expired")
	}

	minStart := now.Add(time.Duration(link.MinNoticeHours) * time.Hour)
	if slotStart.Before(minStart) {
		return nil, newBookingError(BookingErrInvalidSlot,
			fmt.Sprintf("bookings require at least %d hours notice", link.MinNoticeHours))
	}
	if slotStart.After(now.AddDate(0, 0, link.MaxDaysAhead)) {
		return nil, newBookingError(BookingErrInvalidSlot,
			fmt.Sprintf("bookings can be made at most %d days ahead", link.MaxDaysAhead))
	}

	if len(link.InterviewerIDs) == 0 {
		return nil, newBookingError(BookingErrFailed, "scheduling link has no interviewers assigned")
	}

	// The lock brackets re-resolve through insert for this slot; the unique
	// index on active interview slots backstops lock outages.
	release, acquired, err := a.Lock.Acquire(ctx, link.InterviewerIDs[0], slotStart)
	if err != nil {
		a.Logger.Warn("slot lock unavailable, proceeding unlocked", "slug", slug, "error", err)
	} else if !acquired {
		return nil, newBookingError(BookingErrSlotTaken, "this slot is no longer available")
	} else {
		defer release()
	}

	slots, err := a.LinkSlots(ctx, link, now)
	if err != nil {
		return nil, newBookingError(BookingErrFailed, err.Error())
	}
	slotEnd := slotStart.Add(time.Duration(link.DurationMinutes) * time.Minute)
	if !slotMatches(slots, slotStart, slotEnd) {
		return nil, newBookingError(BookingErrSlotTaken, "this slot is no longer available")
	}

	candidate, err := a.Store.UpsertCandidate(ctx, req.CandidateEmail, req.CandidateName)
	if err != nil {
		return nil, newBookingError(BookingErrFailed, err.Error())
	}

	members, err := a.Store.GetTeamMembers(ctx, link.InterviewerIDs)
	if err != nil {
		return nil, newBookingError(BookingErrFailed, err.Error())
	}

	iv := &ScheduledInterview{
		ID:              uuid.NewString(),
		EmployerID:      link.EmployerID,
		CandidateID:     candidate.ID,
		JobID:           link.JobID,
		Title:           link.Name,
		ScheduledAt:     slotStart.UTC(),
		DurationMinutes: link.DurationMinutes,
		Timezone:        "UTC",
		Status:          InterviewConfirmed,
		CreatedAt:       now,
	}
	participants := make([]InterviewParticipant, 0, len(members))
	for _, m := range members {
		participants = append(participants, InterviewParticipant{
			InterviewID: iv.ID,
			MemberID:    m.ID,
			Email:       m.Email,
		})
	}

	if err := a.Store.CreateInterview(ctx, iv, participants); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			return nil, newBookingError(BookingErrSlotTaken, "this slot is no longer available")
		}
		return nil, newBookingError(BookingErrFailed, err.Error())
	}

	if err := a.Store.IncrementLinkBookings(ctx, link.ID); err != nil {
		a.Logger.Warn("failed to bump link booking counter", "slug", slug, "error", err)
	}

	a.createCalendarEvent(ctx, iv, members, candidate)
	a.scheduleReminders(ctx, iv, candidate, participants, now)
	a.sendConfirmation(ctx, iv, candidate)

	return iv, nil
}

func slotMatches(slots []TimeSlot, start, end time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(start) && s.End.Equal(end) {
			return true
		}
	}
	return false
}

// createCalendarEvent is best-effort: failures are logged and the booking
// stands without an invite.
func (a *App) createCalendarEvent(ctx context.Context, iv *ScheduledInterview, members []TeamMember, candidate *Candidate) {
	if a.Calendar == nil {
		return
	}
	var host *TeamMember
	for i := range members {
		if members[i].CalendarToken != "" {
			host = &members[i]
			break
		}
	}
	if host == nil {
		return
	}

	attendees := []string{candidate.Email}
	for _, m := range members {
		attendees = append(attendees, m.Email)
	}

	info, err := a.Calendar.CreateEvent(ctx, host.CalendarToken, CalendarEventRequest{
		Title:       iv.Title,
		Description: fmt.Sprintf("Interview with %s", candidate.Name),
		Start:       iv.ScheduledAt,
		End:         iv.EndsAt(),
		Attendees:   attendees,
		Timezone:    iv.Timezone,
	})
	if err != nil {
		a.Logger.Warn("calendar event creation failed", "interview_id", iv.ID, "error", err)
		return
	}
	iv.CalendarEventID = info.EventID
	iv.MeetLink = info.MeetLink
	if err := a.Store.SetInterviewCalendar(ctx, iv.ID, info.EventID, info.MeetLink); err != nil {
		a.Logger.Warn("failed to persist calendar event id", "interview_id", iv.ID, "error", err)
	}
}

func (a *App) sendConfirmation(ctx context.Context, iv *ScheduledInterview, candidate *Candidate) {
	if a.Email == nil {
		return
	}
	details := InterviewDetails{
		Title:           iv.Title,
		ScheduledAt:     iv.ScheduledAt,
		DurationMinutes: iv.DurationMinutes,
		Timezone:        iv.Timezone,
		MeetLink:        iv.MeetLink,
		CandidateName:   candidate.Name,
	}
	if err := a.Email.SendInterviewScheduled(ctx, candidate.Email, details); err != nil {
		a.Logger.Warn("confirmation email failed", "interview_id", iv.ID, "error", err)
	}
}

// CancelInterview cancels the interview, bulk-cancels its pending reminders
// and best-effort removes the calendar event.
func (a *App) CancelInterview(ctx context.Context, id string) error {
	iv, err := a.Store.GetInterview(ctx, id)
	if err != nil {
		return err
	}
	if iv.Status == InterviewCancelled {
		return fmt.Errorf("interview already cancelled")
	}

	if err := a.Store.CancelInterview(ctx, id); err != nil {
		return err
	}
	if err := a.Store.CancelRemindersForInterview(ctx, id); err != nil {
		a.Logger.Warn("failed to cancel reminders", "interview_id", id, "error", err)
	}

	if a.Calendar != nil && iv.CalendarEventID != "" {
		participants, err := a.Store.ListParticipants(ctx, id)
		if err == nil {
			for _, pt := range participants {
				member, err := a.Store.GetTeamMember(ctx, pt.MemberID)
				if err != nil || member.CalendarToken == "" {
					continue
				}
				if err := a.Calendar.CancelEvent(ctx, member.CalendarToken, iv.CalendarEventID); err != nil {
					a.Logger.Warn("calendar event cancellation failed", "interview_id", id, "error", err)
				}
				break
			}
		}
	}
	return nil
}
