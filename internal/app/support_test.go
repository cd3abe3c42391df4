package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the package tests. It mirrors the
// Postgres semantics that matter: status filtering, guarded reminder
// transitions, and the active-slot uniqueness backstop.
type memStore struct {
	mu           sync.Mutex
	members      map[string]*TeamMember
	windows      map[string][]RecurringAvailability
	exceptions   map[string][]AvailabilityException
	interviews   map[string]*ScheduledInterview
	participants map[string][]InterviewParticipant
	candidates   map[string]*Candidate
	links        map[string]*SelfSchedulingLink
	reminders    []*InterviewReminder
	nextID       int
}

func newMemStore() *memStore {
	return &memStore{
		members:      map[string]*TeamMember{},
		windows:      map[string][]RecurringAvailability{},
		exceptions:   map[string][]AvailabilityException{},
		interviews:   map[string]*ScheduledInterview{},
		participants: map[string][]InterviewParticipant{},
		candidates:   map[string]*Candidate{},
		links:        map[string]*SelfSchedulingLink{},
	}
}

func (s *memStore) addMember(m TeamMember) {
	s.members[m.ID] = &m
}

func (s *memStore) addWindow(w RecurringAvailability) {
	s.windows[w.MemberID] = append(s.windows[w.MemberID], w)
}

func (s *memStore) addException(e AvailabilityException) {
	s.exceptions[e.MemberID] = append(s.exceptions[e.MemberID], e)
}

func (s *memStore) addLink(l SelfSchedulingLink) {
	s.links[l.Slug] = &l
}

func (s *memStore) addInterview(iv ScheduledInterview, memberIDs ...string) {
	s.interviews[iv.ID] = &iv
	for _, id := range memberIDs {
		s.participants[iv.ID] = append(s.participants[iv.ID], InterviewParticipant{
			InterviewID: iv.ID,
			MemberID:    id,
			Email:       id + "@example.com",
		})
	}
}

func (s *memStore) GetTeamMember(ctx context.Context, id string) (*TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *m
	return &copy, nil
}

func (s *memStore) GetTeamMembers(ctx context.Context, ids []string) ([]TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TeamMember
	for _, id := range ids {
		if m, ok := s.members[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) SetCalendarToken(ctx context.Context, memberID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberID]
	if !ok {
		return ErrNotFound
	}
	m.CalendarToken = token
	return nil
}

func (s *memStore) ListRecurringAvailability(ctx context.Context, memberID string) ([]RecurringAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecurringAvailability(nil), s.windows[memberID]...), nil
}

func (s *memStore) ReplaceRecurringAvailability(ctx context.Context, memberID string, windows []RecurringAvailability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[memberID] = append([]RecurringAvailability(nil), windows...)
	return nil
}

func (s *memStore) ListExceptions(ctx context.Context, memberID string, from, to time.Time) ([]AvailabilityException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AvailabilityException
	for _, e := range s.exceptions[memberID] {
		if e.Date.Before(from.AddDate(0, 0, -1)) || e.Date.After(to.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *memStore) ReplaceExceptions(ctx context.Context, memberID string, exceptions []AvailabilityException) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions[memberID] = append([]AvailabilityException(nil), exceptions...)
	return nil
}

func (s *memStore) ListMemberInterviews(ctx context.Context, memberID string, from, to time.Time) ([]ScheduledInterview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ScheduledInterview
	for id, iv := range s.interviews {
		if iv.Status != InterviewPending && iv.Status != InterviewConfirmed {
			continue
		}
		if iv.ScheduledAt.Before(from) || !iv.ScheduledAt.Before(to) {
			continue
		}
		for _, p := range s.participants[id] {
			if p.MemberID == memberID {
				out = append(out, *iv)
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) GetInterview(ctx context.Context, id string) (*ScheduledInterview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.interviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *iv
	return &copy, nil
}

func (s *memStore) ListParticipants(ctx context.Context, interviewID string) ([]InterviewParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]InterviewParticipant(nil), s.participants[interviewID]...), nil
}

func (s *memStore) CreateInterview(ctx context.Context, iv *ScheduledInterview, participants []InterviewParticipant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range participants {
		for id, existing := range s.interviews {
			if existing.Status != InterviewPending && existing.Status != InterviewConfirmed {
				continue
			}
			if !existing.ScheduledAt.Equal(iv.ScheduledAt) {
				continue
			}
			for _, ep := range s.participants[id] {
				if ep.MemberID == p.MemberID {
					return ErrSlotConflict
				}
			}
		}
	}
	copy := *iv
	s.interviews[iv.ID] = &copy
	s.participants[iv.ID] = append([]InterviewParticipant(nil), participants...)
	return nil
}

func (s *memStore) SetInterviewCalendar(ctx context.Context, id, eventID, meetLink string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.interviews[id]
	if !ok {
		return ErrNotFound
	}
	iv.CalendarEventID = eventID
	iv.MeetLink = meetLink
	return nil
}

func (s *memStore) CancelInterview(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.interviews[id]
	if !ok || iv.Status == InterviewCancelled {
		return ErrNotFound
	}
	iv.Status = InterviewCancelled
	return nil
}

func (s *memStore) UpsertCandidate(ctx context.Context, email, name string) (*Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.candidates[email]; ok {
		if name != "" {
			c.Name = name
		}
		copy := *c
		return &copy, nil
	}
	c := &Candidate{ID: fmt.Sprintf("cand-%d", len(s.candidates)+1), Email: email, Name: name}
	s.candidates[email] = c
	copy := *c
	return &copy, nil
}

func (s *memStore) GetLinkBySlug(ctx context.Context, slug string) (*SelfSchedulingLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[slug]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *l
	return &copy, nil
}

func (s *memStore) CreateLink(ctx context.Context, link *SelfSchedulingLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.Slug]; ok {
		return errors.New("slug already in use")
	}
	s.nextID++
	link.ID = s.nextID
	copy := *link
	s.links[link.Slug] = &copy
	return nil
}

func (s *memStore) ListLinks(ctx context.Context, employerID string) ([]SelfSchedulingLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SelfSchedulingLink
	for _, l := range s.links {
		if l.EmployerID == employerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *memStore) IncrementLinkViews(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.ID == id {
			l.ViewCount++
		}
	}
	return nil
}

func (s *memStore) IncrementLinkBookings(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.ID == id {
			l.BookingCount++
		}
	}
	return nil
}

func (s *memStore) CreateReminders(ctx context.Context, reminders []InterviewReminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range reminders {
		s.nextID++
		r.ID = s.nextID
		copy := r
		s.reminders = append(s.reminders, &copy)
	}
	return nil
}

func (s *memStore) DueReminders(ctx context.Context, now time.Time, limit int) ([]InterviewReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []InterviewReminder
	for _, r := range s.reminders {
		if r.Status == ReminderPending && !r.ScheduledFor.After(now) {
			out = append(out, *r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) MarkReminderSent(ctx context.Context, id int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.ID == id {
			if r.Status != ReminderPending {
				return false, nil
			}
			r.Status = ReminderSent
			r.SentAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) MarkReminderFailed(ctx context.Context, id int, sendErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.ID == id && r.Status == ReminderPending {
			r.Status = ReminderFailed
			r.LastError = sendErr
		}
	}
	return nil
}

func (s *memStore) CancelReminder(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.ID == id && r.Status == ReminderPending {
			r.Status = ReminderCancelled
		}
	}
	return nil
}

func (s *memStore) CancelRemindersForInterview(ctx context.Context, interviewID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.InterviewID == interviewID && r.Status == ReminderPending {
			r.Status = ReminderCancelled
		}
	}
	return nil
}

func (s *memStore) remindersFor(interviewID string) []InterviewReminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []InterviewReminder
	for _, r := range s.reminders {
		if r.InterviewID == interviewID {
			out = append(out, *r)
		}
	}
	return out
}

// fakeCalendar is a scriptable CalendarProvider.
type fakeCalendar struct {
	busy        []BusyInterval
	freeBusyErr error
	createErr   error
	created     []CalendarEventRequest
	cancelled   []string
}

func (f *fakeCalendar) GetFreeBusy(ctx context.Context, token string, timeMin, timeMax time.Time) ([]BusyInterval, error) {
	if f.freeBusyErr != nil {
		return nil, f.freeBusyErr
	}
	return f.busy, nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, token string, req CalendarEventRequest) (*CalendarEventInfo, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &CalendarEventInfo{EventID: "evt-1", MeetLink: "https://meet.example.com/abc"}, nil
}

func (f *fakeCalendar) CancelEvent(ctx context.Context, token, eventID string) error {
	f.cancelled = append(f.cancelled, eventID)
	return nil
}

// fakeEmail records sends and can fail selectively by recipient substring.
type fakeEmail struct {
	mu        sync.Mutex
	reminders []string
	confirmed []string
	failFor   string
}

func (f *fakeEmail) SendInterviewReminder(ctx context.Context, recipient string, details InterviewDetails, timeText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" && strings.Contains(recipient, f.failFor) {
		return errors.New("smtp unavailable")
	}
	f.reminders = append(f.reminders, recipient)
	return nil
}

func (f *fakeEmail) SendInterviewScheduled(ctx context.Context, recipient string, details InterviewDetails) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, recipient)
	return nil
}

// fakeLock can deny acquisition to simulate contention.
type fakeLock struct {
	deny     bool
	acquired int
	released int
}

func (f *fakeLock) Acquire(ctx context.Context, interviewerID string, slotStart time.Time) (func(), bool, error) {
	if f.deny {
		return nil, false, nil
	}
	f.acquired++
	return func() { f.released++ }, true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func mustLoc(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}
