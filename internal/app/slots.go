package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// slotStepMinutes is the fixed granularity of offered start times. The
// cursor always advances by this step regardless of the requested duration,
// so consecutive slots may overlap in their buffer regions.
const slotStepMinutes = 30

const dateLayout = "2006-01-02"

// SlotParams are the shared generation inputs. Identical params across a
// panel are what make exact-tuple intersection safe.
type SlotParams struct {
	Duration     time.Duration
	BufferBefore time.Duration
	BufferAfter  time.Duration
	MinStart     time.Time // earliest acceptable interview start (now + notice)
}

// padded is the full footprint a slot occupies inside a window.
func (p SlotParams) padded() time.Duration {
	return p.BufferBefore + p.Duration + p.BufferAfter
}

// Scheduler resolves availability for team members. It owns no state beyond
// its collaborators.
type Scheduler struct {
	store    Store
	calendar CalendarProvider
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler. calendar may be nil when no external
// calendar integration is configured.
func NewScheduler(store Store, calendar CalendarProvider, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: store, calendar: calendar, logger: logger}
}

// MemberBusy is everything that can block a slot for one member.
type MemberBusy struct {
	Exceptions []AvailabilityException
	Interviews []ScheduledInterview
	External   []BusyInterval
}

// CollectBusy gathers exceptions, scheduled interviews and best-effort
// external calendar busy blocks for one member. External calendar failures
// degrade to an empty list and never fail the overall resolution.
func (s *Scheduler) CollectBusy(ctx context.Context, member *TeamMember, from, to time.Time) (*MemberBusy, error) {
	// Widen by a day on each side so timezone offsets and intervals that
	// straddle the range edges are not missed.
	exceptions, err := s.store.ListExceptions(ctx, member.ID, from.AddDate(0, 0, -1), to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	interviews, err := s.store.ListMemberInterviews(ctx, member.ID, from.Add(-24*time.Hour), to.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	busy := &MemberBusy{Exceptions: exceptions, Interviews: interviews}

	if s.calendar != nil && member.CalendarToken != "" {
		external, err := s.calendar.GetFreeBusy(ctx, member.CalendarToken, from, to)
		if err != nil {
			s.logger.Warn("external calendar free/busy lookup failed",
				"member_id", member.ID, "error", err)
		} else {
			busy.External = external
		}
	}

	return busy, nil
}

// ResolveAvailability computes one member's free slots for a window,
// ascending by start time.
func (s *Scheduler) ResolveAvailability(ctx context.Context, memberID string, from, to time.Time, p SlotParams) ([]TimeSlot, error) {
	member, err := s.store.GetTeamMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return s.resolveMember(ctx, member, from, to, p)
}

func (s *Scheduler) resolveMember(ctx context.Context, member *TeamMember, from, to time.Time, p SlotParams) ([]TimeSlot, error) {
	windows, err := s.store.ListRecurringAvailability(ctx, member.ID)
	if err != nil {
		return nil, err
	}
	windows = activeWindows(windows)
	if len(windows) == 0 {
		return nil, nil
	}

	busy, err := s.CollectBusy(ctx, member, from, to)
	if err != nil {
		return nil, err
	}

	loc := memberLocation(windows)

	blockedDates := map[string]bool{}
	var intervals []BusyInterval
	for _, e := range busy.Exceptions {
		if !e.IsUnavailable {
			// TODO: additive exceptions are stored but not expanded into
			// extra slots; expansion needs a product decision on how they
			// interact with buffers and the 30-minute step.
			continue
		}
		if e.FullDay() {
			blockedDates[e.Date.UTC().Format(dateLayout)] = true
			continue
		}
		iv, err := exceptionInterval(e, loc)
		if err != nil {
			s.logger.Warn("skipping malformed exception", "member_id", member.ID, "exception_id", e.ID, "error", err)
			continue
		}
		intervals = append(intervals, iv)
	}
	for _, iv := range busy.Interviews {
		intervals = append(intervals, BusyInterval{Start: iv.ScheduledAt, End: iv.EndsAt()})
	}
	intervals = append(intervals, busy.External...)

	var slots []TimeSlot
	for _, w := range windows {
		generated, err := generateWindowSlots(member, w, from, to, p, blockedDates)
		if err != nil {
			return nil, err
		}
		slots = append(slots, generated...)
	}

	free := slots[:0]
	for _, slot := range slots {
		if !overlapsAny(slot, p, intervals) {
			free = append(free, slot)
		}
	}

	sort.Slice(free, func(i, j int) bool { return free[i].Start.Before(free[j].Start) })
	return free, nil
}

// generateWindowSlots expands one recurring window into candidate slots
// between from and to. The cursor starts at the window's start; a slot's
// interview bounds are [cursor+bufBefore, cursor+bufBefore+duration) and the
// cursor advances by the fixed 30-minute step. Window times are interpreted
// in the window's own timezone; slots are emitted in UTC.
func generateWindowSlots(member *TeamMember, w RecurringAvailability, from, to time.Time, p SlotParams, blockedDates map[string]bool) ([]TimeSlot, error) {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		loc = time.UTC
	}

	startH, startM, err := parseHHMM(w.StartTime)
	if err != nil {
		return nil, fmt.Errorf("window %d: %w", w.ID, err)
	}
	endH, endM, err := parseHHMM(w.EndTime)
	if err != nil {
		return nil, fmt.Errorf("window %d: %w", w.ID, err)
	}
	if endH*60+endM <= startH*60+startM {
		return nil, fmt.Errorf("window %d: end_time must be after start_time", w.ID)
	}

	var slots []TimeSlot

	first := from.In(loc)
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	last := to.In(loc)

	for ; !day.After(last); day = day.AddDate(0, 0, 1) {
		if int(day.Weekday()) != w.DayOfWeek {
			continue
		}
		if blockedDates[day.Format(dateLayout)] {
			continue
		}

		winStart := time.Date(day.Year(), day.Month(), day.Day(), startH, startM, 0, 0, loc)
		winEnd := time.Date(day.Year(), day.Month(), day.Day(), endH, endM, 0, 0, loc)

		for cursor := winStart; !cursor.Add(p.padded()).After(winEnd); cursor = cursor.Add(slotStepMinutes * time.Minute) {
			start := cursor.Add(p.BufferBefore).UTC()
			end := start.Add(p.Duration)
			if start.Before(p.MinStart) {
				continue
			}
			if start.Before(from) || start.After(to) {
				continue
			}
			slots = append(slots, TimeSlot{
				Start:           start,
				End:             end,
				InterviewerID:   member.ID,
				InterviewerName: member.Name,
			})
		}
	}

	return slots, nil
}

// overlapsAny checks the slot's buffered interval against busy intervals
// using strict overlap: aStart < bEnd && aEnd > bStart.
func overlapsAny(slot TimeSlot, p SlotParams, intervals []BusyInterval) bool {
	bufferedStart := slot.Start.Add(-p.BufferBefore)
	bufferedEnd := slot.End.Add(p.BufferAfter)
	for _, iv := range intervals {
		if bufferedStart.Before(iv.End) && bufferedEnd.After(iv.Start) {
			return true
		}
	}
	return false
}

func activeWindows(windows []RecurringAvailability) []RecurringAvailability {
	out := windows[:0]
	for _, w := range windows {
		if w.Active {
			out = append(out, w)
		}
	}
	return out
}

// memberLocation is the timezone exception times are interpreted in: the
// first active window's zone, UTC when none parses.
func memberLocation(windows []RecurringAvailability) *time.Location {
	for _, w := range windows {
		if loc, err := time.LoadLocation(w.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

func exceptionInterval(e AvailabilityException, loc *time.Location) (BusyInterval, error) {
	sh, sm, err := parseHHMM(e.StartTime)
	if err != nil {
		return BusyInterval{}, err
	}
	eh, em, err := parseHHMM(e.EndTime)
	if err != nil {
		return BusyInterval{}, err
	}
	d := e.Date.UTC()
	return BusyInterval{
		Start: time.Date(d.Year(), d.Month(), d.Day(), sh, sm, 0, 0, loc),
		End:   time.Date(d.Year(), d.Month(), d.Day(), eh, em, 0, 0, loc),
	}, nil
}

// parseHHMM parses "HH:MM", tolerating a trailing seconds component as
// stored by some drivers ("09:00:00").
func parseHHMM(s string) (int, int, error) {
	if len(s) < 5 {
		return 0, 0, fmt.Errorf("invalid time string: %q", s)
	}
	t, err := time.Parse("15:04", s[:5])
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
