package app

import (
	"context"
	"fmt"
	"time"
)

// ConflictKind classifies why a proposed time does not work for an
// interviewer.
type ConflictKind string

const (
	ConflictNotFound          ConflictKind = "not_found"
	ConflictUnavailable       ConflictKind = "unavailable"
	ConflictException         ConflictKind = "exception"
	ConflictExistingInterview ConflictKind = "existing_interview"
)

// Conflict is one reason a proposal fails for one interviewer. A single
// check can surface multiple conflicts across multiple interviewers.
type Conflict struct {
	MemberID    string       `json:"member_id"`
	Kind        ConflictKind `json:"kind"`
	Description string       `json:"description"`
}

// DetectConflicts classifies why a proposed specific time would or would not
// work for a set of interviewers. Unlike the resolver it checks that the
// buffered interval falls fully inside some recurring window for that
// weekday: absence of any covering window is itself a conflict, distinct
// from an explicit block.
func (s *Scheduler) DetectConflicts(ctx context.Context, memberIDs []string, start time.Time, p SlotParams) ([]Conflict, error) {
	bufferedStart := start.Add(-p.BufferBefore)
	bufferedEnd := start.Add(p.Duration + p.BufferAfter)

	var conflicts []Conflict
	for _, id := range memberIDs {
		member, err := s.store.GetTeamMember(ctx, id)
		if err == ErrNotFound {
			conflicts = append(conflicts, Conflict{
				MemberID:    id,
				Kind:        ConflictNotFound,
				Description: fmt.Sprintf("interviewer %s not found", id),
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		if !member.IsActive {
			conflicts = append(conflicts, Conflict{
				MemberID:    id,
				Kind:        ConflictNotFound,
				Description: fmt.Sprintf("%s is no longer an active interviewer", member.Name),
			})
			continue
		}

		memberConflicts, err := s.memberConflicts(ctx, member, bufferedStart, bufferedEnd)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, memberConflicts...)
	}
	return conflicts, nil
}

func (s *Scheduler) memberConflicts(ctx context.Context, member *TeamMember, bufferedStart, bufferedEnd time.Time) ([]Conflict, error) {
	windows, err := s.store.ListRecurringAvailability(ctx, member.ID)
	if err != nil {
		return nil, err
	}
	windows = activeWindows(windows)

	var conflicts []Conflict

	covered, err := coveredByWindow(windows, bufferedStart, bufferedEnd)
	if err != nil {
		return nil, err
	}
	if !covered {
		conflicts = append(conflicts, Conflict{
			MemberID:    member.ID,
			Kind:        ConflictUnavailable,
			Description: fmt.Sprintf("%s has no recurring availability covering %s", member.Name, bufferedStart.Format(time.RFC3339)),
		})
	}

	busy, err := s.CollectBusy(ctx, member, bufferedStart, bufferedEnd)
	if err != nil {
		return nil, err
	}

	loc := memberLocation(windows)
	for _, e := range busy.Exceptions {
		if !e.IsUnavailable {
			continue
		}
		if e.FullDay() {
			if e.Date.UTC().Format(dateLayout) == bufferedStart.In(loc).Format(dateLayout) {
				conflicts = append(conflicts, Conflict{
					MemberID:    member.ID,
					Kind:        ConflictException,
					Description: fmt.Sprintf("%s is unavailable all day (%s)", member.Name, e.Reason),
				})
			}
			continue
		}
		iv, err := exceptionInterval(e, loc)
		if err != nil {
			continue
		}
		if bufferedStart.Before(iv.End) && bufferedEnd.After(iv.Start) {
			conflicts = append(conflicts, Conflict{
				MemberID:    member.ID,
				Kind:        ConflictException,
				Description: fmt.Sprintf("%s has a blocking exception (%s)", member.Name, e.Reason),
			})
		}
	}

	for _, iv := range busy.Interviews {
		if bufferedStart.Before(iv.EndsAt()) && bufferedEnd.After(iv.ScheduledAt) {
			conflicts = append(conflicts, Conflict{
				MemberID:    member.ID,
				Kind:        ConflictExistingInterview,
				Description: fmt.Sprintf("%s already has %q at %s", member.Name, iv.Title, iv.ScheduledAt.Format(time.RFC3339)),
			})
		}
	}

	return conflicts, nil
}

// coveredByWindow reports whether [bufferedStart, bufferedEnd) lies fully
// inside some recurring window on that weekday.
func coveredByWindow(windows []RecurringAvailability, bufferedStart, bufferedEnd time.Time) (bool, error) {
	for _, w := range windows {
		loc, err := time.LoadLocation(w.Timezone)
		if err != nil {
			loc = time.UTC
		}
		local := bufferedStart.In(loc)
		if int(local.Weekday()) != w.DayOfWeek {
			continue
		}
		sh, sm, err := parseHHMM(w.StartTime)
		if err != nil {
			return false, err
		}
		eh, em, err := parseHHMM(w.EndTime)
		if err != nil {
			return false, err
		}
		winStart := time.Date(local.Year(), local.Month(), local.Day(), sh, sm, 0, 0, loc)
		winEnd := time.Date(local.Year(), local.Month(), local.Day(), eh, em, 0, 0, loc)
		if !bufferedStart.Before(winStart) && !bufferedEnd.After(winEnd) {
			return true, nil
		}
	}
	return false, nil
}

// SuggestAlternatives re-runs the panel intersection over a forward 7-day
// window and returns the first limit slots strictly after the original
// proposal.
func (s *Scheduler) SuggestAlternatives(ctx context.Context, memberIDs []string, proposed time.Time, p SlotParams, limit int) ([]TimeSlot, error) {
	slots, err := s.IntersectPanel(ctx, memberIDs, proposed, proposed.AddDate(0, 0, 7), p)
	if err != nil {
		return nil, err
	}
	var out []TimeSlot
	for _, slot := range slots {
		if !slot.Start.After(proposed) {
			continue
		}
		out = append(out, slot)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
