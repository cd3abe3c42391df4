package app

import (
	"context"
	"sort"
	"time"
)

// IntersectPanel computes slots where every listed member is simultaneously
// free. The intersection is keyed by the exact (start, end) pair, which is
// safe because generation is deterministic for shared params; per-member
// buffers are not supported in panel mode. The first member of the input
// list is reported as the nominal interviewer of each returned slot.
func (s *Scheduler) IntersectPanel(ctx context.Context, memberIDs []string, from, to time.Time, p SlotParams) ([]TimeSlot, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}

	members, err := s.store.GetTeamMembers(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	byID := map[string]*TeamMember{}
	for i := range members {
		byID[members[i].ID] = &members[i]
	}

	var common map[slotKey]TimeSlot
	for i, id := range memberIDs {
		member, ok := byID[id]
		if !ok {
			return nil, ErrNotFound
		}
		slots, err := s.resolveMember(ctx, member, from, to, p)
		if err != nil {
			return nil, err
		}

		keyed := map[slotKey]TimeSlot{}
		for _, slot := range slots {
			keyed[keyOf(slot)] = slot
		}

		if i == 0 {
			common = keyed
			continue
		}
		for k := range common {
			if _, ok := keyed[k]; !ok {
				delete(common, k)
			}
		}
		if len(common) == 0 {
			return nil, nil
		}
	}

	first := byID[memberIDs[0]]
	out := make([]TimeSlot, 0, len(common))
	for _, slot := range common {
		slot.InterviewerID = first.ID
		slot.InterviewerName = first.Name
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

type slotKey struct {
	start int64
	end   int64
}

func keyOf(slot TimeSlot) slotKey {
	return slotKey{start: slot.Start.Unix(), end: slot.End.Unix()}
}

// capacityHeadroom is a member's remaining interview capacity for today and
// the current Monday-start week. Negative values mean the cap is exceeded.
type capacityHeadroom struct {
	Today int
	Week  int
}

// BalanceSlots reorders slots to prefer interviewers furthest below their
// daily caps, tie-breaking on weekly headroom and then earliest start.
// Members at or over cap are deprioritized, never excluded.
func (s *Scheduler) BalanceSlots(ctx context.Context, slots []TimeSlot, members []TeamMember, now time.Time) ([]TimeSlot, error) {
	headroom := map[string]capacityHeadroom{}
	for _, m := range members {
		h, err := s.memberHeadroom(ctx, &m, now)
		if err != nil {
			return nil, err
		}
		headroom[m.ID] = h
	}

	out := make([]TimeSlot, len(slots))
	copy(out, slots)
	sort.SliceStable(out, func(i, j int) bool {
		hi, hj := headroom[out[i].InterviewerID], headroom[out[j].InterviewerID]
		if hi.Today != hj.Today {
			return hi.Today > hj.Today
		}
		if hi.Week != hj.Week {
			return hi.Week > hj.Week
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (s *Scheduler) memberHeadroom(ctx context.Context, m *TeamMember, now time.Time) (capacityHeadroom, error) {
	weekStart := startOfWeek(now)
	interviews, err := s.store.ListMemberInterviews(ctx, m.ID, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return capacityHeadroom{}, err
	}

	dayStart := startOfDay(now)
	dayEnd := dayStart.AddDate(0, 0, 1)

	countToday := 0
	for _, iv := range interviews {
		if !iv.ScheduledAt.Before(dayStart) && iv.ScheduledAt.Before(dayEnd) {
			countToday++
		}
	}

	return capacityHeadroom{
		Today: m.MaxInterviewsPerDay - countToday,
		Week:  m.MaxInterviewsPerWeek - len(interviews),
	}, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfWeek returns the preceding Monday 00:00 UTC.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
