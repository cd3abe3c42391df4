package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntersectPanel(t *testing.T) {
	ctx := context.Background()
	from := utc(2025, 6, 2, 0, 0) // Monday
	to := utc(2025, 6, 3, 0, 0)
	params := SlotParams{Duration: 30 * time.Minute, MinStart: utc(2025, 6, 1, 0, 0)}

	t.Run("keeps only slots free for everyone", func(t *testing.T) {
		store := newMemStore()
		store.addMember(member("a"))
		store.addMember(member("b"))
		store.addWindow(window("a", 1, "09:00", "12:00", "UTC"))
		store.addWindow(window("b", 1, "10:00", "13:00", "UTC"))

		slots, err := newTestScheduler(store, nil).IntersectPanel(ctx, []string{"a", "b"}, from, to, params)
		require.NoError(t, err)

		// Overlap of the two windows is 10:00-12:00.
		require.Len(t, slots, 4)
		assert.Equal(t, utc(2025, 6, 2, 10, 0), slots[0].Start)
		assert.Equal(t, utc(2025, 6, 2, 11, 30), slots[3].Start)
	})

	t.Run("commutative in its input set", func(t *testing.T) {
		store := newMemStore()
		store.addMember(member("a"))
		store.addMember(member("b"))
		store.addWindow(window("a", 1, "09:00", "12:00", "UTC"))
		store.addWindow(window("b", 1, "10:00", "13:00", "UTC"))
		sched := newTestScheduler(store, nil)

		ab, err := sched.IntersectPanel(ctx, []string{"a", "b"}, from, to, params)
		require.NoError(t, err)
		ba, err := sched.IntersectPanel(ctx, []string{"b", "a"}, from, to, params)
		require.NoError(t, err)

		require.Len(t, ba, len(ab))
		for i := range ab {
			assert.Equal(t, ab[i].Start, ba[i].Start)
			assert.Equal(t, ab[i].End, ba[i].End)
		}
	})

	t.Run("reports the first input member as nominal interviewer", func(t *testing.T) {
		store := newMemStore()
		store.addMember(member("a"))
		store.addMember(member("b"))
		store.addWindow(window("a", 1, "09:00", "12:00", "UTC"))
		store.addWindow(window("b", 1, "09:00", "12:00", "UTC"))

		slots, err := newTestScheduler(store, nil).IntersectPanel(ctx, []string{"b", "a"}, from, to, params)
		require.NoError(t, err)
		require.NotEmpty(t, slots)
		for _, s := range slots {
			assert.Equal(t, "b", s.InterviewerID)
		}
	})

	t.Run("offset discretization produces no exact matches", func(t *testing.T) {
		store := newMemStore()
		store.addMember(member("a"))
		store.addMember(member("b"))
		store.addWindow(window("a", 1, "09:00", "12:00", "UTC"))
		store.addWindow(window("b", 1, "09:15", "12:15", "UTC"))

		slots, err := newTestScheduler(store, nil).IntersectPanel(ctx, []string{"a", "b"}, from, to, params)
		require.NoError(t, err)
		// Exact-tuple intersection: 15-minute offset boundaries never align.
		assert.Empty(t, slots)
	})

	t.Run("unknown member fails the whole panel", func(t *testing.T) {
		store := newMemStore()
		store.addMember(member("a"))
		store.addWindow(window("a", 1, "09:00", "12:00", "UTC"))

		_, err := newTestScheduler(store, nil).IntersectPanel(ctx, []string{"a", "ghost"}, from, to, params)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBalanceSlots(t *testing.T) {
	ctx := context.Background()
	now := utc(2025, 6, 4, 8, 0) // Wednesday

	addLoad := func(store *memStore, memberID string, count int, day time.Time) {
		for i := 0; i < count; i++ {
			store.addInterview(ScheduledInterview{
				ID:              fmt.Sprintf("iv-%s-%d", memberID, i),
				Status:          InterviewConfirmed,
				ScheduledAt:     day.Add(time.Duration(i) * time.Hour),
				DurationMinutes: 30,
			}, memberID)
		}
	}

	t.Run("prefers the interviewer with more headroom today", func(t *testing.T) {
		store := newMemStore()
		store.addMember(member("busy"))
		store.addMember(member("idle"))
		addLoad(store, "busy", 4, utc(2025, 6, 4, 9, 0))
		addLoad(store, "idle", 1, utc(2025, 6, 4, 9, 0))

		slotAt := func(id string, hh int) TimeSlot {
			return TimeSlot{Start: utc(2025, 6, 5, hh, 0), End: utc(2025, 6, 5, hh, 0).Add(30 * time.Minute), InterviewerID: id}
		}
		slots := []TimeSlot{slotAt("busy", 9), slotAt("idle", 9), slotAt("busy", 10), slotAt("idle", 10)}

		members, err := store.GetTeamMembers(ctx, []string{"busy", "idle"})
		require.NoError(t, err)

		balanced, err := newTestScheduler(store, nil).BalanceSlots(ctx, slots, members, now)
		require.NoError(t, err)

		require.Len(t, balanced, 4)
		assert.Equal(t, "idle", balanced[0].InterviewerID)
		assert.Equal(t, "idle", balanced[1].InterviewerID)
		assert.Equal(t, "busy", balanced[2].InterviewerID)
		assert.Equal(t, "busy", balanced[3].InterviewerID)
	})

	t.Run("weekly headroom breaks daily ties", func(t *testing.T) {
		store := newMemStore()
		store.addMember(member("light"))
		store.addMember(member("loaded"))
		// Same count today (zero); different counts earlier in the week.
		addLoad(store, "loaded", 3, utc(2025, 6, 2, 9, 0))

		slots := []TimeSlot{
			{Start: utc(2025, 6, 5, 9, 0), End: utc(2025, 6, 5, 9, 30), InterviewerID: "loaded"},
			{Start: utc(2025, 6, 5, 9, 0), End: utc(2025, 6, 5, 9, 30), InterviewerID: "light"},
		}
		members, err := store.GetTeamMembers(ctx, []string{"light", "loaded"})
		require.NoError(t, err)

		balanced, err := newTestScheduler(store, nil).BalanceSlots(ctx, slots, members, now)
		require.NoError(t, err)
		assert.Equal(t, "light", balanced[0].InterviewerID)
	})

	t.Run("over-cap interviewers are deprioritized, not excluded", func(t *testing.T) {
		store := newMemStore()
		store.addMember(member("maxed"))
		addLoad(store, "maxed", 5, utc(2025, 6, 4, 9, 0)) // over the daily cap of 4

		slots := []TimeSlot{{Start: utc(2025, 6, 5, 9, 0), End: utc(2025, 6, 5, 9, 30), InterviewerID: "maxed"}}
		members, err := store.GetTeamMembers(ctx, []string{"maxed"})
		require.NoError(t, err)

		balanced, err := newTestScheduler(store, nil).BalanceSlots(ctx, slots, members, now)
		require.NoError(t, err)
		assert.Len(t, balanced, 1)
	})

	t.Run("equal headroom falls back to earliest start", func(t *testing.T) {
		store := newMemStore()
		store.addMember(member("a"))
		store.addMember(member("b"))

		slots := []TimeSlot{
			{Start: utc(2025, 6, 5, 10, 0), End: utc(2025, 6, 5, 10, 30), InterviewerID: "a"},
			{Start: utc(2025, 6, 5, 9, 0), End: utc(2025, 6, 5, 9, 30), InterviewerID: "b"},
		}
		members, err := store.GetTeamMembers(ctx, []string{"a", "b"})
		require.NoError(t, err)

		balanced, err := newTestScheduler(store, nil).BalanceSlots(ctx, slots, members, now)
		require.NoError(t, err)
		assert.Equal(t, utc(2025, 6, 5, 9, 0), balanced[0].Start)
	})
}

func TestStartOfWeek(t *testing.T) {
	// Wednesday -> preceding Monday.
	assert.Equal(t, utc(2025, 6, 2, 0, 0), startOfWeek(utc(2025, 6, 4, 15, 30)))
	// Monday maps to itself.
	assert.Equal(t, utc(2025, 6, 2, 0, 0), startOfWeek(utc(2025, 6, 2, 0, 1)))
	// Sunday belongs to the week that started six days earlier.
	assert.Equal(t, utc(2025, 6, 2, 0, 0), startOfWeek(utc(2025, 6, 8, 23, 59)))
}
