package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univhub/timetable-engine/internal/models"
)

func newTestView(store *mockSessionStore) *ViewService {
	return NewViewService(store, newMockCatalog(), nil, testEngineConfig())
}

func weekOf(t *testing.T, raw string) time.Time {
	t.Helper()
	cfg := testEngineConfig()
	date, err := time.ParseInLocation("2006-01-02", raw, cfg.Location)
	require.NoError(t, err)
	return date
}

func TestWeeklyViewNormalizesToMonday(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("s1", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A"),
	)
	svc := newTestView(store)

	// Thursday of the same week resolves to the Monday view
	view, err := svc.Weekly(context.Background(), models.ViewGroup, "G-A", weekOf(t, "2025-10-09"), ViewOptions{})
	require.NoError(t, err)
	assert.Equal(t, "2025-10-06", view.WeekStart)
	assert.Equal(t, "2025-W41", view.Week)
	require.Len(t, view.Slots, 1)
	assert.Equal(t, 1, view.Slots[0].Day)
}

func TestWeeklyViewEnrichment(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("s1", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A"),
	)
	svc := newTestView(store)

	view, err := svc.Weekly(context.Background(), models.ViewGroup, "G-A", weekOf(t, "2025-10-06"), ViewOptions{})
	require.NoError(t, err)
	entry := view.Slots[0].Entries[0]
	assert.Equal(t, "Algorithms", entry.SubjectName)
	assert.Equal(t, "A. Benali", entry.TeacherName)
	assert.Equal(t, "B-204", entry.RoomCode)
	assert.Equal(t, "L3 Group A", entry.GroupName)
}

func TestWeeklyViewUnknownRefsFallBack(t *testing.T) {
	session := plannedSession("s1", "2025-10-06", "08:00", "09:30", "R-GONE", "T-GONE", "G-A")
	session.SubjectID = "SUB-GONE"
	store := newMockSessionStore(session)
	svc := newTestView(store)

	view, err := svc.Weekly(context.Background(), models.ViewGroup, "G-A", weekOf(t, "2025-10-06"), ViewOptions{})
	require.NoError(t, err)
	entry := view.Slots[0].Entries[0]
	assert.Equal(t, "(unknown)", entry.SubjectName)
	assert.Equal(t, "(unknown)", entry.TeacherName)
	assert.Equal(t, "(unknown)", entry.RoomCode)
}

func TestWeeklyViewMarkers(t *testing.T) {
	cancelled := plannedSession("s1", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A")
	cancelled.Status = models.StatusCancelled
	replaces := "s1"
	makeup := plannedSession("s2", "2025-10-08", "10:00", "11:30", "R1", "T-1", "G-A")
	makeup.Status = models.StatusMakeup
	makeup.Origin = models.OriginMakeup
	makeup.ReplacesID = &replaces
	store := newMockSessionStore(cancelled, makeup)
	svc := newTestView(store)

	view, err := svc.Weekly(context.Background(), models.ViewGroup, "G-A", weekOf(t, "2025-10-06"), ViewOptions{})
	require.NoError(t, err)
	require.Len(t, view.Slots, 2)

	var sawCancelled, sawMakeup bool
	for _, slot := range view.Slots {
		for _, entry := range slot.Entries {
			if entry.Cancelled {
				sawCancelled = true
			}
			if entry.Makeup {
				sawMakeup = true
				assert.Equal(t, "s1", entry.ReplacesID)
			}
		}
	}
	assert.True(t, sawCancelled)
	assert.True(t, sawMakeup)
}

func TestWeeklyViewStudentResolvesThroughGroup(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("s1", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A"),
	)
	svc := newTestView(store)

	view, err := svc.Weekly(context.Background(), models.ViewStudent, "u-student", weekOf(t, "2025-10-06"), ViewOptions{})
	require.NoError(t, err)
	require.Len(t, view.Slots, 1)
	assert.Equal(t, models.ViewStudent, view.ActorKind)
}

func TestWeeklyViewHidesCompletedByDefault(t *testing.T) {
	done := plannedSession("s1", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A")
	done.Status = models.StatusCompleted
	store := newMockSessionStore(done)
	svc := newTestView(store)

	view, err := svc.Weekly(context.Background(), models.ViewGroup, "G-A", weekOf(t, "2025-10-06"), ViewOptions{})
	require.NoError(t, err)
	assert.Empty(t, view.Slots)

	view, err = svc.Weekly(context.Background(), models.ViewGroup, "G-A", weekOf(t, "2025-10-06"), ViewOptions{IncludeCompleted: true})
	require.NoError(t, err)
	assert.Len(t, view.Slots, 1)
}

func TestWeeklyViewFixedGridBucketsByCell(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("s1", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A"),
		plannedSession("s2", "2025-10-06", "08:30", "09:15", "R9", "T-9", "G-A"),
	)
	svc := newTestView(store)

	view, err := svc.Weekly(context.Background(), models.ViewGroup, "G-A", weekOf(t, "2025-10-06"), ViewOptions{Grid: models.GridFixed})
	require.NoError(t, err)
	require.Len(t, view.Slots, 1)
	assert.Equal(t, "08:00-09:30", view.Slots[0].Slot)
	assert.Len(t, view.Slots[0].Entries, 2)
}

func TestWeeklyViewDeterministic(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("s-b", "2025-10-06", "08:00", "09:30", "R1", "T-2", "G-A"),
		plannedSession("s-a", "2025-10-06", "08:00", "09:30", "R2", "T-1", "G-A"),
		plannedSession("s-c", "2025-10-08", "10:00", "11:30", "R3", "T-1", "G-A"),
	)
	svc := newTestView(store)

	first, err := svc.Weekly(context.Background(), models.ViewGroup, "G-A", weekOf(t, "2025-10-06"), ViewOptions{})
	require.NoError(t, err)
	second, err := svc.Weekly(context.Background(), models.ViewGroup, "G-A", weekOf(t, "2025-10-06"), ViewOptions{})
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)

	// in-slot ordering is teacher id then session id
	assert.Equal(t, "s-a", first.Slots[0].Entries[0].SessionID)
	assert.Equal(t, "s-b", first.Slots[0].Entries[1].SessionID)
}

func TestWeeklyViewDataset(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("s1", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A"),
	)
	svc := newTestView(store)

	view, err := svc.Weekly(context.Background(), models.ViewGroup, "G-A", weekOf(t, "2025-10-06"), ViewOptions{})
	require.NoError(t, err)

	dataset := svc.Dataset(view)
	require.Len(t, dataset.Rows, 1)
	assert.Equal(t, "Algorithms", dataset.Rows[0]["Subject"])
	assert.Equal(t, "PLANNED", dataset.Rows[0]["Status"])
}
