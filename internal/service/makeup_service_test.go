package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univhub/timetable-engine/internal/models"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
)

func newTestMakeup(store *mockSessionStore) (*MakeupService, *captureSink) {
	cfg := testEngineConfig()
	catalog := newMockCatalog()
	sink := &captureSink{}
	bridge := NewEventBridge([]Sink{sink}, nil, nil, 0)
	conflicts := NewConflictService(store, nil)
	authz := NewAuthzService(catalog)
	lifecycle := NewLifecycleService(store, catalog, conflicts, authz, bridge, nil, nil, cfg)
	return NewMakeupService(store, conflicts, lifecycle, nil, cfg), sink
}

func cancelledOriginal() models.Session {
	session := plannedSession("orig", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A")
	session.Status = models.StatusCancelled
	return session
}

func TestMakeupEarliestFreeSlotWins(t *testing.T) {
	store := newMockSessionStore(
		cancelledOriginal(),
		// the earliest candidate is taken
		plannedSession("blocker", "2025-10-08", "10:00", "11:30", "R1", "T-9", "G-Z"),
	)
	svc, sink := newTestMakeup(store)

	makeup, reports, err := svc.Schedule(context.Background(), "orig", []MakeupSlot{
		{Date: "2025-10-10", StartTime: "10:00", EndTime: "11:30", RoomID: "R1"},
		{Date: "2025-10-08", StartTime: "10:00", EndTime: "11:30", RoomID: "R1"},
	}, adminActor())
	require.NoError(t, err)
	require.Nil(t, reports)
	// 10-08 clashes, so the next in date order lands
	assert.Equal(t, "2025-10-10", makeup.Date)
	assert.Equal(t, models.StatusMakeup, makeup.Status)

	events := sink.captured()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventMakeupScheduled, events[0].Type)
}

func TestMakeupAllSlotsConflictReturnsReports(t *testing.T) {
	store := newMockSessionStore(
		cancelledOriginal(),
		plannedSession("b1", "2025-10-08", "10:00", "11:30", "R1", "T-9", "G-Z"),
		plannedSession("b2", "2025-10-10", "10:00", "11:30", "R1", "T-8", "G-Y"),
	)
	svc, _ := newTestMakeup(store)

	makeup, reports, err := svc.Schedule(context.Background(), "orig", []MakeupSlot{
		{Date: "2025-10-08", StartTime: "10:00", EndTime: "11:30", RoomID: "R1"},
		{Date: "2025-10-10", StartTime: "10:00", EndTime: "11:30", RoomID: "R1"},
	}, adminActor())
	require.Error(t, err)
	assert.Nil(t, makeup)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
	require.Len(t, reports, 2)
	assert.NotEmpty(t, reports[0])
	assert.NotEmpty(t, reports[1])
}

func TestMakeupSlotOutsideWindowRejected(t *testing.T) {
	store := newMockSessionStore(cancelledOriginal())
	svc, _ := newTestMakeup(store)

	_, _, err := svc.Schedule(context.Background(), "orig", []MakeupSlot{
		{Date: "2025-12-01", StartTime: "10:00", EndTime: "11:30", RoomID: "R1"},
	}, adminActor())
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestMakeupWindowBoundaryInclusive(t *testing.T) {
	store := newMockSessionStore(cancelledOriginal())
	svc, _ := newTestMakeup(store)

	// exactly 30 days after 2025-10-06
	makeup, _, err := svc.Schedule(context.Background(), "orig", []MakeupSlot{
		{Date: "2025-11-05", StartTime: "10:00", EndTime: "11:30", RoomID: "R1"},
	}, adminActor())
	require.NoError(t, err)
	assert.Equal(t, "2025-11-05", makeup.Date)
}

func TestMakeupWindowBoundaryAcrossDSTTransition(t *testing.T) {
	// the 30-day window from 2025-03-15 spans the Paris spring-forward;
	// 2025-04-15 is 31 calendar days out and must still be rejected
	original := plannedSession("orig", "2025-03-15", "08:00", "09:30", "R1", "T-1", "G-A")
	original.Status = models.StatusCancelled
	store := newMockSessionStore(original)
	svc, _ := newTestMakeup(store)

	_, _, err := svc.Schedule(context.Background(), "orig", []MakeupSlot{
		{Date: "2025-04-15", StartTime: "10:00", EndTime: "11:30", RoomID: "R1"},
	}, adminActor())
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	// the last in-window day still lands
	makeup, _, err := svc.Schedule(context.Background(), "orig", []MakeupSlot{
		{Date: "2025-04-14", StartTime: "10:00", EndTime: "11:30", RoomID: "R1"},
	}, adminActor())
	require.NoError(t, err)
	assert.Equal(t, "2025-04-14", makeup.Date)
}

func TestMakeupRequiresCancelledSession(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("orig", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A"),
	)
	svc, _ := newTestMakeup(store)

	_, _, err := svc.Schedule(context.Background(), "orig", []MakeupSlot{
		{Date: "2025-10-10", StartTime: "10:00", EndTime: "11:30", RoomID: "R1"},
	}, adminActor())
	require.Error(t, err)
	assert.Equal(t, "ILLEGAL_STATE_TRANSITION", appErrors.FromError(err).Code)
}

func TestMakeupMissingOriginal(t *testing.T) {
	store := newMockSessionStore()
	svc, _ := newTestMakeup(store)

	_, _, err := svc.Schedule(context.Background(), "ghost", []MakeupSlot{
		{Date: "2025-10-10", StartTime: "10:00", EndTime: "11:30", RoomID: "R1"},
	}, adminActor())
	require.Error(t, err)
	assert.Equal(t, "SESSION_NOT_FOUND", appErrors.FromError(err).Code)
}
