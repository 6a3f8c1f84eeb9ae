package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univhub/timetable-engine/internal/models"
	"github.com/univhub/timetable-engine/pkg/config"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
)

func newTestExpander(store *mockSessionStore) (*ExpanderService, *captureSink) {
	cfg := testEngineConfig()
	catalog := newMockCatalog()
	sink := &captureSink{}
	bridge := NewEventBridge([]Sink{sink}, nil, nil, 0)
	conflicts := NewConflictService(store, nil)
	authz := NewAuthzService(catalog)
	lifecycle := NewLifecycleService(store, catalog, conflicts, authz, bridge, nil, nil, cfg)
	return NewExpanderService(lifecycle, conflicts, catalog, authz, nil, nil, cfg), sink
}

// 2025-09-29 through 2025-12-07 holds exactly ten Mondays.
func mondayTemplate() models.ScheduleTemplate {
	return models.ScheduleTemplate{
		SemesterID: "2025-S1",
		StartDate:  "2025-09-29",
		EndDate:    "2025-12-07",
		Recurrence: models.RecurWeekly,
		Entries: []models.TemplateEntry{
			{Day: 1, StartTime: "08:00", EndTime: "09:30", SubjectID: "SUB-ALGO", GroupID: "G-A", TeacherID: "T-1", RoomID: "R1"},
		},
	}
}

func TestExpandWeeklyWithSkipDate(t *testing.T) {
	store := newMockSessionStore()
	svc, sink := newTestExpander(store)

	tmpl := mondayTemplate()
	tmpl.SkipDates = []string{"2025-11-03"}

	result, err := svc.Expand(context.Background(), tmpl, config.ExpansionStrict, false, adminActor())
	require.NoError(t, err)
	assert.Len(t, result.Created, 9)
	for _, session := range result.Created {
		assert.NotEqual(t, "2025-11-03", session.Date)
		assert.Equal(t, models.OriginTemplate, session.Origin)
		assert.Equal(t, models.StatusPlanned, session.Status)
	}

	events := sink.captured()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTemplateExpanded, events[0].Type)
	assert.Len(t, events[0].Sessions, 9)
}

func TestExpandBiweeklyParity(t *testing.T) {
	store := newMockSessionStore()
	svc, _ := newTestExpander(store)

	tmpl := mondayTemplate()
	tmpl.Recurrence = models.RecurBiweeklyOdd
	result, err := svc.Expand(context.Background(), tmpl, config.ExpansionStrict, false, adminActor())
	require.NoError(t, err)
	require.Len(t, result.Created, 5)
	assert.Equal(t, "2025-09-29", result.Created[0].Date)
	assert.Equal(t, "2025-10-13", result.Created[1].Date)

	store = newMockSessionStore()
	svc, _ = newTestExpander(store)
	tmpl.Recurrence = models.RecurBiweeklyEven
	result, err = svc.Expand(context.Background(), tmpl, config.ExpansionStrict, false, adminActor())
	require.NoError(t, err)
	require.Len(t, result.Created, 5)
	assert.Equal(t, "2025-10-06", result.Created[0].Date)
}

func TestExpandBiweeklyParityAcrossDSTTransition(t *testing.T) {
	store := newMockSessionStore()
	svc, _ := newTestExpander(store)

	// the Paris spring-forward on 2025-03-30 sits inside the range; week
	// parity must stay anchored to calendar weeks regardless
	tmpl := mondayTemplate()
	tmpl.StartDate = "2025-03-24"
	tmpl.EndDate = "2025-04-07"
	tmpl.Recurrence = models.RecurBiweeklyOdd

	result, err := svc.Expand(context.Background(), tmpl, config.ExpansionStrict, false, adminActor())
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	assert.Equal(t, "2025-03-24", result.Created[0].Date)
	assert.Equal(t, "2025-04-07", result.Created[1].Date)
}

func TestExpandStrictAbortsOnConflict(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("busy", "2025-10-06", "08:00", "09:30", "R1", "T-9", "G-Z"),
	)
	svc, sink := newTestExpander(store)

	_, err := svc.Expand(context.Background(), mondayTemplate(), config.ExpansionStrict, false, adminActor())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "CONFLICT", appErr.Code)
	report, ok := appErr.Details.(models.ConflictReport)
	require.True(t, ok)
	assert.NotEmpty(t, report)

	// all-or-nothing: nothing written, nothing emitted
	assert.Len(t, store.sessions, 1)
	assert.Empty(t, sink.captured())
}

func TestExpandSkipDropsOnlyConflictingSlots(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("busy", "2025-10-06", "08:00", "09:30", "R1", "T-9", "G-Z"),
	)
	svc, _ := newTestExpander(store)

	result, err := svc.Expand(context.Background(), mondayTemplate(), config.ExpansionSkip, false, adminActor())
	require.NoError(t, err)
	assert.Len(t, result.Created, 9)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "2025-10-06", result.Skipped[0].Date)
	assert.NotEmpty(t, result.Skipped[0].Conflicts)
}

func TestExpandForceKeepsConflictingSlots(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("busy", "2025-10-06", "08:00", "09:30", "R1", "T-9", "G-Z"),
	)
	svc, _ := newTestExpander(store)

	result, err := svc.Expand(context.Background(), mondayTemplate(), config.ExpansionForce, false, adminActor())
	require.NoError(t, err)
	assert.Len(t, result.Created, 10)
	assert.Len(t, result.Forced, 1)
}

func TestExpandReplaceRemovesOwnPriorOutputOnly(t *testing.T) {
	// stale output occupies the very slot the re-expansion will fill; it must
	// not count as a conflict because the replace run drops it
	stale := plannedSession("stale", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A")
	stale.Origin = models.OriginTemplate
	stale.ModifiedBy = expanderIdentity

	manual := plannedSession("manual", "2025-10-07", "10:00", "11:30", "R1", "T-1", "G-A")

	store := newMockSessionStore(stale, manual)
	svc, _ := newTestExpander(store)

	result, err := svc.Expand(context.Background(), mondayTemplate(), config.ExpansionStrict, true, adminActor())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Removed)
	assert.Len(t, result.Created, 10)

	// the manual session is untouched by re-expansion
	_, kept := store.sessions["manual"]
	assert.True(t, kept)
	_, gone := store.sessions["stale"]
	assert.False(t, gone)
}

func TestExpandAcrossYearBoundary(t *testing.T) {
	store := newMockSessionStore()
	svc, _ := newTestExpander(store)

	tmpl := mondayTemplate()
	tmpl.StartDate = "2025-12-15"
	tmpl.EndDate = "2026-01-12"

	result, err := svc.Expand(context.Background(), tmpl, config.ExpansionStrict, false, adminActor())
	require.NoError(t, err)
	require.Len(t, result.Created, 5)
	assert.Equal(t, "2025-12-29", result.Created[2].Date)
	assert.Equal(t, "2026-01-05", result.Created[3].Date)
}

func TestExpandForceRequiresAdmin(t *testing.T) {
	store := newMockSessionStore()
	svc, _ := newTestExpander(store)

	head := &models.Actor{ID: "u-head", Role: models.RoleDepartmentHead, DepartmentID: "D1"}
	_, err := svc.Expand(context.Background(), mondayTemplate(), config.ExpansionForce, false, head)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)
}

func TestExpandRejectsBadTemplate(t *testing.T) {
	store := newMockSessionStore()
	svc, _ := newTestExpander(store)

	tmpl := mondayTemplate()
	tmpl.Entries = nil
	_, err := svc.Expand(context.Background(), tmpl, config.ExpansionStrict, false, adminActor())
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	tmpl = mondayTemplate()
	tmpl.EndDate = "2025-09-01"
	_, err = svc.Expand(context.Background(), tmpl, config.ExpansionStrict, false, adminActor())
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	tmpl = mondayTemplate()
	tmpl.Entries[0].EndTime = "08:00"
	_, err = svc.Expand(context.Background(), tmpl, config.ExpansionStrict, false, adminActor())
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	// same group addressed twice on the same (day, start)
	tmpl = mondayTemplate()
	tmpl.Entries = append(tmpl.Entries, tmpl.Entries[0])
	_, err = svc.Expand(context.Background(), tmpl, config.ExpansionStrict, false, adminActor())
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestExpandDetectsIntraBatchOverlap(t *testing.T) {
	store := newMockSessionStore()
	svc, _ := newTestExpander(store)

	tmpl := mondayTemplate()
	tmpl.Entries = append(tmpl.Entries, models.TemplateEntry{
		Day: 1, StartTime: "08:30", EndTime: "10:00",
		SubjectID: "SUB-ALGO", GroupID: "G-A", TeacherID: "T-1", RoomID: "R1",
	})

	_, err := svc.Expand(context.Background(), tmpl, config.ExpansionStrict, false, adminActor())
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}
