package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univhub/timetable-engine/internal/models"
)

// mockSessionStore is an in-memory sessionStore used across service tests.
type mockSessionStore struct {
	sessions map[string]models.Session
	putErr   error
	queryErr error
	removed  int64
}

func newMockSessionStore(sessions ...models.Session) *mockSessionStore {
	store := &mockSessionStore{sessions: make(map[string]models.Session)}
	for _, session := range sessions {
		store.sessions[session.ID] = session
	}
	return store
}

func (m *mockSessionStore) Put(ctx context.Context, session *models.Session) error {
	if m.putErr != nil {
		return m.putErr
	}
	if session.ID == "" {
		session.ID = "generated-" + session.Date + "-" + session.StartTime
	}
	m.sessions[session.ID] = *session
	return nil
}

func (m *mockSessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &session, nil
}

func (m *mockSessionStore) Query(ctx context.Context, q models.SessionQuery) ([]models.Session, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var out []models.Session
	for _, session := range m.sessions {
		if q.From != "" && session.Date < q.From {
			continue
		}
		if q.To != "" && session.Date > q.To {
			continue
		}
		switch q.Axis {
		case models.AxisRoom:
			if session.RoomID != q.AxisID {
				continue
			}
		case models.AxisTeacher:
			if session.TeacherID != q.AxisID {
				continue
			}
		case models.AxisGroup:
			if session.GroupID != q.AxisID {
				continue
			}
		}
		out = append(out, session)
	}
	return out, nil
}

func (m *mockSessionStore) BulkPut(ctx context.Context, sessions []models.Session) error {
	if m.putErr != nil {
		return m.putErr
	}
	for i := range sessions {
		if err := m.Put(ctx, &sessions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockSessionStore) ReplaceTemplateRange(ctx context.Context, from, to string, groupIDs []string, expander string, sessions []models.Session) (int64, error) {
	if m.putErr != nil {
		return 0, m.putErr
	}
	groups := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		groups[id] = struct{}{}
	}
	var removed int64
	for id, session := range m.sessions {
		_, inScope := groups[session.GroupID]
		if inScope && session.Origin == models.OriginTemplate && session.Status == models.StatusPlanned &&
			session.ModifiedBy == expander && session.Date >= from && session.Date <= to {
			delete(m.sessions, id)
			removed++
		}
	}
	m.removed = removed
	if err := m.BulkPut(ctx, sessions); err != nil {
		return 0, err
	}
	return removed, nil
}

func plannedSession(id, date, start, end, room, teacher, group string) models.Session {
	return models.Session{
		ID:        id,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		RoomID:    room,
		SubjectID: "SUB-ALGO",
		GroupID:   group,
		TeacherID: teacher,
		Status:    models.StatusPlanned,
		Origin:    models.OriginManual,
	}
}

func TestConflictDetectRoomOverlap(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("s1", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A"),
	)
	svc := NewConflictService(store, nil)

	candidate := plannedSession("", "2025-10-06", "09:00", "10:30", "R1", "T-2", "G-B")
	report, err := svc.Detect(context.Background(), &candidate)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, models.ConflictRoom, report[0].Kind)
	assert.Equal(t, "s1", report[0].ExistingID)
	assert.Contains(t, report[0].Explanation, "room R1")
}

func TestConflictDetectBackToBackIsClean(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("s1", "2025-10-06", "08:00", "10:00", "R1", "T-1", "G-A"),
	)
	svc := NewConflictService(store, nil)

	candidate := plannedSession("", "2025-10-06", "10:00", "11:30", "R1", "T-1", "G-A")
	report, err := svc.Detect(context.Background(), &candidate)
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestConflictDetectOrderingRoomTeacherGroup(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("s-group", "2025-10-06", "08:00", "09:30", "R9", "T-9", "G-A"),
		plannedSession("s-teacher", "2025-10-06", "08:00", "09:30", "R8", "T-1", "G-Z"),
		plannedSession("s-room-late", "2025-10-06", "09:00", "10:00", "R1", "T-7", "G-Y"),
		plannedSession("s-room-early", "2025-10-06", "08:00", "09:00", "R1", "T-6", "G-X"),
	)
	svc := NewConflictService(store, nil)

	candidate := plannedSession("", "2025-10-06", "08:00", "10:00", "R1", "T-1", "G-A")
	report, err := svc.Detect(context.Background(), &candidate)
	require.NoError(t, err)
	require.Len(t, report, 4)
	assert.Equal(t, "s-room-early", report[0].ExistingID)
	assert.Equal(t, "s-room-late", report[1].ExistingID)
	assert.Equal(t, "s-teacher", report[2].ExistingID)
	assert.Equal(t, "s-group", report[3].ExistingID)
}

func TestConflictDetectIgnoresCancelledAndSelf(t *testing.T) {
	cancelled := plannedSession("s1", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A")
	cancelled.Status = models.StatusCancelled
	store := newMockSessionStore(
		cancelled,
		plannedSession("s2", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A"),
	)
	svc := NewConflictService(store, nil)

	candidate := plannedSession("s2", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A")
	report, err := svc.Detect(context.Background(), &candidate)
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestConflictDetectCancelledCandidateNeverConflicts(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("s1", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A"),
	)
	svc := NewConflictService(store, nil)

	candidate := plannedSession("", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A")
	candidate.Status = models.StatusCancelled
	report, err := svc.Detect(context.Background(), &candidate)
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestConflictDetectMakeupDraftWithoutDate(t *testing.T) {
	store := newMockSessionStore(
		plannedSession("s1", "2025-10-06", "08:00", "09:30", "R1", "T-1", "G-A"),
	)
	svc := NewConflictService(store, nil)

	candidate := plannedSession("", "", "08:00", "09:30", "R1", "T-1", "G-A")
	candidate.Status = models.StatusMakeup
	report, err := svc.Detect(context.Background(), &candidate)
	require.NoError(t, err)
	assert.True(t, report.Empty())
}
