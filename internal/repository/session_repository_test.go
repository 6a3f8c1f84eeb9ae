package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univhub/timetable-engine/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "session_date", "start_time", "end_time", "room_id", "subject_id",
		"group_id", "teacher_id", "status", "origin", "replaces_id",
		"cancel_reason", "created_at", "updated_at", "modified_by",
	})
}

func TestSessionRepositoryPutAssignsID(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db, nil)

	mock.ExpectExec("INSERT INTO sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.Session{
		Date:      "2025-10-06",
		StartTime: "08:00",
		EndTime:   "09:30",
		RoomID:    "R1",
		SubjectID: "SUB-ALGO",
		GroupID:   "G-L3-A",
		TeacherID: "T-42",
		Status:    models.StatusPlanned,
		Origin:    models.OriginManual,
	}
	require.NoError(t, repo.Put(context.Background(), session))
	assert.NotEmpty(t, session.ID)
	assert.False(t, session.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryGet(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db, nil)

	rows := sessionRows().AddRow(
		"s1", "2025-10-06", "08:00", "09:30", "R1", "SUB-ALGO",
		"G-L3-A", "T-42", "PLANNED", "MANUAL", nil,
		"", time.Now(), time.Now(), "admin",
	)
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id =").
		WithArgs("s1").
		WillReturnRows(rows)

	session, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", session.ID)
	assert.Equal(t, models.StatusPlanned, session.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryQueryByRoom(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db, nil)

	rows := sessionRows().AddRow(
		"s1", "2025-10-06", "08:00", "09:30", "R1", "SUB-ALGO",
		"G-L3-A", "T-42", "PLANNED", "MANUAL", nil,
		"", time.Now(), time.Now(), "admin",
	)
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE room_id = .+ ORDER BY session_date ASC, start_time ASC, id ASC").
		WithArgs("R1", "2025-10-06", "2025-10-06").
		WillReturnRows(rows)

	sessions, err := repo.Query(context.Background(), models.SessionQuery{
		Axis:   models.AxisRoom,
		AxisID: "R1",
		From:   "2025-10-06",
		To:     "2025-10-06",
	})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "R1", sessions[0].RoomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type stubScopeResolver struct {
	groups []string
}

func (s *stubScopeResolver) GroupIDsByDepartment(ctx context.Context, id string) ([]string, error) {
	return s.groups, nil
}
func (s *stubScopeResolver) GroupIDsBySpecialty(ctx context.Context, id string) ([]string, error) {
	return s.groups, nil
}
func (s *stubScopeResolver) GroupIDsByLevel(ctx context.Context, id string) ([]string, error) {
	return s.groups, nil
}

func TestSessionRepositoryQueryByDepartmentResolvesGroups(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db, &stubScopeResolver{groups: []string{"G-L3-A", "G-L3-B"}})

	mock.ExpectQuery("SELECT .+ FROM sessions WHERE group_id IN").
		WithArgs("G-L3-A", "G-L3-B").
		WillReturnRows(sessionRows())

	sessions, err := repo.Query(context.Background(), models.SessionQuery{
		Axis:   models.AxisDepartment,
		AxisID: "D1",
	})
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryQueryEmptyScopeMatchesNothing(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db, &stubScopeResolver{})

	mock.ExpectQuery(regexp.QuoteMeta("1 = 0")).
		WillReturnRows(sessionRows())

	sessions, err := repo.Query(context.Background(), models.SessionQuery{
		Axis:   models.AxisDepartment,
		AxisID: "D-EMPTY",
	})
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryBulkPutAllOrNothing(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	sessions := []models.Session{
		{Date: "2025-10-06", StartTime: "08:00", EndTime: "09:30", RoomID: "R1", SubjectID: "SUB-ALGO", GroupID: "G-L3-A", TeacherID: "T-42", Status: models.StatusPlanned, Origin: models.OriginTemplate},
		{Date: "2025-10-13", StartTime: "08:00", EndTime: "09:30", RoomID: "R1", SubjectID: "SUB-ALGO", GroupID: "G-L3-A", TeacherID: "T-42", Status: models.StatusPlanned, Origin: models.OriginTemplate},
	}
	require.NoError(t, repo.BulkPut(context.Background(), sessions))
	assert.NotEmpty(t, sessions[0].ID)
	assert.NotEmpty(t, sessions[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryBulkPutRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO sessions").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	sessions := []models.Session{
		{Date: "2025-10-06", StartTime: "08:00", EndTime: "09:30", RoomID: "R1", SubjectID: "SUB-ALGO", GroupID: "G-L3-A", TeacherID: "T-42", Status: models.StatusPlanned, Origin: models.OriginTemplate},
	}
	require.Error(t, repo.BulkPut(context.Background(), sessions))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryReplaceTemplateRange(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM sessions WHERE origin =").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	sessions := []models.Session{
		{Date: "2025-10-06", StartTime: "08:00", EndTime: "09:30", RoomID: "R1", SubjectID: "SUB-ALGO", GroupID: "G-L3-A", TeacherID: "T-42", Status: models.StatusPlanned, Origin: models.OriginTemplate},
	}
	removed, err := repo.ReplaceTemplateRange(context.Background(), "2025-10-06", "2025-12-14", []string{"G-L3-A"}, "expander", sessions)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindCompletable(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db, nil)

	rows := sessionRows().AddRow(
		"s1", "2025-10-05", "08:00", "09:30", "R1", "SUB-ALGO",
		"G-L3-A", "T-42", "PLANNED", "TEMPLATE", nil,
		"", time.Now(), time.Now(), "expander",
	)
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE status IN").
		WithArgs("2025-10-06", "10:00").
		WillReturnRows(rows)

	sessions, err := repo.FindCompletable(context.Background(), "2025-10-06", "10:00")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
