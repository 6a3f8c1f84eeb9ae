package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/univhub/timetable-engine/internal/models"
)

const sessionColumns = "id, session_date, start_time, end_time, room_id, subject_id, group_id, teacher_id, status, origin, replaces_id, cancel_reason, created_at, updated_at, modified_by"

const sessionInsert = `INSERT INTO sessions (id, session_date, start_time, end_time, room_id, subject_id, group_id, teacher_id, status, origin, replaces_id, cancel_reason, created_at, updated_at, modified_by)
VALUES (:id, :session_date, :start_time, :end_time, :room_id, :subject_id, :group_id, :teacher_id, :status, :origin, :replaces_id, :cancel_reason, :created_at, :updated_at, :modified_by)
ON CONFLICT (id) DO UPDATE SET session_date = EXCLUDED.session_date, start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, room_id = EXCLUDED.room_id, subject_id = EXCLUDED.subject_id, group_id = EXCLUDED.group_id, teacher_id = EXCLUDED.teacher_id, status = EXCLUDED.status, origin = EXCLUDED.origin, replaces_id = EXCLUDED.replaces_id, cancel_reason = EXCLUDED.cancel_reason, updated_at = EXCLUDED.updated_at, modified_by = EXCLUDED.modified_by`

// groupScopeResolver resolves non-physical query axes into group ID sets.
// Implemented by the catalog repository.
type groupScopeResolver interface {
	GroupIDsByDepartment(ctx context.Context, departmentID string) ([]string, error)
	GroupIDsBySpecialty(ctx context.Context, specialtyID string) ([]string, error)
	GroupIDsByLevel(ctx context.Context, levelID string) ([]string, error)
}

// SessionRepository is the persistent session store with its indexed lookups.
type SessionRepository struct {
	db     *sqlx.DB
	scopes groupScopeResolver
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(db *sqlx.DB, scopes groupScopeResolver) *SessionRepository {
	return &SessionRepository{db: db, scopes: scopes}
}

// Put inserts or replaces a session by identifier.
func (r *SessionRepository) Put(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	if _, err := r.db.NamedExecContext(ctx, sessionInsert, session); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Get loads a session by id. Returns sql.ErrNoRows when absent.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// Query returns all sessions matching the axis filter and overlapping the
// date range, ordered by date, start time, id.
func (r *SessionRepository) Query(ctx context.Context, q models.SessionQuery) ([]models.Session, error) {
	where, args, err := r.buildWhere(ctx, q)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM sessions %s ORDER BY session_date ASC, start_time ASC, id ASC", sessionColumns, where)
	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expand session query: %w", err)
	}
	query = r.db.Rebind(query)

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, inArgs...); err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	return sessions, nil
}

// List is Query with pagination, for the generic HTTP listing endpoint.
func (r *SessionRepository) List(ctx context.Context, q models.SessionQuery) ([]models.Session, int, error) {
	where, args, err := r.buildWhere(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM sessions %s ORDER BY session_date ASC, start_time ASC, id ASC LIMIT %d OFFSET %d", sessionColumns, where, size, offset)
	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("expand session list: %w", err)
	}
	query = r.db.Rebind(query)

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, inArgs...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM sessions %s", where)
	countQuery, countArgs, err := sqlx.In(countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("expand session count: %w", err)
	}
	countQuery = r.db.Rebind(countQuery)

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	return sessions, total, nil
}

func (r *SessionRepository) buildWhere(ctx context.Context, q models.SessionQuery) (string, []interface{}, error) {
	var conditions []string
	var args []interface{}

	switch q.Axis {
	case models.AxisRoom:
		conditions = append(conditions, "room_id = ?")
		args = append(args, q.AxisID)
	case models.AxisTeacher:
		conditions = append(conditions, "teacher_id = ?")
		args = append(args, q.AxisID)
	case models.AxisGroup:
		conditions = append(conditions, "group_id = ?")
		args = append(args, q.AxisID)
	case models.AxisDepartment, models.AxisSpecialty, models.AxisLevel:
		groupIDs, err := r.resolveGroups(ctx, q.Axis, q.AxisID)
		if err != nil {
			return "", nil, err
		}
		if len(groupIDs) == 0 {
			// No groups under the scope; match nothing.
			conditions = append(conditions, "1 = 0")
		} else {
			conditions = append(conditions, "group_id IN (?)")
			args = append(args, groupIDs)
		}
	case models.AxisAll, "":
	default:
		return "", nil, fmt.Errorf("unknown query axis %q", q.Axis)
	}

	if q.From != "" {
		conditions = append(conditions, "session_date >= ?")
		args = append(args, q.From)
	}
	if q.To != "" {
		conditions = append(conditions, "session_date <= ?")
		args = append(args, q.To)
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, "status IN (?)")
		args = append(args, statuses)
	}

	if len(conditions) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args, nil
}

func (r *SessionRepository) resolveGroups(ctx context.Context, axis models.QueryAxis, axisID string) ([]string, error) {
	if r.scopes == nil {
		return nil, fmt.Errorf("axis %s requires a catalog scope resolver", axis)
	}
	switch axis {
	case models.AxisDepartment:
		return r.scopes.GroupIDsByDepartment(ctx, axisID)
	case models.AxisSpecialty:
		return r.scopes.GroupIDsBySpecialty(ctx, axisID)
	case models.AxisLevel:
		return r.scopes.GroupIDsByLevel(ctx, axisID)
	}
	return nil, fmt.Errorf("axis %s does not resolve to groups", axis)
}

// BulkPut commits every session or none within one transaction.
func (r *SessionRepository) BulkPut(ctx context.Context, sessions []models.Session) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin bulk put: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.bulkInsert(ctx, tx, sessions); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk put: %w", err)
	}
	return nil
}

// ReplaceTemplateRange atomically removes still-planned template emissions in
// [from, to] for the given groups written by expander, then writes the new
// batch. Used by template re-expansion; human edits are left in place.
func (r *SessionRepository) ReplaceTemplateRange(ctx context.Context, from, to string, groupIDs []string, expander string, sessions []models.Session) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, fmt.Errorf("begin template replace: %w", err)
	}
	var removed int64
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if len(groupIDs) > 0 {
		query, args, inErr := sqlx.In(
			`DELETE FROM sessions WHERE origin = ? AND status = ? AND modified_by = ? AND session_date >= ? AND session_date <= ? AND group_id IN (?)`,
			models.OriginTemplate, models.StatusPlanned, expander, from, to, groupIDs,
		)
		if inErr != nil {
			err = fmt.Errorf("expand template delete: %w", inErr)
			return 0, err
		}
		query = tx.Rebind(query)
		result, execErr := tx.ExecContext(ctx, query, args...)
		if execErr != nil {
			err = fmt.Errorf("delete template sessions: %w", execErr)
			return 0, err
		}
		removed, _ = result.RowsAffected()
	}

	if err = r.bulkInsert(ctx, tx, sessions); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit template replace: %w", err)
	}
	return removed, nil
}

func (r *SessionRepository) bulkInsert(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	now := time.Now().UTC()
	for i := range sessions {
		payload := sessions[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err := sqlx.NamedExecContext(ctx, exec, sessionInsert, &payload); err != nil {
			return fmt.Errorf("bulk insert session: %w", err)
		}
		sessions[i] = payload
	}
	return nil
}

// FindCompletable returns non-terminal sessions whose end instant is already
// in the past, for the completion sweeper.
func (r *SessionRepository) FindCompletable(ctx context.Context, today, timeOfDay string) ([]models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE status IN ('PLANNED', 'MAKEUP') AND (session_date < $1 OR (session_date = $1 AND end_time <= $2)) ORDER BY session_date ASC, end_time ASC, id ASC`, sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, today, timeOfDay); err != nil {
		return nil, fmt.Errorf("find completable sessions: %w", err)
	}
	return sessions, nil
}

// Delete hard-removes a session. Test scaffolding only; production code uses
// status transitions.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
