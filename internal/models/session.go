package models

import "time"

// SessionStatus is the closed status enumeration for scheduled sessions.
type SessionStatus string

const (
	StatusPlanned   SessionStatus = "PLANNED"
	StatusCancelled SessionStatus = "CANCELLED"
	StatusMakeup    SessionStatus = "MAKEUP"
	StatusCompleted SessionStatus = "COMPLETED"
)

// Terminal reports whether no further transition is allowed from the status.
func (s SessionStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition encodes the session state machine:
// PLANNED -> CANCELLED | COMPLETED, MAKEUP -> CANCELLED | COMPLETED.
func CanTransition(from, to SessionStatus) bool {
	switch from {
	case StatusPlanned, StatusMakeup:
		return to == StatusCancelled || to == StatusCompleted
	default:
		return false
	}
}

// SessionOrigin records how a session came to exist.
type SessionOrigin string

const (
	OriginTemplate SessionOrigin = "TEMPLATE"
	OriginManual   SessionOrigin = "MANUAL"
	OriginMakeup   SessionOrigin = "MAKEUP"
)

// Session is the unit of scheduling: one class instance on a calendar date.
// Times are wall-clock HH:MM in the engine zone; date is YYYY-MM-DD.
type Session struct {
	ID           string        `db:"id" json:"id"`
	Date         string        `db:"session_date" json:"date"`
	StartTime    string        `db:"start_time" json:"start_time"`
	EndTime      string        `db:"end_time" json:"end_time"`
	RoomID       string        `db:"room_id" json:"room_id"`
	SubjectID    string        `db:"subject_id" json:"subject_id"`
	GroupID      string        `db:"group_id" json:"group_id"`
	TeacherID    string        `db:"teacher_id" json:"teacher_id"`
	Status       SessionStatus `db:"status" json:"status"`
	Origin       SessionOrigin `db:"origin" json:"origin"`
	ReplacesID   *string       `db:"replaces_id" json:"replaces_id,omitempty"`
	CancelReason string        `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
	ModifiedBy   string        `db:"modified_by" json:"modified_by"`
}

// SessionCandidate is the closed description of a session to be created.
// All fields are required; it is distinct from the Patch used for mutations.
type SessionCandidate struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	RoomID    string `json:"room_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	GroupID   string `json:"group_id" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
}

// SessionPatch carries the mutable subset used by reschedule. Nil fields are
// left untouched.
type SessionPatch struct {
	Date      *string `json:"date,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	RoomID    *string `json:"room_id,omitempty"`
}

// QueryAxis selects the index a session query runs against.
type QueryAxis string

const (
	AxisRoom       QueryAxis = "ROOM"
	AxisTeacher    QueryAxis = "TEACHER"
	AxisGroup      QueryAxis = "GROUP"
	AxisDepartment QueryAxis = "DEPARTMENT"
	AxisSpecialty  QueryAxis = "SPECIALTY"
	AxisLevel      QueryAxis = "LEVEL"
	AxisAll        QueryAxis = "ALL"
)

// SessionQuery describes an indexed lookup over the session store.
// DEPARTMENT, SPECIALTY and LEVEL axes are resolved to group-ID sets through
// the catalog before hitting the store.
type SessionQuery struct {
	Axis     QueryAxis
	AxisID   string
	From     string
	To       string
	Statuses []SessionStatus
	Page     int
	PageSize int
}
