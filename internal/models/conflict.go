package models

// ConflictKind names the axis on which two sessions collide.
type ConflictKind string

const (
	ConflictRoom    ConflictKind = "ROOM"
	ConflictTeacher ConflictKind = "TEACHER"
	ConflictGroup   ConflictKind = "GROUP"
)

// ConflictRecord identifies one existing session clashing with a candidate,
// with the fields a caller needs to present the collision.
type ConflictRecord struct {
	Kind        ConflictKind `json:"kind"`
	ExistingID  string       `json:"existing_id"`
	Date        string       `json:"date"`
	StartTime   string       `json:"start_time"`
	EndTime     string       `json:"end_time"`
	RoomID      string       `json:"room_id"`
	TeacherID   string       `json:"teacher_id"`
	GroupID     string       `json:"group_id"`
	Explanation string       `json:"explanation"`
}

// ConflictReport aggregates every collision found for one candidate.
type ConflictReport []ConflictRecord

// Empty reports whether the candidate is free of collisions.
func (r ConflictReport) Empty() bool {
	return len(r) == 0
}

// ConflictError is returned when a mutation collides with existing sessions.
type ConflictError struct {
	Message string         `json:"message"`
	Report  ConflictReport `json:"report"`
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
