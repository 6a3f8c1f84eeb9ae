package models

// ActorKind addresses a weekly projection.
type ActorKind string

const (
	ViewStudent    ActorKind = "student"
	ViewTeacher    ActorKind = "teacher"
	ViewRoom       ActorKind = "room"
	ViewGroup      ActorKind = "group"
	ViewDepartment ActorKind = "department"
)

// ViewGrid selects how sessions are bucketed inside a weekly view.
type ViewGrid string

const (
	// GridFree keys slots by exact start times.
	GridFree ViewGrid = "free"
	// GridFixed renders into the canonical 08:00-18:00 grid of 90-minute slots.
	GridFixed ViewGrid = "fixed"
)

// ViewEntry is one session rendered into a weekly view, decorated with
// catalog names. Unresolvable references render as "(unknown)".
type ViewEntry struct {
	SessionID   string        `json:"session_id"`
	StartTime   string        `json:"start_time"`
	EndTime     string        `json:"end_time"`
	SubjectID   string        `json:"subject_id"`
	SubjectName string        `json:"subject_name"`
	TeacherID   string        `json:"teacher_id"`
	TeacherName string        `json:"teacher_name"`
	RoomID      string        `json:"room_id"`
	RoomCode    string        `json:"room_code"`
	GroupID     string        `json:"group_id"`
	GroupName   string        `json:"group_name"`
	Status      SessionStatus `json:"status"`
	Cancelled   bool          `json:"cancelled,omitempty"`
	Makeup      bool          `json:"makeup,omitempty"`
	ReplacesID  string        `json:"replaces_id,omitempty"`
}

// ViewSlot groups entries sharing a (day, slot) cell. Entries are ordered by
// teacher id then session id so identical inputs render identically.
type ViewSlot struct {
	Day     int         `json:"day"`
	Date    string      `json:"date"`
	Slot    string      `json:"slot"`
	Entries []ViewEntry `json:"entries"`
}

// WeeklyView is a derived, never-stored projection of seven calendar days
// starting at a Monday.
type WeeklyView struct {
	ActorKind ActorKind  `json:"actor_kind"`
	ActorID   string     `json:"actor_id"`
	WeekStart string     `json:"week_start"`
	Week      string     `json:"week"`
	Grid      ViewGrid   `json:"grid"`
	Slots     []ViewSlot `json:"slots"`
}
