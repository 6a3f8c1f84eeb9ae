package models

// RecurrencePolicy selects which semester weeks a template entry lands on.
type RecurrencePolicy string

const (
	RecurWeekly       RecurrencePolicy = "WEEKLY"
	RecurBiweeklyOdd  RecurrencePolicy = "BIWEEKLY_ODD"
	RecurBiweeklyEven RecurrencePolicy = "BIWEEKLY_EVEN"
)

// TemplateEntry is one weekly pattern cell: a class held on a given weekday
// at a fixed time window.
type TemplateEntry struct {
	Day       int    `json:"day" validate:"required,min=1,max=7"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	GroupID   string `json:"group_id" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
	RoomID    string `json:"room_id" validate:"required"`
}

// ScheduleTemplate is the generator input covering a semester date range.
// The template itself is transient: only its emitted sessions persist.
type ScheduleTemplate struct {
	SemesterID string           `json:"semester_id" validate:"required"`
	StartDate  string           `json:"start_date" validate:"required"`
	EndDate    string           `json:"end_date" validate:"required"`
	Entries    []TemplateEntry  `json:"entries" validate:"required,min=1,dive"`
	Recurrence RecurrencePolicy `json:"recurrence" validate:"required,oneof=WEEKLY BIWEEKLY_ODD BIWEEKLY_EVEN"`
	SkipDates  []string         `json:"skip_dates,omitempty"`
}
