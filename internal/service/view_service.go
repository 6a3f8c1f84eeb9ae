package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/univhub/timetable-engine/internal/models"
	"github.com/univhub/timetable-engine/pkg/config"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
	"github.com/univhub/timetable-engine/pkg/export"
	"github.com/univhub/timetable-engine/pkg/timeutil"
)

const unknownName = "(unknown)"

// The fixed grid spans 08:00-18:00 in 90-minute slots plus a 30-minute tail.
const (
	fixedGridStart = 8 * 60
	fixedGridEnd   = 18 * 60
	fixedSlotSize  = 90
)

// ViewOptions tunes a weekly projection. Cancelled sessions render with a
// marker unless hidden; COMPLETED ones only appear in historical mode.
type ViewOptions struct {
	Grid             models.ViewGrid
	IncludeCompleted bool
	HideCancelled    bool
}

// ViewService projects committed sessions into derived weekly views. Views
// are computed on demand and never stored; projecting is a pure read.
type ViewService struct {
	store   sessionStore
	catalog catalogReader
	logger  *zap.Logger
	cfg     config.EngineConfig
}

func NewViewService(store sessionStore, catalog catalogReader, logger *zap.Logger, cfg config.EngineConfig) *ViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewService{store: store, catalog: catalog, logger: logger, cfg: cfg}
}

// Weekly builds the seven-day view for an actor starting at the Monday of
// the week containing weekStart.
func (s *ViewService) Weekly(ctx context.Context, kind models.ActorKind, actorID string, weekStart time.Time, opts ViewOptions) (*models.WeeklyView, error) {
	if opts.Grid == "" {
		opts.Grid = models.GridFree
	}
	if opts.Grid != models.GridFree && opts.Grid != models.GridFixed {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grid %q", opts.Grid))
	}

	axis, axisID, err := s.resolveAxis(ctx, kind, actorID)
	if err != nil {
		return nil, err
	}

	monday := timeutil.MondayOf(weekStart.In(s.cfg.Location))
	sunday := monday.AddDate(0, 0, 6)
	from, to := timeutil.FormatDate(monday), timeutil.FormatDate(sunday)

	sessions, err := s.store.Query(ctx, models.SessionQuery{
		Axis:   axis,
		AxisID: axisID,
		From:   from,
		To:     to,
	})
	if err != nil {
		return nil, appErrors.ErrStoreFailure.WithCause(err)
	}

	names := newNameResolver(s.catalog)
	cells := make(map[string]*models.ViewSlot)
	for i := range sessions {
		session := &sessions[i]
		if session.Status == models.StatusCancelled && opts.HideCancelled {
			continue
		}
		if session.Status == models.StatusCompleted && !opts.IncludeCompleted {
			continue
		}
		slotKey, slotLabel, err := s.slotFor(session, opts.Grid)
		if err != nil {
			return nil, err
		}
		date, err := timeutil.ParseDate(session.Date, s.cfg.Location)
		if err != nil {
			return nil, appErrors.ErrStoreFailure.WithCause(err)
		}
		key := session.Date + "|" + slotKey
		cell, ok := cells[key]
		if !ok {
			cell = &models.ViewSlot{
				Day:  timeutil.DayOrdinal(date.Weekday()),
				Date: session.Date,
				Slot: slotLabel,
			}
			cells[key] = cell
		}
		cell.Entries = append(cell.Entries, names.entry(ctx, session))
	}

	slots := make([]models.ViewSlot, 0, len(cells))
	for _, cell := range cells {
		sort.SliceStable(cell.Entries, func(i, j int) bool {
			if cell.Entries[i].TeacherID != cell.Entries[j].TeacherID {
				return cell.Entries[i].TeacherID < cell.Entries[j].TeacherID
			}
			return cell.Entries[i].SessionID < cell.Entries[j].SessionID
		})
		slots = append(slots, *cell)
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Day != slots[j].Day {
			return slots[i].Day < slots[j].Day
		}
		return slots[i].Slot < slots[j].Slot
	})

	return &models.WeeklyView{
		ActorKind: kind,
		ActorID:   actorID,
		WeekStart: from,
		Week:      timeutil.FormatISOWeek(monday),
		Grid:      opts.Grid,
		Slots:     slots,
	}, nil
}

// Dataset flattens a weekly view into tabular form for CSV and PDF export.
func (s *ViewService) Dataset(view *models.WeeklyView) export.Dataset {
	headers := []string{"Day", "Date", "Slot", "Subject", "Teacher", "Room", "Group", "Status"}
	var rows []map[string]string
	for _, slot := range view.Slots {
		for _, entry := range slot.Entries {
			rows = append(rows, map[string]string{
				"Day":     fmt.Sprintf("%d", slot.Day),
				"Date":    slot.Date,
				"Slot":    slot.Slot,
				"Subject": entry.SubjectName,
				"Teacher": entry.TeacherName,
				"Room":    entry.RoomCode,
				"Group":   entry.GroupName,
				"Status":  string(entry.Status),
			})
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// resolveAxis maps the view addressing onto a store query axis. Students
// project through their group.
func (s *ViewService) resolveAxis(ctx context.Context, kind models.ActorKind, actorID string) (models.QueryAxis, string, error) {
	switch kind {
	case models.ViewStudent:
		student, err := s.catalog.Student(ctx, actorID)
		if err != nil {
			return "", "", catalogRefError("student", actorID, err)
		}
		return models.AxisGroup, student.GroupID, nil
	case models.ViewTeacher:
		return models.AxisTeacher, actorID, nil
	case models.ViewRoom:
		return models.AxisRoom, actorID, nil
	case models.ViewGroup:
		return models.AxisGroup, actorID, nil
	case models.ViewDepartment:
		return models.AxisDepartment, actorID, nil
	default:
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown view kind %q", kind))
	}
}

// slotFor buckets a session: free grids key by exact start time, fixed grids
// by the 90-minute cell containing the start. Starts outside the fixed grid
// keep their own start key so nothing silently disappears.
func (s *ViewService) slotFor(session *models.Session, grid models.ViewGrid) (string, string, error) {
	start, err := timeutil.ParseTimeOfDay(session.StartTime)
	if err != nil {
		return "", "", appErrors.ErrStoreFailure.WithCause(err)
	}
	if grid == models.GridFree || start < fixedGridStart || start >= fixedGridEnd {
		return session.StartTime, session.StartTime, nil
	}
	index := (start - fixedGridStart) / fixedSlotSize
	slotStart := fixedGridStart + index*fixedSlotSize
	slotEnd := slotStart + fixedSlotSize
	if slotEnd > fixedGridEnd {
		slotEnd = fixedGridEnd
	}
	label := timeutil.FormatMinutes(slotStart) + "-" + timeutil.FormatMinutes(slotEnd)
	return label, label, nil
}

// nameResolver memoises catalog lookups for the duration of one projection.
type nameResolver struct {
	catalog  catalogReader
	subjects map[string]string
	teachers map[string]string
	rooms    map[string]string
	groups   map[string]string
}

func newNameResolver(catalog catalogReader) *nameResolver {
	return &nameResolver{
		catalog:  catalog,
		subjects: make(map[string]string),
		teachers: make(map[string]string),
		rooms:    make(map[string]string),
		groups:   make(map[string]string),
	}
}

func (r *nameResolver) entry(ctx context.Context, session *models.Session) models.ViewEntry {
	entry := models.ViewEntry{
		SessionID:   session.ID,
		StartTime:   session.StartTime,
		EndTime:     session.EndTime,
		SubjectID:   session.SubjectID,
		SubjectName: r.subject(ctx, session.SubjectID),
		TeacherID:   session.TeacherID,
		TeacherName: r.teacher(ctx, session.TeacherID),
		RoomID:      session.RoomID,
		RoomCode:    r.room(ctx, session.RoomID),
		GroupID:     session.GroupID,
		GroupName:   r.group(ctx, session.GroupID),
		Status:      session.Status,
		Cancelled:   session.Status == models.StatusCancelled,
		Makeup:      session.Status == models.StatusMakeup,
	}
	if session.ReplacesID != nil {
		entry.ReplacesID = *session.ReplacesID
	}
	return entry
}

func (r *nameResolver) subject(ctx context.Context, id string) string {
	if name, ok := r.subjects[id]; ok {
		return name
	}
	name := unknownName
	if subject, err := r.catalog.Subject(ctx, id); err == nil {
		name = subject.Name
	}
	r.subjects[id] = name
	return name
}

func (r *nameResolver) teacher(ctx context.Context, id string) string {
	if name, ok := r.teachers[id]; ok {
		return name
	}
	name := unknownName
	if teacher, err := r.catalog.Teacher(ctx, id); err == nil {
		name = teacher.FullName
	}
	r.teachers[id] = name
	return name
}

func (r *nameResolver) room(ctx context.Context, id string) string {
	if code, ok := r.rooms[id]; ok {
		return code
	}
	code := unknownName
	if room, err := r.catalog.Room(ctx, id); err == nil {
		code = room.Code
	}
	r.rooms[id] = code
	return code
}

func (r *nameResolver) group(ctx context.Context, id string) string {
	if name, ok := r.groups[id]; ok {
		return name
	}
	name := unknownName
	if group, err := r.catalog.Group(ctx, id); err == nil {
		name = group.Name
	}
	r.groups[id] = name
	return name
}
