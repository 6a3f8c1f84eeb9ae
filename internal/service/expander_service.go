package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univhub/timetable-engine/internal/models"
	"github.com/univhub/timetable-engine/pkg/config"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
	"github.com/univhub/timetable-engine/pkg/timeutil"
)

// SkippedSlot records a template occurrence dropped during a SKIP-mode run.
type SkippedSlot struct {
	Date      string                `json:"date"`
	StartTime string                `json:"start_time"`
	EndTime   string                `json:"end_time"`
	GroupID   string                `json:"group_id"`
	Conflicts models.ConflictReport `json:"conflicts"`
}

// ExpansionResult summarises one expansion run.
type ExpansionResult struct {
	Created []models.Session `json:"created"`
	Skipped []SkippedSlot    `json:"skipped,omitempty"`
	Forced  []string         `json:"forced,omitempty"`
	Removed int64            `json:"removed"`
}

// expansionCommitter is the lifecycle surface the expander writes through.
type expansionCommitter interface {
	CommitExpansion(ctx context.Context, plan ExpansionPlan, actor *models.Actor) (int64, error)
}

// ExpanderService turns a weekly schedule template into concrete PLANNED
// sessions over a semester date range. Expansion is deterministic: the same
// template and store state always produce the same session set.
type ExpanderService struct {
	lifecycle expansionCommitter
	conflicts conflictDetector
	catalog   catalogReader
	authz     authorizer
	validate  *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       config.EngineConfig
}

func NewExpanderService(lifecycle expansionCommitter, conflicts conflictDetector, catalog catalogReader, authz authorizer, metrics *MetricsService, logger *zap.Logger, cfg config.EngineConfig) *ExpanderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpanderService{
		lifecycle: lifecycle,
		conflicts: conflicts,
		catalog:   catalog,
		authz:     authz,
		validate:  validator.New(),
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Expand enumerates the template occurrences, applies the conflict mode and
// commits the surviving sessions in one atomic batch. With replace set, the
// run first removes this expander's earlier PLANNED output in the range.
func (s *ExpanderService) Expand(ctx context.Context, tmpl models.ScheduleTemplate, mode config.ExpansionMode, replace bool, actor *models.Actor) (*ExpansionResult, error) {
	if mode == "" {
		mode = s.cfg.ExpansionDefaultMode
	}
	if mode != config.ExpansionStrict && mode != config.ExpansionSkip && mode != config.ExpansionForce {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown expansion mode %q", mode))
	}
	if mode == config.ExpansionForce && (actor == nil || actor.Role != models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "FORCE mode requires an administrator")
	}
	if err := s.validate.Struct(tmpl); err != nil {
		s.metrics.ObserveExpansion(string(mode), "invalid")
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid schedule template").WithCause(err)
	}

	start, err := timeutil.ParseDate(tmpl.StartDate, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	end, err := timeutil.ParseDate(tmpl.EndDate, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("template end date %s precedes start date %s", tmpl.EndDate, tmpl.StartDate))
	}
	if err := s.checkEntries(ctx, tmpl.Entries, actor); err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(tmpl.SkipDates))
	for _, d := range tmpl.SkipDates {
		if _, err := timeutil.ParseDate(d, s.cfg.Location); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		skip[d] = struct{}{}
	}

	candidates := s.enumerate(tmpl, start, end, skip, actor)

	// In replace mode the run's own earlier output is about to be dropped,
	// so it must not count as a conflict.
	var ignore func(*models.Session) bool
	if replace {
		groupSet := make(map[string]struct{})
		for _, id := range templateGroupIDs(tmpl) {
			groupSet[id] = struct{}{}
		}
		ignore = func(existing *models.Session) bool {
			if existing.Origin != models.OriginTemplate || existing.Status != models.StatusPlanned {
				return false
			}
			if existing.ModifiedBy != expanderIdentity {
				return false
			}
			if existing.Date < tmpl.StartDate || existing.Date > tmpl.EndDate {
				return false
			}
			_, inScope := groupSet[existing.GroupID]
			return inScope
		}
	}

	result := &ExpansionResult{}
	var strictReport models.ConflictReport
	for i := range candidates {
		candidate := &candidates[i]
		report, err := s.conflicts.DetectWith(ctx, candidate, ignore)
		if err != nil {
			return nil, err
		}
		if batch := intraBatchConflicts(result.Created, candidate); len(batch) > 0 {
			report = append(report, batch...)
		}
		if report.Empty() {
			result.Created = append(result.Created, *candidate)
			continue
		}
		for _, record := range report {
			s.metrics.ObserveConflict(string(record.Kind))
		}
		switch mode {
		case config.ExpansionStrict:
			strictReport = append(strictReport, report...)
		case config.ExpansionSkip:
			result.Skipped = append(result.Skipped, SkippedSlot{
				Date:      candidate.Date,
				StartTime: candidate.StartTime,
				EndTime:   candidate.EndTime,
				GroupID:   candidate.GroupID,
				Conflicts: report,
			})
		case config.ExpansionForce:
			result.Forced = append(result.Forced, candidate.ID)
			result.Created = append(result.Created, *candidate)
		}
	}

	if mode == config.ExpansionStrict && len(strictReport) > 0 {
		s.metrics.ObserveExpansion(string(mode), "aborted")
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("expansion aborted, %d conflicts detected", len(strictReport))),
			strictReport)
	}

	groupIDs := templateGroupIDs(tmpl)
	removed, err := s.lifecycle.CommitExpansion(ctx, ExpansionPlan{
		From:     tmpl.StartDate,
		To:       tmpl.EndDate,
		GroupIDs: groupIDs,
		Replace:  replace,
		Sessions: result.Created,
	}, actor)
	if err != nil {
		s.metrics.ObserveExpansion(string(mode), "failed")
		return nil, err
	}
	result.Removed = removed

	s.metrics.ObserveExpansion(string(mode), "committed")
	s.logger.Info("template expanded",
		zap.String("semester_id", tmpl.SemesterID),
		zap.String("mode", string(mode)),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int64("removed", removed))
	return result, nil
}

// enumerate walks the semester range day by day and materialises every
// occurrence the recurrence policy selects, ordered by date then start time.
func (s *ExpanderService) enumerate(tmpl models.ScheduleTemplate, start, end time.Time, skip map[string]struct{}, actor *models.Actor) []models.Session {
	byDay := make(map[int][]models.TemplateEntry)
	for _, entry := range tmpl.Entries {
		byDay[entry.Day] = append(byDay[entry.Day], entry)
	}

	var out []models.Session
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		dateStr := timeutil.FormatDate(date)
		if _, skipped := skip[dateStr]; skipped {
			continue
		}
		entries, ok := byDay[timeutil.DayOrdinal(date.Weekday())]
		if !ok {
			continue
		}
		if !weekSelected(tmpl.Recurrence, timeutil.WeekIndex(start, date)) {
			continue
		}
		for _, entry := range entries {
			out = append(out, models.Session{
				ID:         uuid.NewString(),
				Date:       dateStr,
				StartTime:  entry.StartTime,
				EndTime:    entry.EndTime,
				RoomID:     entry.RoomID,
				SubjectID:  entry.SubjectID,
				GroupID:    entry.GroupID,
				TeacherID:  entry.TeacherID,
				Status:     models.StatusPlanned,
				Origin:     models.OriginTemplate,
				ModifiedBy: expanderIdentity,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// weekSelected maps the semester-relative week index onto the recurrence
// policy: week 1 of the semester (index 0) is an odd week.
func weekSelected(policy models.RecurrencePolicy, weekIndex int) bool {
	switch policy {
	case models.RecurBiweeklyOdd:
		return weekIndex%2 == 0
	case models.RecurBiweeklyEven:
		return weekIndex%2 == 1
	default:
		return true
	}
}

// checkEntries validates every entry's timing against the engine invariants
// and resolves its catalog references once per distinct id.
func (s *ExpanderService) checkEntries(ctx context.Context, entries []models.TemplateEntry, actor *models.Actor) error {
	seenGroups := make(map[string]struct{})
	groupSlots := make(map[string]int)
	teacherSlots := make(map[string]int)
	for i, entry := range entries {
		groupKey := fmt.Sprintf("%d|%s|%s", entry.Day, entry.StartTime, entry.GroupID)
		if prev, dup := groupSlots[groupKey]; dup {
			return entryError(i, fmt.Errorf("duplicates entry %d: group %s already has a class on day %d at %s",
				prev, entry.GroupID, entry.Day, entry.StartTime))
		}
		groupSlots[groupKey] = i
		teacherKey := fmt.Sprintf("%d|%s|%s", entry.Day, entry.StartTime, entry.TeacherID)
		if prev, dup := teacherSlots[teacherKey]; dup {
			return entryError(i, fmt.Errorf("duplicates entry %d: teacher %s already teaches on day %d at %s",
				prev, entry.TeacherID, entry.Day, entry.StartTime))
		}
		teacherSlots[teacherKey] = i
		if err := timeutil.ValidateTimeOfDay(entry.StartTime, s.cfg.MinuteGranularity); err != nil {
			return entryError(i, err)
		}
		if err := timeutil.ValidateTimeOfDay(entry.EndTime, s.cfg.MinuteGranularity); err != nil {
			return entryError(i, err)
		}
		startMin, _ := timeutil.ParseTimeOfDay(entry.StartTime)
		endMin, _ := timeutil.ParseTimeOfDay(entry.EndTime)
		if endMin <= startMin {
			return entryError(i, fmt.Errorf("end time %s must be after start time %s", entry.EndTime, entry.StartTime))
		}
		if duration := endMin - startMin; duration < s.cfg.SessionMinMinutes || duration > s.cfg.SessionMaxMinutes {
			return entryError(i, fmt.Errorf("duration %d minutes outside allowed range %d-%d",
				duration, s.cfg.SessionMinMinutes, s.cfg.SessionMaxMinutes))
		}

		if _, err := s.catalog.Group(ctx, entry.GroupID); err != nil {
			return catalogRefError("group", entry.GroupID, err)
		}
		if _, err := s.catalog.Teacher(ctx, entry.TeacherID); err != nil {
			return catalogRefError("teacher", entry.TeacherID, err)
		}
		if _, err := s.catalog.Room(ctx, entry.RoomID); err != nil {
			return catalogRefError("room", entry.RoomID, err)
		}
		if _, err := s.catalog.Subject(ctx, entry.SubjectID); err != nil {
			return catalogRefError("subject", entry.SubjectID, err)
		}

		if _, seen := seenGroups[entry.GroupID]; !seen {
			seenGroups[entry.GroupID] = struct{}{}
			probe := models.Session{GroupID: entry.GroupID, TeacherID: entry.TeacherID, RoomID: entry.RoomID}
			if err := s.authz.May(ctx, actor, &probe, models.OpCreate); err != nil {
				return err
			}
		}
	}
	return nil
}

func entryError(index int, err error) error {
	return appErrors.Clone(appErrors.ErrValidation,
		fmt.Sprintf("template entry %d: %v", index, err))
}

// intraBatchConflicts catches overlaps between occurrences of the same run,
// which the store-backed detector cannot see before commit.
func intraBatchConflicts(accepted []models.Session, candidate *models.Session) models.ConflictReport {
	candStart, err := timeutil.ParseTimeOfDay(candidate.StartTime)
	if err != nil {
		return nil
	}
	candEnd, err := timeutil.ParseTimeOfDay(candidate.EndTime)
	if err != nil {
		return nil
	}

	var report models.ConflictReport
	for i := range accepted {
		other := &accepted[i]
		if other.Date != candidate.Date {
			continue
		}
		otherStart, err := timeutil.ParseTimeOfDay(other.StartTime)
		if err != nil {
			continue
		}
		otherEnd, err := timeutil.ParseTimeOfDay(other.EndTime)
		if err != nil {
			continue
		}
		if !timeutil.Overlaps(candStart, candEnd, otherStart, otherEnd) {
			continue
		}
		switch {
		case other.RoomID == candidate.RoomID:
			report = append(report, conflictRecordFor(models.ConflictRoom, candidate.RoomID, other))
		case other.TeacherID == candidate.TeacherID:
			report = append(report, conflictRecordFor(models.ConflictTeacher, candidate.TeacherID, other))
		case other.GroupID == candidate.GroupID:
			report = append(report, conflictRecordFor(models.ConflictGroup, candidate.GroupID, other))
		}
	}
	return report
}

func conflictRecordFor(kind models.ConflictKind, axisID string, other *models.Session) models.ConflictRecord {
	return models.ConflictRecord{
		Kind:        kind,
		ExistingID:  other.ID,
		Date:        other.Date,
		StartTime:   other.StartTime,
		EndTime:     other.EndTime,
		RoomID:      other.RoomID,
		TeacherID:   other.TeacherID,
		GroupID:     other.GroupID,
		Explanation: explain(kind, axisID, other),
	}
}

func templateGroupIDs(tmpl models.ScheduleTemplate) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, entry := range tmpl.Entries {
		if _, ok := seen[entry.GroupID]; ok {
			continue
		}
		seen[entry.GroupID] = struct{}{}
		out = append(out, entry.GroupID)
	}
	sort.Strings(out)
	return out
}
