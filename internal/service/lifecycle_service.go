package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univhub/timetable-engine/internal/models"
	"github.com/univhub/timetable-engine/pkg/config"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
	"github.com/univhub/timetable-engine/pkg/timeutil"
)

// expanderIdentity marks sessions written by template expansion so that
// re-expansion only ever replaces its own output.
const expanderIdentity = "template-expander"

// MakeupRequest describes a replacement slot for a cancelled session.
type MakeupRequest struct {
	ReplacesID string `json:"replaces_id" validate:"required"`
	Date       string `json:"date" validate:"required"`
	StartTime  string `json:"start_time" validate:"required"`
	EndTime    string `json:"end_time" validate:"required"`
	RoomID     string `json:"room_id" validate:"required"`
}

// ExpansionPlan is a batch of template-derived sessions handed to the
// lifecycle manager for an atomic write.
type ExpansionPlan struct {
	From     string
	To       string
	GroupIDs []string
	Replace  bool
	Sessions []models.Session
}

// LifecycleService owns every session mutation. All writes pass through it:
// per-session keyed locks serialize concurrent mutations of the same id, the
// store write is the commit point for the operation's time budget, and each
// committed transition emits exactly one event.
type LifecycleService struct {
	store     sessionStore
	catalog   catalogReader
	conflicts conflictDetector
	authz     authorizer
	events    eventEmitter
	locks     *keyedMutex
	validate  *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       config.EngineConfig
	now       func() time.Time
}

func NewLifecycleService(store sessionStore, catalog catalogReader, conflicts conflictDetector, authz authorizer, events eventEmitter, metrics *MetricsService, logger *zap.Logger, cfg config.EngineConfig) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		store:     store,
		catalog:   catalog,
		conflicts: conflicts,
		authz:     authz,
		events:    events,
		locks:     newKeyedMutex(),
		validate:  validator.New(),
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// CreateSession validates, authorizes and conflict-checks a candidate, then
// commits it as a PLANNED manual session.
func (s *LifecycleService) CreateSession(ctx context.Context, candidate models.SessionCandidate, actor *models.Actor) (*models.Session, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.SingleOpTimeout)
	defer cancel()

	if err := s.validate.Struct(candidate); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing required session fields").WithCause(err)
	}
	if err := s.validateTiming(candidate.Date, candidate.StartTime, candidate.EndTime); err != nil {
		return nil, err
	}
	if err := s.checkCatalogRefs(opCtx, candidate.GroupID, candidate.TeacherID, candidate.RoomID, candidate.SubjectID); err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:         uuid.NewString(),
		Date:       candidate.Date,
		StartTime:  candidate.StartTime,
		EndTime:    candidate.EndTime,
		RoomID:     candidate.RoomID,
		SubjectID:  candidate.SubjectID,
		GroupID:    candidate.GroupID,
		TeacherID:  candidate.TeacherID,
		Status:     models.StatusPlanned,
		Origin:     models.OriginManual,
		ModifiedBy: actorID(actor),
	}

	if err := s.authz.May(opCtx, actor, session, models.OpCreate); err != nil {
		return nil, err
	}

	s.locks.Lock(session.ID)
	defer s.locks.Unlock(session.ID)

	if err := s.checkConflicts(opCtx, session); err != nil {
		return nil, err
	}
	if err := s.checkpoint(opCtx); err != nil {
		return nil, err
	}

	writeCtx := context.WithoutCancel(opCtx)
	if err := s.store.Put(writeCtx, session); err != nil {
		return nil, appErrors.ErrStoreFailure.WithCause(err)
	}
	s.events.Emit(writeCtx, models.Event{
		Type:    models.EventSessionCreated,
		ActorID: actorID(actor),
		Session: session,
	})
	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("date", session.Date),
		zap.String("group_id", session.GroupID))
	return session, nil
}

// Reschedule moves a PLANNED session to a new date, time window or room.
func (s *LifecycleService) Reschedule(ctx context.Context, id string, patch models.SessionPatch, actor *models.Actor) (*models.Session, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.SingleOpTimeout)
	defer cancel()

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	existing, err := s.loadSession(opCtx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != models.StatusPlanned {
		return nil, appErrors.Clone(appErrors.ErrIllegalState,
			fmt.Sprintf("cannot reschedule a %s session", existing.Status))
	}

	previous := *existing
	modified := previous
	if patch.Date != nil {
		modified.Date = *patch.Date
	}
	if patch.StartTime != nil {
		modified.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		modified.EndTime = *patch.EndTime
	}
	if patch.RoomID != nil {
		modified.RoomID = *patch.RoomID
		if _, err := s.catalog.Room(opCtx, modified.RoomID); err != nil {
			return nil, catalogRefError("room", modified.RoomID, err)
		}
	}
	if err := s.validateTiming(modified.Date, modified.StartTime, modified.EndTime); err != nil {
		return nil, err
	}
	modified.ModifiedBy = actorID(actor)

	if err := s.authz.May(opCtx, actor, &modified, models.OpReschedule); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(opCtx, &modified); err != nil {
		return nil, err
	}
	if err := s.checkpoint(opCtx); err != nil {
		return nil, err
	}

	writeCtx := context.WithoutCancel(opCtx)
	if err := s.store.Put(writeCtx, &modified); err != nil {
		return nil, appErrors.ErrStoreFailure.WithCause(err)
	}
	s.events.Emit(writeCtx, models.Event{
		Type:     models.EventSessionRescheduled,
		ActorID:  actorID(actor),
		Session:  &modified,
		Previous: &previous,
	})
	return &modified, nil
}

// Cancel marks a PLANNED or MAKEUP session cancelled. The reason is
// mandatory and preserved on the record.
func (s *LifecycleService) Cancel(ctx context.Context, id, reason string, actor *models.Actor) (*models.Session, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.SingleOpTimeout)
	defer cancel()

	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a cancellation reason is required")
	}

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	existing, err := s.loadSession(opCtx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(existing.Status, models.StatusCancelled) {
		return nil, appErrors.Clone(appErrors.ErrIllegalState,
			fmt.Sprintf("cannot cancel a %s session", existing.Status))
	}
	if err := s.authz.May(opCtx, actor, existing, models.OpCancel); err != nil {
		return nil, err
	}

	previous := *existing
	existing.Status = models.StatusCancelled
	existing.CancelReason = reason
	existing.ModifiedBy = actorID(actor)

	if err := s.checkpoint(opCtx); err != nil {
		return nil, err
	}

	writeCtx := context.WithoutCancel(opCtx)
	if err := s.store.Put(writeCtx, existing); err != nil {
		return nil, appErrors.ErrStoreFailure.WithCause(err)
	}
	s.events.Emit(writeCtx, models.Event{
		Type:     models.EventSessionCancelled,
		ActorID:  actorID(actor),
		Session:  existing,
		Previous: &previous,
		Reason:   reason,
	})
	return existing, nil
}

// CreateMakeup schedules a replacement for a cancelled session. Subject,
// group and teacher carry over from the cancelled original; the replacement
// date must fall inside the configured makeup window.
func (s *LifecycleService) CreateMakeup(ctx context.Context, req MakeupRequest, actor *models.Actor) (*models.Session, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.SingleOpTimeout)
	defer cancel()

	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing required makeup fields").WithCause(err)
	}

	s.locks.Lock(req.ReplacesID)
	defer s.locks.Unlock(req.ReplacesID)

	replaced, err := s.loadSession(opCtx, req.ReplacesID)
	if err != nil {
		return nil, err
	}
	if replaced.Status != models.StatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrIllegalState,
			fmt.Sprintf("makeup requires a cancelled session, %s is %s", replaced.ID, replaced.Status))
	}
	if err := s.validateTiming(req.Date, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.checkMakeupWindow(replaced.Date, req.Date); err != nil {
		return nil, err
	}
	if _, err := s.catalog.Room(opCtx, req.RoomID); err != nil {
		return nil, catalogRefError("room", req.RoomID, err)
	}

	replacesID := req.ReplacesID
	makeup := &models.Session{
		ID:         uuid.NewString(),
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		RoomID:     req.RoomID,
		SubjectID:  replaced.SubjectID,
		GroupID:    replaced.GroupID,
		TeacherID:  replaced.TeacherID,
		Status:     models.StatusMakeup,
		Origin:     models.OriginMakeup,
		ReplacesID: &replacesID,
		ModifiedBy: actorID(actor),
	}

	if err := s.authz.May(opCtx, actor, makeup, models.OpMakeup); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(opCtx, makeup); err != nil {
		return nil, err
	}
	if err := s.checkpoint(opCtx); err != nil {
		return nil, err
	}

	writeCtx := context.WithoutCancel(opCtx)
	if err := s.store.Put(writeCtx, makeup); err != nil {
		return nil, appErrors.ErrStoreFailure.WithCause(err)
	}
	s.events.Emit(writeCtx, models.Event{
		Type:       models.EventMakeupScheduled,
		ActorID:    actorID(actor),
		Session:    makeup,
		Previous:   replaced,
		ReplacesID: replacesID,
	})
	return makeup, nil
}

// MarkCompleted promotes an ended PLANNED or MAKEUP session to COMPLETED.
// A nil actor is the sweeper; it bypasses the authorization gate.
func (s *LifecycleService) MarkCompleted(ctx context.Context, id string, actor *models.Actor) (*models.Session, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.SingleOpTimeout)
	defer cancel()

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	existing, err := s.loadSession(opCtx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(existing.Status, models.StatusCompleted) {
		return nil, appErrors.Clone(appErrors.ErrIllegalState,
			fmt.Sprintf("cannot complete a %s session", existing.Status))
	}
	ended, err := s.hasEnded(existing)
	if err != nil {
		return nil, err
	}
	if !ended {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("session %s has not ended yet", id))
	}
	if actor != nil {
		if err := s.authz.May(opCtx, actor, existing, models.OpComplete); err != nil {
			return nil, err
		}
	}

	previous := *existing
	existing.Status = models.StatusCompleted
	existing.ModifiedBy = actorID(actor)

	if err := s.checkpoint(opCtx); err != nil {
		return nil, err
	}

	writeCtx := context.WithoutCancel(opCtx)
	if err := s.store.Put(writeCtx, existing); err != nil {
		return nil, appErrors.ErrStoreFailure.WithCause(err)
	}
	s.events.Emit(writeCtx, models.Event{
		Type:     models.EventSessionCompleted,
		ActorID:  actorID(actor),
		Session:  existing,
		Previous: &previous,
	})
	return existing, nil
}

// CommitExpansion writes a template expansion batch atomically under the
// bulk time budget, holding (date, group) locks in sorted order. Replace
// plans first drop previously expanded PLANNED sessions in range.
func (s *LifecycleService) CommitExpansion(ctx context.Context, plan ExpansionPlan, actor *models.Actor) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.BulkOpTimeout)
	defer cancel()

	keys := make([]string, 0, len(plan.Sessions))
	for i := range plan.Sessions {
		keys = append(keys, plan.Sessions[i].Date+"|"+plan.Sessions[i].GroupID)
	}
	release := s.locks.LockAll(keys)
	defer release()

	if err := s.checkpoint(opCtx); err != nil {
		return 0, err
	}

	writeCtx := context.WithoutCancel(opCtx)
	var removed int64
	if plan.Replace {
		var err error
		removed, err = s.store.ReplaceTemplateRange(writeCtx, plan.From, plan.To, plan.GroupIDs, expanderIdentity, plan.Sessions)
		if err != nil {
			return 0, appErrors.ErrStoreFailure.WithCause(err)
		}
	} else if err := s.store.BulkPut(writeCtx, plan.Sessions); err != nil {
		return 0, appErrors.ErrStoreFailure.WithCause(err)
	}

	s.events.Emit(writeCtx, models.Event{
		Type:     models.EventTemplateExpanded,
		ActorID:  actorID(actor),
		Sessions: plan.Sessions,
	})
	s.logger.Info("template expansion committed",
		zap.String("from", plan.From),
		zap.String("to", plan.To),
		zap.Int("written", len(plan.Sessions)),
		zap.Int64("removed", removed))
	return removed, nil
}

func (s *LifecycleService) loadSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSessionGone, fmt.Sprintf("session %s not found", id))
		}
		return nil, appErrors.ErrStoreFailure.WithCause(err)
	}
	return session, nil
}

// validateTiming enforces the timing invariants: parseable date, granular
// HH:MM bounds, end strictly after start, duration inside configured limits.
func (s *LifecycleService) validateTiming(date, start, end string) error {
	if _, err := timeutil.ParseDate(date, s.cfg.Location); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := timeutil.ValidateTimeOfDay(start, s.cfg.MinuteGranularity); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := timeutil.ValidateTimeOfDay(end, s.cfg.MinuteGranularity); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	startMin, _ := timeutil.ParseTimeOfDay(start)
	endMin, _ := timeutil.ParseTimeOfDay(end)
	if endMin <= startMin {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("end time %s must be after start time %s", end, start))
	}
	duration := endMin - startMin
	if duration < s.cfg.SessionMinMinutes || duration > s.cfg.SessionMaxMinutes {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("session duration %d minutes outside allowed range %d-%d",
				duration, s.cfg.SessionMinMinutes, s.cfg.SessionMaxMinutes))
	}
	return nil
}

func (s *LifecycleService) checkCatalogRefs(ctx context.Context, groupID, teacherID, roomID, subjectID string) error {
	if _, err := s.catalog.Group(ctx, groupID); err != nil {
		return catalogRefError("group", groupID, err)
	}
	if _, err := s.catalog.Teacher(ctx, teacherID); err != nil {
		return catalogRefError("teacher", teacherID, err)
	}
	if _, err := s.catalog.Room(ctx, roomID); err != nil {
		return catalogRefError("room", roomID, err)
	}
	if _, err := s.catalog.Subject(ctx, subjectID); err != nil {
		return catalogRefError("subject", subjectID, err)
	}
	return nil
}

func (s *LifecycleService) checkConflicts(ctx context.Context, session *models.Session) error {
	report, err := s.conflicts.Detect(ctx, session)
	if err != nil {
		return err
	}
	if report.Empty() {
		return nil
	}
	for _, record := range report {
		s.metrics.ObserveConflict(string(record.Kind))
	}
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%d scheduling conflicts detected", len(report))),
		report)
}

func (s *LifecycleService) checkMakeupWindow(originalDate, makeupDate string) error {
	original, err := timeutil.ParseDate(originalDate, s.cfg.Location)
	if err != nil {
		return appErrors.ErrStoreFailure.WithCause(err)
	}
	makeup, err := timeutil.ParseDate(makeupDate, s.cfg.Location)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	days := timeutil.DaysBetween(original, makeup)
	if days < 0 || days > s.cfg.MakeupWindowDays {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("makeup date %s outside the %d-day window after %s",
				makeupDate, s.cfg.MakeupWindowDays, originalDate))
	}
	return nil
}

// hasEnded reports whether the session's end instant, interpreted in the
// engine zone, lies in the past.
func (s *LifecycleService) hasEnded(session *models.Session) (bool, error) {
	date, err := timeutil.ParseDate(session.Date, s.cfg.Location)
	if err != nil {
		return false, appErrors.ErrStoreFailure.WithCause(err)
	}
	endMin, err := timeutil.ParseTimeOfDay(session.EndTime)
	if err != nil {
		return false, appErrors.ErrStoreFailure.WithCause(err)
	}
	end := date.Add(time.Duration(endMin) * time.Minute)
	return s.now().In(s.cfg.Location).After(end), nil
}

func (s *LifecycleService) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return appErrors.ErrTimeout.WithCause(err)
	}
	return nil
}

func catalogRefError(kind, id string, cause error) error {
	return appErrors.Clone(appErrors.ErrCatalogGone, fmt.Sprintf("%s %s not found", kind, id)).WithCause(cause)
}

func actorID(actor *models.Actor) string {
	if actor == nil {
		return "system"
	}
	return actor.ID
}
