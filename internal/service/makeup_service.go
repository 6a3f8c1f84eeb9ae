package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/univhub/timetable-engine/internal/models"
	"github.com/univhub/timetable-engine/pkg/config"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
	"github.com/univhub/timetable-engine/pkg/timeutil"
)

// MakeupSlot is one candidate replacement window offered to the scheduler.
type MakeupSlot struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	RoomID    string `json:"room_id" validate:"required"`
}

// makeupCreator is the lifecycle surface the scheduler commits through.
type makeupCreator interface {
	CreateMakeup(ctx context.Context, req MakeupRequest, actor *models.Actor) (*models.Session, error)
}

// MakeupService picks the earliest conflict-free candidate slot for a
// cancelled session and schedules the replacement through the lifecycle
// manager. Slot selection is deterministic: candidates are tried in
// (date, start time) order.
type MakeupService struct {
	store     sessionStore
	conflicts conflictDetector
	lifecycle makeupCreator
	logger    *zap.Logger
	cfg       config.EngineConfig
}

func NewMakeupService(store sessionStore, conflicts conflictDetector, lifecycle makeupCreator, logger *zap.Logger, cfg config.EngineConfig) *MakeupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MakeupService{
		store:     store,
		conflicts: conflicts,
		lifecycle: lifecycle,
		logger:    logger,
		cfg:       cfg,
	}
}

// Schedule tries the candidate slots earliest first and commits the first one
// whose conflict report is empty. When every slot clashes it returns the
// per-slot reports keyed by the slot's position in the sorted order.
func (s *MakeupService) Schedule(ctx context.Context, replacesID string, slots []MakeupSlot, actor *models.Actor) (*models.Session, map[int]models.ConflictReport, error) {
	if len(slots) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "at least one candidate slot is required")
	}

	replaced, err := s.store.Get(ctx, replacesID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrSessionGone, fmt.Sprintf("session %s not found", replacesID))
		}
		return nil, nil, appErrors.ErrStoreFailure.WithCause(err)
	}
	if replaced.Status != models.StatusCancelled {
		return nil, nil, appErrors.Clone(appErrors.ErrIllegalState,
			fmt.Sprintf("makeup requires a cancelled session, %s is %s", replaced.ID, replaced.Status))
	}

	ordered := make([]MakeupSlot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Date != ordered[j].Date {
			return ordered[i].Date < ordered[j].Date
		}
		return ordered[i].StartTime < ordered[j].StartTime
	})

	reports := make(map[int]models.ConflictReport, len(ordered))
	for i, slot := range ordered {
		if err := s.slotInWindow(replaced.Date, slot.Date); err != nil {
			return nil, nil, err
		}

		probe := &models.Session{
			Date:      slot.Date,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			RoomID:    slot.RoomID,
			SubjectID: replaced.SubjectID,
			GroupID:   replaced.GroupID,
			TeacherID: replaced.TeacherID,
			Status:    models.StatusMakeup,
		}
		report, err := s.conflicts.Detect(ctx, probe)
		if err != nil {
			return nil, nil, err
		}
		if !report.Empty() {
			reports[i] = report
			continue
		}

		makeup, err := s.lifecycle.CreateMakeup(ctx, MakeupRequest{
			ReplacesID: replacesID,
			Date:       slot.Date,
			StartTime:  slot.StartTime,
			EndTime:    slot.EndTime,
			RoomID:     slot.RoomID,
		}, actor)
		if err != nil {
			// a racing mutation may have taken the slot between the probe
			// and the commit; record it and try the next candidate
			appErr := appErrors.FromError(err)
			if appErr.Code == appErrors.ErrConflict.Code {
				if lateReport, ok := appErr.Details.(models.ConflictReport); ok {
					reports[i] = lateReport
					continue
				}
			}
			return nil, nil, err
		}
		s.logger.Info("makeup scheduled",
			zap.String("replaces_id", replacesID),
			zap.String("session_id", makeup.ID),
			zap.String("date", makeup.Date),
			zap.Int("slot_rank", i))
		return makeup, nil, nil
	}

	return nil, reports, appErrors.Clone(appErrors.ErrConflict,
		fmt.Sprintf("no conflict-free slot among %d candidates", len(ordered)))
}

// slotInWindow enforces the inclusive makeup window starting at the
// cancelled session's date.
func (s *MakeupService) slotInWindow(originalDate, slotDate string) error {
	original, err := timeutil.ParseDate(originalDate, s.cfg.Location)
	if err != nil {
		return appErrors.ErrStoreFailure.WithCause(err)
	}
	slot, err := timeutil.ParseDate(slotDate, s.cfg.Location)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	days := timeutil.DaysBetween(original, slot)
	if days < 0 || days > s.cfg.MakeupWindowDays {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("candidate date %s outside the %d-day window after %s",
				slotDate, s.cfg.MakeupWindowDays, originalDate))
	}
	return nil
}
