package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/univhub/timetable-engine/internal/models"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
	"github.com/univhub/timetable-engine/pkg/timeutil"
)

// ConflictService detects room, teacher and group overlaps for a candidate
// session image against committed sessions. Intervals are half-open: a
// session ending 10:00 does not clash with one starting 10:00.
type ConflictService struct {
	store  sessionStore
	logger *zap.Logger
}

func NewConflictService(store sessionStore, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{store: store, logger: logger}
}

// Detect returns every overlap for the candidate, grouped room first, then
// teacher, then group, each axis ordered by start time and session id.
// Cancelled candidates and makeup drafts without a committed date never
// conflict.
func (s *ConflictService) Detect(ctx context.Context, candidate *models.Session) (models.ConflictReport, error) {
	return s.DetectWith(ctx, candidate, nil)
}

// DetectWith behaves like Detect but skips committed sessions the ignore
// predicate selects, such as a replace-mode expansion's own prior output.
func (s *ConflictService) DetectWith(ctx context.Context, candidate *models.Session, ignore func(*models.Session) bool) (models.ConflictReport, error) {
	if candidate.Status == models.StatusCancelled {
		return nil, nil
	}
	if candidate.Status == models.StatusMakeup && candidate.Date == "" {
		return nil, nil
	}

	candStart, err := timeutil.ParseTimeOfDay(candidate.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "candidate start time is invalid").WithCause(err)
	}
	candEnd, err := timeutil.ParseTimeOfDay(candidate.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "candidate end time is invalid").WithCause(err)
	}

	axes := []struct {
		kind   models.ConflictKind
		axis   models.QueryAxis
		axisID string
	}{
		{models.ConflictRoom, models.AxisRoom, candidate.RoomID},
		{models.ConflictTeacher, models.AxisTeacher, candidate.TeacherID},
		{models.ConflictGroup, models.AxisGroup, candidate.GroupID},
	}

	report := models.ConflictReport{}
	for _, axis := range axes {
		records, err := s.detectAxis(ctx, candidate, axis.kind, axis.axis, axis.axisID, candStart, candEnd, ignore)
		if err != nil {
			return nil, err
		}
		report = append(report, records...)
	}

	if !report.Empty() {
		s.logger.Debug("conflicts detected",
			zap.String("candidate_id", candidate.ID),
			zap.String("date", candidate.Date),
			zap.Int("count", len(report)))
	}
	return report, nil
}

func (s *ConflictService) detectAxis(ctx context.Context, candidate *models.Session, kind models.ConflictKind, axis models.QueryAxis, axisID string, candStart, candEnd int, ignore func(*models.Session) bool) ([]models.ConflictRecord, error) {
	existing, err := s.store.Query(ctx, models.SessionQuery{
		Axis:   axis,
		AxisID: axisID,
		From:   candidate.Date,
		To:     candidate.Date,
	})
	if err != nil {
		return nil, appErrors.ErrStoreFailure.WithCause(err)
	}

	var records []models.ConflictRecord
	for i := range existing {
		other := &existing[i]
		if other.ID == candidate.ID || other.Status == models.StatusCancelled {
			continue
		}
		if ignore != nil && ignore(other) {
			continue
		}
		otherStart, err := timeutil.ParseTimeOfDay(other.StartTime)
		if err != nil {
			return nil, appErrors.ErrStoreFailure.WithCause(fmt.Errorf("stored session %s start time: %w", other.ID, err))
		}
		otherEnd, err := timeutil.ParseTimeOfDay(other.EndTime)
		if err != nil {
			return nil, appErrors.ErrStoreFailure.WithCause(fmt.Errorf("stored session %s end time: %w", other.ID, err))
		}
		if !timeutil.Overlaps(candStart, candEnd, otherStart, otherEnd) {
			continue
		}
		records = append(records, models.ConflictRecord{
			Kind:        kind,
			ExistingID:  other.ID,
			Date:        other.Date,
			StartTime:   other.StartTime,
			EndTime:     other.EndTime,
			RoomID:      other.RoomID,
			TeacherID:   other.TeacherID,
			GroupID:     other.GroupID,
			Explanation: explain(kind, axisID, other),
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StartTime != records[j].StartTime {
			return records[i].StartTime < records[j].StartTime
		}
		return records[i].ExistingID < records[j].ExistingID
	})
	return records, nil
}

func explain(kind models.ConflictKind, axisID string, other *models.Session) string {
	switch kind {
	case models.ConflictRoom:
		return fmt.Sprintf("room %s is occupied %s-%s by session %s", axisID, other.StartTime, other.EndTime, other.ID)
	case models.ConflictTeacher:
		return fmt.Sprintf("teacher %s is teaching %s-%s in session %s", axisID, other.StartTime, other.EndTime, other.ID)
	default:
		return fmt.Sprintf("group %s is scheduled %s-%s in session %s", axisID, other.StartTime, other.EndTime, other.ID)
	}
}
