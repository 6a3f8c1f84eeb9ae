package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univhub/timetable-engine/internal/models"
	"github.com/univhub/timetable-engine/pkg/config"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
	"github.com/univhub/timetable-engine/pkg/jobs"
	"github.com/univhub/timetable-engine/pkg/timeutil"
)

// completableFinder lists PLANNED and MAKEUP sessions whose end has passed.
type completableFinder interface {
	FindCompletable(ctx context.Context, today, timeOfDay string) ([]models.Session, error)
}

// completer promotes a single session to COMPLETED.
type completer interface {
	MarkCompleted(ctx context.Context, id string, actor *models.Actor) (*models.Session, error)
}

// SweepService periodically promotes past sessions to COMPLETED. Runs are
// dispatched onto the background job queue so a slow sweep never blocks the
// ticker, and each session still goes through the lifecycle manager.
type SweepService struct {
	finder    completableFinder
	lifecycle completer
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
	interval  time.Duration
	loc       *time.Location
	now       func() time.Time
	stop      chan struct{}
}

func NewSweepService(finder completableFinder, lifecycle completer, metrics *MetricsService, logger *zap.Logger, cfg config.SweepConfig, engine config.EngineConfig) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s := &SweepService{
		finder:    finder,
		lifecycle: lifecycle,
		metrics:   metrics,
		logger:    logger,
		interval:  interval,
		loc:       engine.Location,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	s.queue = jobs.NewQueue("completion-sweep", s.handle, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return s
}

// Start launches the queue workers and the sweep ticker.
func (s *SweepService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.tick(ctx)
}

// Stop halts the ticker and drains the workers.
func (s *SweepService) Stop() {
	close(s.stop)
	s.queue.Stop()
}

func (s *SweepService) tick(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "sweep"}); err != nil {
				s.logger.Warn("failed to enqueue sweep", zap.Error(err))
			}
		}
	}
}

func (s *SweepService) handle(ctx context.Context, _ jobs.Job) error {
	_, err := s.RunOnce(ctx)
	return err
}

// RunOnce performs a single sweep pass and returns how many sessions were
// promoted. Sessions that fail to transition are logged and left for the
// next pass.
func (s *SweepService) RunOnce(ctx context.Context) (int, error) {
	started := s.now()
	local := started.In(s.loc)
	today := timeutil.FormatDate(local)
	timeOfDay := timeutil.FormatMinutes(local.Hour()*60 + local.Minute())

	due, err := s.finder.FindCompletable(ctx, today, timeOfDay)
	if err != nil {
		return 0, appErrors.ErrStoreFailure.WithCause(err)
	}

	completed := 0
	for i := range due {
		if _, err := s.lifecycle.MarkCompleted(ctx, due[i].ID, nil); err != nil {
			s.logger.Warn("sweep could not complete session",
				zap.String("session_id", due[i].ID),
				zap.Error(err))
			continue
		}
		completed++
	}

	s.metrics.ObserveSweep(completed, time.Since(started))
	if completed > 0 {
		s.logger.Info("completion sweep finished",
			zap.Int("due", len(due)),
			zap.Int("completed", completed))
	}
	return completed, nil
}
