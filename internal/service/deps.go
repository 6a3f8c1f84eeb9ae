package service

import (
	"context"

	"github.com/univhub/timetable-engine/internal/models"
)

// sessionStore is the narrow session persistence surface consumed by the
// engine services. Implemented by repository.SessionRepository.
type sessionStore interface {
	Put(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Query(ctx context.Context, q models.SessionQuery) ([]models.Session, error)
	BulkPut(ctx context.Context, sessions []models.Session) error
	ReplaceTemplateRange(ctx context.Context, from, to string, groupIDs []string, expander string, sessions []models.Session) (int64, error)
}

// catalogReader is the read-only academic reference surface. Implemented by
// repository.CatalogRepository and its cached decorator.
type catalogReader interface {
	Group(ctx context.Context, id string) (*models.Group, error)
	Teacher(ctx context.Context, id string) (*models.Teacher, error)
	Room(ctx context.Context, id string) (*models.Room, error)
	Subject(ctx context.Context, id string) (*models.Subject, error)
	Student(ctx context.Context, id string) (*models.Student, error)
	GroupDepartment(ctx context.Context, groupID string) (string, error)
	GroupIDsByDepartment(ctx context.Context, departmentID string) ([]string, error)
}

// conflictDetector reports overlaps for a candidate session image. The
// predicate variant lets callers exclude sessions a pending batch is about
// to replace.
type conflictDetector interface {
	Detect(ctx context.Context, candidate *models.Session) (models.ConflictReport, error)
	DetectWith(ctx context.Context, candidate *models.Session, ignore func(*models.Session) bool) (models.ConflictReport, error)
}

// authorizer decides whether an actor may perform an operation on a session.
type authorizer interface {
	May(ctx context.Context, actor *models.Actor, session *models.Session, op models.Operation) error
}

// eventEmitter publishes lifecycle events. Emission is fire-and-forget;
// failures never reach the caller path.
type eventEmitter interface {
	Emit(ctx context.Context, event models.Event) models.Event
}
