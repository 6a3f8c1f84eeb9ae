package service

import (
	"context"
	"fmt"

	"github.com/univhub/timetable-engine/internal/models"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
)

// AuthzService decides whether an actor may perform a lifecycle operation on
// a session. Decisions are pure functions of the actor, the session image and
// the catalog scope resolution; denial messages name the missing scope.
type AuthzService struct {
	catalog catalogReader
}

func NewAuthzService(catalog catalogReader) *AuthzService {
	return &AuthzService{catalog: catalog}
}

// May returns nil when the operation is permitted, ErrUnauthorized for a
// missing actor, and ErrForbidden otherwise.
func (a *AuthzService) May(ctx context.Context, actor *models.Actor, session *models.Session, op models.Operation) error {
	if actor == nil || actor.ID == "" {
		return appErrors.ErrUnauthorized
	}

	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleDepartmentHead:
		return a.mayDepartmentHead(ctx, actor, session)
	case models.RoleTeacher:
		return a.mayTeacher(actor, session, op)
	case models.RoleStudent:
		return a.mayStudent(ctx, actor, session, op)
	default:
		return deny(fmt.Sprintf("unrecognized role %q", actor.Role))
	}
}

// MayQuery scopes the generic listing endpoint: students see their own group,
// teachers their own teaching record, department heads their department and
// its groups. Admins query any axis.
func (a *AuthzService) MayQuery(ctx context.Context, actor *models.Actor, q models.SessionQuery) error {
	if actor == nil || actor.ID == "" {
		return appErrors.ErrUnauthorized
	}

	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleDepartmentHead:
		if actor.DepartmentID == "" {
			return deny("department head token is missing a department scope")
		}
		switch q.Axis {
		case models.AxisDepartment:
			if q.AxisID == actor.DepartmentID {
				return nil
			}
			return deny(fmt.Sprintf("requires department head of department %s", q.AxisID))
		case models.AxisGroup:
			return a.requireGroupInDepartment(ctx, q.AxisID, actor.DepartmentID)
		default:
			return deny("department heads list their own department or one of its groups")
		}
	case models.RoleTeacher:
		if q.Axis == models.AxisTeacher && actor.TeacherID != "" && q.AxisID == actor.TeacherID {
			return nil
		}
		return deny("teachers list their own sessions only")
	case models.RoleStudent:
		groupID, err := a.studentGroup(ctx, actor)
		if err != nil {
			return err
		}
		if q.Axis == models.AxisGroup && q.AxisID == groupID {
			return nil
		}
		return deny("students list their own group only")
	default:
		return deny(fmt.Sprintf("unrecognized role %q", actor.Role))
	}
}

// MayView scopes the weekly projections the same way: students and teachers
// stay inside their own timetable, department heads inside their department.
func (a *AuthzService) MayView(ctx context.Context, actor *models.Actor, kind models.ActorKind, actorID string) error {
	if actor == nil || actor.ID == "" {
		return appErrors.ErrUnauthorized
	}

	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleDepartmentHead:
		if actor.DepartmentID == "" {
			return deny("department head token is missing a department scope")
		}
		switch kind {
		case models.ViewDepartment:
			if actorID == actor.DepartmentID {
				return nil
			}
			return deny(fmt.Sprintf("requires department head of department %s", actorID))
		case models.ViewGroup:
			return a.requireGroupInDepartment(ctx, actorID, actor.DepartmentID)
		case models.ViewTeacher:
			teacher, err := a.catalog.Teacher(ctx, actorID)
			if err != nil {
				return appErrors.Clone(appErrors.ErrCatalogGone, fmt.Sprintf("teacher %s not found", actorID)).WithCause(err)
			}
			if teacher.DepartmentID == actor.DepartmentID {
				return nil
			}
			return deny(fmt.Sprintf("teacher %s belongs to department %s", actorID, teacher.DepartmentID))
		default:
			// room views span every department
			return deny("department heads view their department, its groups and its teachers")
		}
	case models.RoleTeacher:
		if kind == models.ViewTeacher && actor.TeacherID != "" && actorID == actor.TeacherID {
			return nil
		}
		return deny("teachers may only view their own timetable")
	case models.RoleStudent:
		if kind == models.ViewStudent && actorID == actor.ID {
			return nil
		}
		if kind == models.ViewGroup {
			groupID, err := a.studentGroup(ctx, actor)
			if err != nil {
				return err
			}
			if actorID == groupID {
				return nil
			}
		}
		return deny("students may only view their own timetable")
	default:
		return deny(fmt.Sprintf("unrecognized role %q", actor.Role))
	}
}

// Department heads operate on sessions whose group belongs to their
// department, reads included.
func (a *AuthzService) mayDepartmentHead(ctx context.Context, actor *models.Actor, session *models.Session) error {
	if actor.DepartmentID == "" {
		return deny("department head token is missing a department scope")
	}
	return a.requireGroupInDepartment(ctx, session.GroupID, actor.DepartmentID)
}

func (a *AuthzService) requireGroupInDepartment(ctx context.Context, groupID, departmentID string) error {
	resolved, err := a.catalog.GroupDepartment(ctx, groupID)
	if err != nil {
		return appErrors.Clone(appErrors.ErrScopeMismatch, fmt.Sprintf("group %s resolves to no department", groupID)).WithCause(err)
	}
	if resolved != departmentID {
		return deny(fmt.Sprintf("requires department head of department %s", resolved))
	}
	return nil
}

// Teachers may read their own sessions, and cancel or complete sessions
// they teach.
func (a *AuthzService) mayTeacher(actor *models.Actor, session *models.Session, op models.Operation) error {
	if actor.TeacherID == "" || session.TeacherID != actor.TeacherID {
		return deny(fmt.Sprintf("requires the assigned teacher %s", session.TeacherID))
	}
	switch op {
	case models.OpRead, models.OpCancel, models.OpComplete:
		return nil
	default:
		return deny(fmt.Sprintf("teachers may not perform %s; requires admin or department head", op))
	}
}

// Students read sessions of their own group; everything else is denied.
func (a *AuthzService) mayStudent(ctx context.Context, actor *models.Actor, session *models.Session, op models.Operation) error {
	if op != models.OpRead {
		return deny(fmt.Sprintf("students may not perform %s", op))
	}
	groupID, err := a.studentGroup(ctx, actor)
	if err != nil {
		return err
	}
	if session.GroupID != groupID {
		return deny(fmt.Sprintf("requires membership of group %s", session.GroupID))
	}
	return nil
}

// studentGroup takes the group claim from the token when present and falls
// back to the enrollment record.
func (a *AuthzService) studentGroup(ctx context.Context, actor *models.Actor) (string, error) {
	if actor.GroupID != "" {
		return actor.GroupID, nil
	}
	student, err := a.catalog.Student(ctx, actor.ID)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrCatalogGone, fmt.Sprintf("student %s has no enrollment", actor.ID)).WithCause(err)
	}
	return student.GroupID, nil
}

func deny(message string) error {
	return appErrors.Clone(appErrors.ErrForbidden, message)
}
