package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the closed role set recognised by the authorization gate.
type UserRole string

const (
	RoleAdmin          UserRole = "ADMIN"
	RoleDepartmentHead UserRole = "DEPARTMENT_HEAD"
	RoleTeacher        UserRole = "TEACHER"
	RoleStudent        UserRole = "STUDENT"
)

// Operation names a lifecycle action subject to authorization.
type Operation string

const (
	OpCreate     Operation = "CREATE"
	OpReschedule Operation = "RESCHEDULE"
	OpCancel     Operation = "CANCEL"
	OpMakeup     Operation = "MAKEUP"
	OpComplete   Operation = "COMPLETE"
	OpRead       Operation = "READ"
)

// Actor is the authenticated principal issuing a request. Scope fields are
// populated from claims depending on role: department heads carry their
// department, teachers their teacher record, students their group.
type Actor struct {
	ID           string   `json:"id"`
	Role         UserRole `json:"role"`
	FullName     string   `json:"full_name"`
	DepartmentID string   `json:"department_id,omitempty"`
	TeacherID    string   `json:"teacher_id,omitempty"`
	GroupID      string   `json:"group_id,omitempty"`
}

// JWTClaims is the access-token payload the engine trusts. Token issuance
// lives outside the engine.
type JWTClaims struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	FullName     string   `json:"full_name"`
	DepartmentID string   `json:"department_id,omitempty"`
	TeacherID    string   `json:"teacher_id,omitempty"`
	GroupID      string   `json:"group_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts claims into the engine's principal record.
func (c *JWTClaims) Actor() *Actor {
	if c == nil {
		return nil
	}
	return &Actor{
		ID:           c.UserID,
		Role:         c.Role,
		FullName:     c.FullName,
		DepartmentID: c.DepartmentID,
		TeacherID:    c.TeacherID,
		GroupID:      c.GroupID,
	}
}
