package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/univhub/timetable-engine/internal/models"
)

// CatalogRepository is the read-only view over academic reference data.
// The engine never mutates these tables.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a catalog repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Group resolves a group by id. Returns sql.ErrNoRows when absent.
func (r *CatalogRepository) Group(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	if err := r.db.GetContext(ctx, &group, `SELECT id, name, level_id FROM groups WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// Teacher resolves a teacher by id.
func (r *CatalogRepository) Teacher(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, `SELECT id, full_name, department_id FROM teachers WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Room resolves a room by id.
func (r *CatalogRepository) Room(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := r.db.GetContext(ctx, &room, `SELECT id, code, capacity FROM rooms WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// Subject resolves a subject by id.
func (r *CatalogRepository) Subject(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, `SELECT id, code, name FROM subjects WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Student resolves a student by id.
func (r *CatalogRepository) Student(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, `SELECT id, full_name, group_id FROM students WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// GroupDepartment walks group -> level -> specialty -> department and
// returns the owning department id.
func (r *CatalogRepository) GroupDepartment(ctx context.Context, groupID string) (string, error) {
	const query = `SELECT s.department_id
FROM groups g
JOIN levels l ON l.id = g.level_id
JOIN specialties s ON s.id = l.specialty_id
WHERE g.id = $1`
	var departmentID string
	if err := r.db.GetContext(ctx, &departmentID, query, groupID); err != nil {
		return "", err
	}
	return departmentID, nil
}

// GroupIDsByDepartment enumerates every group under a department.
func (r *CatalogRepository) GroupIDsByDepartment(ctx context.Context, departmentID string) ([]string, error) {
	const query = `SELECT g.id
FROM groups g
JOIN levels l ON l.id = g.level_id
JOIN specialties s ON s.id = l.specialty_id
WHERE s.department_id = $1
ORDER BY g.id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, departmentID); err != nil {
		return nil, fmt.Errorf("groups by department: %w", err)
	}
	return ids, nil
}

// GroupIDsBySpecialty enumerates every group under a specialty.
func (r *CatalogRepository) GroupIDsBySpecialty(ctx context.Context, specialtyID string) ([]string, error) {
	const query = `SELECT g.id
FROM groups g
JOIN levels l ON l.id = g.level_id
WHERE l.specialty_id = $1
ORDER BY g.id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, specialtyID); err != nil {
		return nil, fmt.Errorf("groups by specialty: %w", err)
	}
	return ids, nil
}

// GroupIDsByLevel enumerates every group under a level.
func (r *CatalogRepository) GroupIDsByLevel(ctx context.Context, levelID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM groups WHERE level_id = $1 ORDER BY id ASC`, levelID); err != nil {
		return nil, fmt.Errorf("groups by level: %w", err)
	}
	return ids, nil
}
