package models

// Catalog entities are read-only reference data. The engine never writes
// them; relational integrity belongs to the catalog's owner.

type Department struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type Specialty struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	DepartmentID string `db:"department_id" json:"department_id"`
}

type Level struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	SpecialtyID string `db:"specialty_id" json:"specialty_id"`
}

type Group struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	LevelID string `db:"level_id" json:"level_id"`
}

type Subject struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

type Room struct {
	ID       string `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Capacity int    `db:"capacity" json:"capacity"`
}

type Teacher struct {
	ID           string `db:"id" json:"id"`
	FullName     string `db:"full_name" json:"full_name"`
	DepartmentID string `db:"department_id" json:"department_id"`
}

type Student struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	GroupID  string `db:"group_id" json:"group_id"`
}
