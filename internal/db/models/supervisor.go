// Package models - supervisor.go defines the Supervisor model and its performance
// inputs: accuracy, timeliness, and documentation rates plus the open case load.
package models

import "time"

// Supervisor represents a supervision officer whose performance is tracked.
// Tagged for sqlx struct scanning in the supervisor repository.
type Supervisor struct {
	ID                string    `db:"id"`
	UserID            *string   `db:"user_id"`
	FullName          string    `db:"full_name"`
	Department        string    `db:"department"`
	Region            *string   `db:"region"`
	Active            bool      `db:"active"`
	AccuracyRate      float64   `db:"accuracy_rate"`      // 0-100
	TimelinessRate    float64   `db:"timeliness_rate"`    // 0-100
	DocumentationRate float64   `db:"documentation_rate"` // 0-100
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// SupervisorCase links a supervisor to an institution they are actively supervising
type SupervisorCase struct {
	ID            string     `db:"id"`
	SupervisorID  string     `db:"supervisor_id"`
	InstitutionID string     `db:"institution_id"`
	OpenedAt      time.Time  `db:"opened_at"`
	ClosedAt      *time.Time `db:"closed_at"`
}

// SupervisorWithCaseLoad pairs a supervisor with their current open case count
type SupervisorWithCaseLoad struct {
	Supervisor
	OpenCases int `db:"open_cases"`
}
