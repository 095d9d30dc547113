// Package models - inspection_finding.go defines the InspectionFinding model for
// deficiencies raised during on-site or desk-based inspections.
package models

import "time"

// Finding lifecycle: Open -> InProgress -> Closed. Closed is terminal for
// scoring; reopening a closed finding is allowed and clears the closure time.
const (
	FindingOpen       = "Open"
	FindingInProgress = "InProgress"
	FindingClosed     = "Closed"
)

// InspectionFinding represents a deficiency raised during an inspection
type InspectionFinding struct {
	ID            string
	InstitutionID string
	Title         string
	Detail        *string
	Severity      string
	Status        string
	InspectorID   *string
	DueAt         *time.Time
	ClosedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ValidFindingStatus reports whether s is one of the recognised finding statuses.
func ValidFindingStatus(s string) bool {
	switch s {
	case FindingOpen, FindingInProgress, FindingClosed:
		return true
	}
	return false
}

// IsOpen reports whether the finding still counts against the institution's
// risk score. InProgress findings remain open for scoring purposes.
func (f *InspectionFinding) IsOpen() bool {
	return f.Status != FindingClosed
}
