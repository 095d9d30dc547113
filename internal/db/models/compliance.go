// Package models - compliance.go defines the per-requirement compliance ledger
// of an institution and the supervisory interventions issued against it.
package models

import "time"

// Compliance states of a single requirement. The institution's compliance
// score is the average of its requirements weighted Met=100, Partial=50,
// Unmet=0.
const (
	ComplianceMet     = "Met"
	CompliancePartial = "Partial"
	ComplianceUnmet   = "Unmet"
)

// ComplianceStatus records how an institution stands against one regulatory
// requirement. One row per (institution, requirement); updates replace the
// prior state.
type ComplianceStatus struct {
	ID            string
	InstitutionID string
	Requirement   string
	State         string
	Notes         *string
	UpdatedAt     time.Time
}

// Intervention is a supervisory action issued against an institution, such as
// a directive, warning letter, or monetary penalty. Append-only.
type Intervention struct {
	ID            string
	InstitutionID string
	Action        string
	Notes         *string
	IssuedBy      *string
	IssuedAt      time.Time
}

// ValidComplianceState reports whether s is one of the recognised states.
func ValidComplianceState(s string) bool {
	switch s {
	case ComplianceMet, CompliancePartial, ComplianceUnmet:
		return true
	}
	return false
}

// ComplianceStateScore returns the score contribution of a state. Unknown
// states score zero.
func ComplianceStateScore(s string) int {
	switch s {
	case ComplianceMet:
		return 100
	case CompliancePartial:
		return 50
	}
	return 0
}
