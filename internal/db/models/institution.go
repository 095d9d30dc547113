// Package models - institution.go defines the Institution model for regulated entities,
// carrying licensing state, category, and the most recently computed risk posture.
package models

import "time"

// Institution statuses
const (
	StatusActive             = "Active"
	StatusSuspended          = "Suspended"
	StatusRevoked            = "Revoked"
	StatusPendingApplication = "Pending Application"
)

// Risk levels
const (
	RiskLevelHigh   = "High"
	RiskLevelMedium = "Medium"
	RiskLevelLow    = "Low"
)

// Institution represents a regulated financial institution
type Institution struct {
	ID               string
	Name             string
	LicenseNumber    string
	Category         string // "Commercial Bank", "Microfinance", "Bureau de Change", ...
	Status           string
	RiskLevel        string
	RiskScore        int
	ComplianceScore  *int // Derived from compliance_status rows; nil until first assessment
	ContactEmail     *string
	ContactPhone     *string
	Address          *string
	RegisteredAt     time.Time
	LicenseExpiresAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// InstitutionPatch carries the mutable fields of an update request. Nil fields
// are left untouched by the repository (COALESCE semantics).
type InstitutionPatch struct {
	Name             *string
	Category         *string
	Status           *string
	RiskLevel        *string
	RiskScore        *int
	ContactEmail     *string
	ContactPhone     *string
	Address          *string
	LicenseExpiresAt *time.Time
}

// IsEmpty reports whether the patch would change nothing.
func (p InstitutionPatch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Status == nil &&
		p.RiskLevel == nil && p.RiskScore == nil && p.ContactEmail == nil &&
		p.ContactPhone == nil && p.Address == nil && p.LicenseExpiresAt == nil
}

// ValidStatus reports whether s is one of the recognised institution statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusSuspended, StatusRevoked, StatusPendingApplication:
		return true
	}
	return false
}

// ValidRiskLevel reports whether s is one of the recognised risk levels.
func ValidRiskLevel(s string) bool {
	switch s {
	case RiskLevelHigh, RiskLevelMedium, RiskLevelLow:
		return true
	}
	return false
}

// InstitutionStatistics summarises the registry for dashboard cards.
type InstitutionStatistics struct {
	Total     int
	Active    int
	Suspended int
	Revoked   int
	Pending   int
	HighRisk  int
}
