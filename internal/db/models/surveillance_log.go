// Package models - surveillance_log.go defines the SurveillanceLog model for
// suspicious-activity observations recorded against an institution.
package models

import "time"

// Severities shared by surveillance logs and inspection findings
const (
	SeverityHigh   = "High"
	SeverityMedium = "Medium"
	SeverityLow    = "Low"
)

// Surveillance activity categories
const (
	ActivityCDD        = "CDD"
	ActivityMonitoring = "Monitoring"
	ActivitySanctions  = "Sanctions"
	ActivityReporting  = "Reporting"
	ActivityDeficiency = "Deficiency"
	ActivityOther      = "Other"
)

// SurveillanceLog represents a recorded suspicious-activity observation
type SurveillanceLog struct {
	ID            string
	InstitutionID string
	ActivityType  string // One of the Activity* categories
	Severity      string
	Description   string
	ReportedBy    *string // Nullable for automated feeds
	OccurredAt    time.Time
	CreatedAt     time.Time
}

// ValidActivityType reports whether s is one of the recognised activity categories.
func ValidActivityType(s string) bool {
	switch s {
	case ActivityCDD, ActivityMonitoring, ActivitySanctions,
		ActivityReporting, ActivityDeficiency, ActivityOther:
		return true
	}
	return false
}

// ValidSeverity reports whether s is one of the recognised severities.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// SeverityWeight returns the scoring weight of a severity. Unknown severities
// weigh zero so malformed rows cannot inflate a score.
func SeverityWeight(s string) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}
