// Package models - risk_profile.go defines the RiskProfile model, a point-in-time
// risk assessment of an institution produced by the scoring engine or a supervisor.
package models

import "time"

// RiskProfile represents one historical risk assessment of an institution
type RiskProfile struct {
	ID            string
	InstitutionID string
	Score         int
	Level         string
	Factors       map[string]interface{} // JSONB: score component breakdown
	AssessedBy    *string                // Nullable for engine-generated profiles
	Notes         *string
	CreatedAt     time.Time
}

// RiskProfilePatch carries the mutable fields of a profile amendment. Nil
// fields are left untouched by the repository (COALESCE semantics).
type RiskProfilePatch struct {
	Score *int
	Notes *string
}

// IsEmpty reports whether the patch would change nothing.
func (p RiskProfilePatch) IsEmpty() bool {
	return p.Score == nil && p.Notes == nil
}

// LevelForScore maps a 0-100 risk score to its level band.
func LevelForScore(score int) string {
	switch {
	case score >= 70:
		return RiskLevelHigh
	case score >= 40:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}
