// Package risk implements the on-demand risk scoring engine. A score combines
// the institution's recent assessment history, severity-weighted surveillance
// activity over the last six months, and its open inspection findings into a
// bounded 0-100 value with a three-tier level.
package risk

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/supervision-portal/supervision-portal/internal/apperr"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/store"
	"github.com/supervision-portal/supervision-portal/internal/telemetry"
)

const (
	// DefaultBaseline is used when an institution has no assessment history yet.
	DefaultBaseline = 50

	recentProfileCount = 3
	surveillanceMonths = 6
	severityMultiplier = 2
	openFindingWeight  = 3
)

// Assessment is the result of one score computation. Factors carries the
// component breakdown so supervisors can see what drove the score.
type Assessment struct {
	InstitutionID string
	Score         int
	Level         string
	Factors       map[string]interface{}
	ComputedAt    time.Time
}

// Engine computes risk scores against a Store
type Engine struct {
	store store.Store
}

// NewEngine creates a scoring engine over the given store
func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

// ComputeRiskScore computes the current risk score of an institution. The
// computation is read-only and deterministic for unchanged data; persisting the
// result as a new profile is the caller's choice.
func (e *Engine) ComputeRiskScore(ctx context.Context, institutionID string) (*Assessment, error) {
	institutionID = strings.TrimSpace(institutionID)
	if institutionID == "" {
		return nil, apperr.Validation("institutionId is required")
	}

	inst, err := e.store.GetInstitution(ctx, institutionID)
	if err != nil {
		return nil, apperr.Persistence("load institution", err)
	}
	if inst == nil {
		return nil, apperr.NotFound("institution", institutionID)
	}

	start := time.Now()

	// The three inputs are independent reads; fetch them concurrently.
	var (
		wg           sync.WaitGroup
		scores       []int
		severities   []string
		openFindings int
		scoresErr    error
		sevErr       error
		findingsErr  error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		scores, scoresErr = e.store.RecentProfileScores(ctx, institutionID, recentProfileCount)
	}()
	go func() {
		defer wg.Done()
		since := time.Now().AddDate(0, -surveillanceMonths, 0)
		severities, sevErr = e.store.SeveritiesSince(ctx, institutionID, since)
	}()
	go func() {
		defer wg.Done()
		openFindings, findingsErr = e.store.CountOpenFindings(ctx, institutionID)
	}()
	wg.Wait()

	for _, err := range []error{scoresErr, sevErr, findingsErr} {
		if err != nil {
			return nil, apperr.Persistence("load scoring inputs", err)
		}
	}

	baseline := float64(DefaultBaseline)
	if len(scores) > 0 {
		sum := 0
		for _, s := range scores {
			sum += s
		}
		baseline = float64(sum) / float64(len(scores))
	}

	weighted := 0
	for _, sev := range severities {
		weighted += models.SeverityWeight(sev)
	}

	raw := baseline + float64(weighted*severityMultiplier) + float64(openFindings*openFindingWeight)
	score := int(math.Round(math.Min(100, raw)))
	level := models.LevelForScore(score)

	telemetry.RiskAssessmentsTotal.WithLabelValues(level).Inc()
	telemetry.RiskAssessmentDuration.Observe(time.Since(start).Seconds())

	slog.Debug("risk score computed",
		"institutionId", institutionID,
		"score", score,
		"level", level,
		"profilesUsed", len(scores),
		"surveillanceWeighted", weighted,
		"openFindings", openFindings)

	return &Assessment{
		InstitutionID: institutionID,
		Score:         score,
		Level:         level,
		Factors: map[string]interface{}{
			"baseScore":            baseline,
			"profilesUsed":         len(scores),
			"surveillanceWeighted": weighted,
			"openFindings":         openFindings,
		},
		ComputedAt: time.Now(),
	}, nil
}

// AssessAndRecord computes the score, persists it as a new risk profile, and
// updates the institution's stored risk posture. assessedBy is the acting
// user ID, empty for system-triggered assessments.
func (e *Engine) AssessAndRecord(ctx context.Context, institutionID, assessedBy string) (*Assessment, error) {
	assessment, err := e.ComputeRiskScore(ctx, institutionID)
	if err != nil {
		return nil, err
	}

	profile := &models.RiskProfile{
		InstitutionID: institutionID,
		Score:         assessment.Score,
		Level:         assessment.Level,
		Factors:       assessment.Factors,
	}
	if assessedBy != "" {
		profile.AssessedBy = &assessedBy
	}
	if err := e.store.CreateRiskProfile(ctx, profile); err != nil {
		return nil, apperr.Persistence("record assessment", err)
	}

	if err := e.store.UpdateInstitutionRisk(ctx, institutionID, assessment.Score, assessment.Level); err != nil {
		return nil, apperr.Persistence("update institution risk", err)
	}

	return assessment, nil
}
