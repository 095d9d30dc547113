// Package performance implements supervisor performance analytics: the
// composite quality score, peer-cohort anomaly detection, and the case-load
// distribution behind the supervision dashboard.
package performance

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/supervision-portal/supervision-portal/internal/apperr"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/db/repositories"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// Quality score weights. They must sum to 1 so a supervisor with perfect
// sub-metrics scores exactly 100.
const (
	WeightAccuracy      = 0.40
	WeightTimeliness    = 0.35
	WeightDocumentation = 0.25
)

// DefaultAnomalyThreshold is how many quality points below the peer mean a
// supervisor must fall before a deviation anomaly is raised.
const DefaultAnomalyThreshold = 15.0

// overloadCaseCount is the open case count above which a supervisor is flagged.
const overloadCaseCount = 20

// Anomaly types
const (
	AnomalyQualityDeviation = "quality_below_peers"
	AnomalyCaseOverload     = "case_overload"
)

// Anomaly flags a supervisor whose metrics deviate from their peer cohort.
type Anomaly struct {
	SupervisorID string
	Type         string
	Severity     string // High or Medium
	Evidence     string
	Delta        float64 // Quality points below peer mean, or cases above the limit
}

// CaseLoadBucket is one bar of the case-load histogram.
type CaseLoadBucket struct {
	Label string
	Count int
}

// QualityScore computes the composite quality score of a supervisor from the
// weighted sub-metrics, clamped to [0, 100]. Pure function of its input.
func QualityScore(sup *models.Supervisor) float64 {
	score := sup.AccuracyRate*WeightAccuracy +
		sup.TimelinessRate*WeightTimeliness +
		sup.DocumentationRate*WeightDocumentation
	return math.Min(100, math.Max(0, score))
}

// Analyzer runs performance analytics against the store
type Analyzer struct {
	store store.Store

	mu        sync.RWMutex
	threshold float64
	selected  string
}

// NewAnalyzer creates an analyzer with the default anomaly threshold
func NewAnalyzer(s store.Store) *Analyzer {
	return &Analyzer{store: s, threshold: DefaultAnomalyThreshold}
}

// SetThreshold overrides the quality deviation threshold
func (a *Analyzer) SetThreshold(points float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.threshold = points
}

// Threshold returns the active quality deviation threshold
func (a *Analyzer) Threshold() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.threshold
}

// Select marks a supervisor as the current selection, replacing any prior one.
// Only one supervisor is selected at a time.
func (a *Analyzer) Select(supervisorID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selected = supervisorID
}

// ClearSelection clears the current selection
func (a *Analyzer) ClearSelection() { a.Select("") }

// Selected returns the currently selected supervisor ID, "" when none
func (a *Analyzer) Selected() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selected
}

// DetectAnomalies evaluates one supervisor against the active peer cohort
func (a *Analyzer) DetectAnomalies(ctx context.Context, supervisorID string) ([]Anomaly, error) {
	cohort, err := a.activeCohort(ctx)
	if err != nil {
		return nil, err
	}

	var target *models.SupervisorWithCaseLoad
	for _, sup := range cohort {
		if sup.ID == supervisorID {
			target = sup
			break
		}
	}
	if target == nil {
		// Inactive supervisors are outside the cohort but still addressable.
		target, err = a.store.GetSupervisor(ctx, supervisorID)
		if err != nil {
			return nil, apperr.Persistence("load supervisor", err)
		}
		if target == nil {
			return nil, apperr.NotFound("supervisor", supervisorID)
		}
	}

	return a.evaluate(target, cohort), nil
}

// DetectAllAnomalies evaluates every active supervisor against the cohort
func (a *Analyzer) DetectAllAnomalies(ctx context.Context) ([]Anomaly, error) {
	cohort, err := a.activeCohort(ctx)
	if err != nil {
		return nil, err
	}

	anomalies := make([]Anomaly, 0)
	for _, sup := range cohort {
		anomalies = append(anomalies, a.evaluate(sup, cohort)...)
	}
	return anomalies, nil
}

// CaseLoadDistribution buckets active supervisors by open case count
func (a *Analyzer) CaseLoadDistribution(ctx context.Context) ([]CaseLoadBucket, error) {
	cohort, err := a.activeCohort(ctx)
	if err != nil {
		return nil, err
	}

	buckets := []CaseLoadBucket{
		{Label: "0"},
		{Label: "1-5"},
		{Label: "6-10"},
		{Label: "11-20"},
		{Label: "21+"},
	}
	for _, sup := range cohort {
		switch {
		case sup.OpenCases == 0:
			buckets[0].Count++
		case sup.OpenCases <= 5:
			buckets[1].Count++
		case sup.OpenCases <= 10:
			buckets[2].Count++
		case sup.OpenCases <= 20:
			buckets[3].Count++
		default:
			buckets[4].Count++
		}
	}
	return buckets, nil
}

func (a *Analyzer) activeCohort(ctx context.Context) ([]*models.SupervisorWithCaseLoad, error) {
	active := true
	cohort, _, err := a.store.ListSupervisors(ctx, repositories.SupervisorFilters{Active: &active}, 1000, 0)
	if err != nil {
		return nil, apperr.Persistence("load supervisors", err)
	}
	return cohort, nil
}

// evaluate compares one supervisor to the cohort. The cohort mean excludes the
// supervisor under evaluation so one outlier cannot hide itself.
func (a *Analyzer) evaluate(target *models.SupervisorWithCaseLoad, cohort []*models.SupervisorWithCaseLoad) []Anomaly {
	anomalies := make([]Anomaly, 0)

	peerSum, peers := 0.0, 0
	for _, sup := range cohort {
		if sup.ID == target.ID {
			continue
		}
		peerSum += QualityScore(&sup.Supervisor)
		peers++
	}

	if peers > 0 {
		peerMean := peerSum / float64(peers)
		score := QualityScore(&target.Supervisor)
		threshold := a.Threshold()
		if delta := peerMean - score; delta > threshold {
			severity := models.SeverityMedium
			if delta > 2*threshold {
				severity = models.SeverityHigh
			}
			anomalies = append(anomalies, Anomaly{
				SupervisorID: target.ID,
				Type:         AnomalyQualityDeviation,
				Severity:     severity,
				Delta:        delta,
				Evidence: fmt.Sprintf("quality score %.1f is %.1f points below the peer mean of %.1f",
					score, delta, peerMean),
			})
		}
	}

	if target.OpenCases > overloadCaseCount {
		anomalies = append(anomalies, Anomaly{
			SupervisorID: target.ID,
			Type:         AnomalyCaseOverload,
			Severity:     models.SeverityHigh,
			Delta:        float64(target.OpenCases - overloadCaseCount),
			Evidence: fmt.Sprintf("%d open cases exceeds the workload limit of %d",
				target.OpenCases, overloadCaseCount),
		})
	}

	return anomalies
}
