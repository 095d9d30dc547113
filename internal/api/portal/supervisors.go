// supervisors.go implements the supervisor performance endpoints: listing,
// quality scores, peer anomaly detection, and the case-load histogram.
package portal

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/api/respond"
	"github.com/supervision-portal/supervision-portal/internal/apperr"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/db/repositories"
	"github.com/supervision-portal/supervision-portal/internal/performance"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// SupervisorHandlers handles supervisor performance endpoints
type SupervisorHandlers struct {
	store    store.Store
	analyzer *performance.Analyzer
}

// NewSupervisorHandlers creates a new SupervisorHandlers instance
func NewSupervisorHandlers(st store.Store, analyzer *performance.Analyzer) *SupervisorHandlers {
	return &SupervisorHandlers{store: st, analyzer: analyzer}
}

func supervisorJSON(sup *models.SupervisorWithCaseLoad) gin.H {
	return gin.H{
		"id":                 sup.ID,
		"user_id":            sup.UserID,
		"full_name":          sup.FullName,
		"department":         sup.Department,
		"region":             sup.Region,
		"active":             sup.Active,
		"accuracy_rate":      sup.AccuracyRate,
		"timeliness_rate":    sup.TimelinessRate,
		"documentation_rate": sup.DocumentationRate,
		"quality_score":      performance.QualityScore(&sup.Supervisor),
		"open_cases":         sup.OpenCases,
		"created_at":         sup.CreatedAt,
		"updated_at":         sup.UpdatedAt,
	}
}

func anomalyJSON(a performance.Anomaly) gin.H {
	return gin.H{
		"supervisor_id": a.SupervisorID,
		"type":          a.Type,
		"severity":      a.Severity,
		"evidence":      a.Evidence,
		"delta":         a.Delta,
	}
}

// ListHandler returns supervisors with their current case load and computed
// quality score.
// GET /api/v1/supervisors?department=&region=&active=&page=&limit=
// @Summary List supervisors
// @Description Returns supervisors with case loads and composite quality scores
// @Tags supervisors
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/supervisors [get]
func (h *SupervisorHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize := pageParams(c, "limit", 20, 100)

		filters := repositories.SupervisorFilters{
			Department: strFilter(c, "department"),
			Region:     strFilter(c, "region"),
		}
		if raw := c.Query("active"); raw != "" {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				respond.Err(c, apperr.Validation("active must be true or false"))
				return
			}
			filters.Active = &active
		}

		sups, total, err := h.store.ListSupervisors(c.Request.Context(), filters, pageSize, (page-1)*pageSize)
		if err != nil {
			respond.Err(c, apperr.Persistence("failed to list supervisors", err))
			return
		}

		rows := make([]gin.H, 0, len(sups))
		for _, sup := range sups {
			rows = append(rows, supervisorJSON(sup))
		}
		respond.OK(c, gin.H{
			"supervisors": rows,
			"total":       total,
			"page":        page,
			"page_size":   pageSize,
		})
	}
}

// GetHandler returns a single supervisor.
// GET /api/v1/supervisors/:id
func (h *SupervisorHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		sup, err := h.store.GetSupervisor(c.Request.Context(), id)
		if err != nil {
			respond.Err(c, apperr.Persistence("failed to load supervisor", err))
			return
		}
		if sup == nil {
			respond.Err(c, apperr.NotFound("supervisor", id))
			return
		}
		respond.OK(c, supervisorJSON(sup))
	}
}

// PerformanceHandler returns a supervisor's quality breakdown and any
// anomalies detected against their active peers.
// GET /api/v1/supervisors/:id/performance
func (h *SupervisorHandlers) PerformanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		sup, err := h.store.GetSupervisor(c.Request.Context(), id)
		if err != nil {
			respond.Err(c, apperr.Persistence("failed to load supervisor", err))
			return
		}
		if sup == nil {
			respond.Err(c, apperr.NotFound("supervisor", id))
			return
		}

		anomalies, err := h.analyzer.DetectAnomalies(c.Request.Context(), id)
		if err != nil {
			respond.Err(c, apperr.Persistence("anomaly detection failed", err))
			return
		}
		anomalyRows := make([]gin.H, 0, len(anomalies))
		for _, a := range anomalies {
			anomalyRows = append(anomalyRows, anomalyJSON(a))
		}

		cases, err := h.store.ListSupervisorCases(c.Request.Context(), id)
		if err != nil {
			respond.Err(c, apperr.Persistence("failed to load cases", err))
			return
		}
		openCases := make([]gin.H, 0, len(cases))
		for _, sc := range cases {
			if sc.ClosedAt != nil {
				continue
			}
			openCases = append(openCases, gin.H{
				"id":             sc.ID,
				"institution_id": sc.InstitutionID,
				"opened_at":      sc.OpenedAt,
			})
		}

		respond.OK(c, gin.H{
			"supervisor": supervisorJSON(sup),
			"metrics": gin.H{
				"accuracy_rate":      sup.AccuracyRate,
				"timeliness_rate":    sup.TimelinessRate,
				"documentation_rate": sup.DocumentationRate,
				"quality_score":      performance.QualityScore(&sup.Supervisor),
			},
			"anomalies":  anomalyRows,
			"open_cases": openCases,
		})
	}
}

// AnomaliesHandler runs anomaly detection across the whole active cohort.
// GET /api/v1/supervisors/anomalies
// @Summary Detect supervisor anomalies
// @Description Flags supervisors whose quality or case load deviates from peers
// @Tags supervisors
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/supervisors/anomalies [get]
func (h *SupervisorHandlers) AnomaliesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		anomalies, err := h.analyzer.DetectAllAnomalies(c.Request.Context())
		if err != nil {
			respond.Err(c, apperr.Persistence("anomaly detection failed", err))
			return
		}
		rows := make([]gin.H, 0, len(anomalies))
		for _, a := range anomalies {
			rows = append(rows, anomalyJSON(a))
		}
		respond.OK(c, gin.H{"anomalies": rows, "count": len(rows)})
	}
}

// CaseLoadHandler returns the case-load histogram across active supervisors.
// GET /api/v1/supervisors/caseload
func (h *SupervisorHandlers) CaseLoadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		buckets, err := h.analyzer.CaseLoadDistribution(c.Request.Context())
		if err != nil {
			respond.Err(c, apperr.Persistence("failed to compute case load distribution", err))
			return
		}
		rows := make([]gin.H, 0, len(buckets))
		for _, b := range buckets {
			rows = append(rows, gin.H{"label": b.Label, "count": b.Count})
		}
		respond.OK(c, gin.H{"distribution": rows})
	}
}
