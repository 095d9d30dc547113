// inspections.go implements handlers for inspection findings and their
// lifecycle status.
package portal

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/api/respond"
	"github.com/supervision-portal/supervision-portal/internal/apperr"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/db/repositories"
	"github.com/supervision-portal/supervision-portal/internal/middleware"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// InspectionHandlers handles inspection finding endpoints
type InspectionHandlers struct {
	store store.Store
}

// NewInspectionHandlers creates a new InspectionHandlers instance
func NewInspectionHandlers(st store.Store) *InspectionHandlers {
	return &InspectionHandlers{store: st}
}

func findingJSON(f *models.InspectionFinding) gin.H {
	return gin.H{
		"id":             f.ID,
		"institution_id": f.InstitutionID,
		"title":          f.Title,
		"detail":         f.Detail,
		"severity":       f.Severity,
		"status":         f.Status,
		"inspector_id":   f.InspectorID,
		"due_at":         f.DueAt,
		"closed_at":      f.ClosedAt,
		"created_at":     f.CreatedAt,
		"updated_at":     f.UpdatedAt,
	}
}

// ListHandler returns findings, newest first.
// GET /api/v1/inspections?institutionId=&status=&severity=&page=&limit=
func (h *InspectionHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := repositories.InspectionFilters{
			InstitutionID: strFilter(c, "institutionId"),
			Status:        strFilter(c, "status"),
			Severity:      strFilter(c, "severity"),
		}
		if filters.Status != nil && !models.ValidFindingStatus(*filters.Status) {
			respond.Fail(c, http.StatusBadRequest, "Unknown finding status "+*filters.Status)
			return
		}

		page, limit := pageParams(c, "limit", 20, 100)
		findings, total, err := h.store.ListFindings(c.Request.Context(), filters, limit, (page-1)*limit)
		if err != nil {
			respond.Err(c, apperr.Persistence("list findings", err))
			return
		}

		rows := make([]gin.H, 0, len(findings))
		for _, f := range findings {
			rows = append(rows, findingJSON(f))
		}
		respond.OK(c, gin.H{
			"findings": rows,
			"pagination": gin.H{
				"page":  page,
				"limit": limit,
				"total": total,
			},
		})
	}
}

type createFindingRequest struct {
	InstitutionID string     `json:"institution_id" binding:"required"`
	Title         string     `json:"title" binding:"required"`
	Detail        *string    `json:"detail"`
	Severity      string     `json:"severity" binding:"required"`
	DueAt         *time.Time `json:"due_at"`
}

// CreateHandler raises a new finding in Open status.
// POST /api/v1/inspections
func (h *InspectionHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createFindingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if !models.ValidSeverity(req.Severity) {
			respond.Fail(c, http.StatusBadRequest, "Unknown severity "+req.Severity)
			return
		}

		inst, err := h.store.GetInstitution(c.Request.Context(), req.InstitutionID)
		if err != nil {
			respond.Err(c, apperr.Persistence("load institution", err))
			return
		}
		if inst == nil {
			respond.Err(c, apperr.NotFound("institution", req.InstitutionID))
			return
		}

		finding := &models.InspectionFinding{
			InstitutionID: req.InstitutionID,
			Title:         req.Title,
			Detail:        req.Detail,
			Severity:      req.Severity,
			Status:        models.FindingOpen,
			DueAt:         req.DueAt,
		}
		if username := c.GetString(middleware.UsernameKey); username != "" {
			finding.InspectorID = &username
		}

		if err := h.store.CreateFinding(c.Request.Context(), finding); err != nil {
			respond.Err(c, apperr.Persistence("create finding", err))
			return
		}
		respond.Created(c, gin.H{"finding": findingJSON(finding)})
	}
}

type findingStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// StatusHandler moves a finding through its lifecycle. Entering Closed stamps
// the closure time; reopening clears it.
// PUT /api/v1/inspections/:id/status
func (h *InspectionHandlers) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req findingStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if !models.ValidFindingStatus(req.Status) {
			respond.Fail(c, http.StatusBadRequest, "Unknown finding status "+req.Status)
			return
		}

		var closedAt *time.Time
		if req.Status == models.FindingClosed {
			now := time.Now()
			closedAt = &now
		}

		id := c.Param("id")
		if err := h.store.UpdateFindingStatus(c.Request.Context(), id, req.Status, closedAt); err != nil {
			if err == store.ErrNotFound {
				respond.Err(c, apperr.NotFound("finding", id))
				return
			}
			respond.Err(c, apperr.Persistence("update finding status", err))
			return
		}
		respond.OK(c, gin.H{"status": req.Status})
	}
}
