// surveillance.go implements handlers for the append-only surveillance log.
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

// SurveillanceHandlers handles surveillance log endpoints
type SurveillanceHandlers struct {
	store store.Store
}

// NewSurveillanceHandlers creates a new SurveillanceHandlers instance
func NewSurveillanceHandlers(st store.Store) *SurveillanceHandlers {
	return &SurveillanceHandlers{store: st}
}

func surveillanceJSON(log *models.SurveillanceLog) gin.H {
	return gin.H{
		"id":             log.ID,
		"institution_id": log.InstitutionID,
		"activity_type":  log.ActivityType,
		"severity":       log.Severity,
		"description":    log.Description,
		"reported_by":    log.ReportedBy,
		"occurred_at":    log.OccurredAt,
		"created_at":     log.CreatedAt,
	}
}

// strFilter returns a pointer to the query value, nil when absent.
func strFilter(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}

// ListHandler returns surveillance observations, newest first.
// GET /api/v1/surveillance?institutionId=&severity=&activityType=&page=&limit=
func (h *SurveillanceHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := repositories.SurveillanceFilters{
			InstitutionID: strFilter(c, "institutionId"),
			Severity:      strFilter(c, "severity"),
			ActivityType:  strFilter(c, "activityType"),
		}
		if filters.ActivityType != nil && !models.ValidActivityType(*filters.ActivityType) {
			respond.Fail(c, http.StatusBadRequest, "Unknown activity type "+*filters.ActivityType)
			return
		}

		page, limit := pageParams(c, "limit", 20, 100)
		logs, total, err := h.store.ListSurveillanceLogs(c.Request.Context(), filters, limit, (page-1)*limit)
		if err != nil {
			respond.Err(c, apperr.Persistence("list surveillance logs", err))
			return
		}

		rows := make([]gin.H, 0, len(logs))
		for _, log := range logs {
			rows = append(rows, surveillanceJSON(log))
		}
		respond.OK(c, gin.H{
			"logs": rows,
			"pagination": gin.H{
				"page":  page,
				"limit": limit,
				"total": total,
			},
		})
	}
}

type createSurveillanceRequest struct {
	InstitutionID string     `json:"institution_id" binding:"required"`
	ActivityType  string     `json:"activity_type" binding:"required"`
	Severity      string     `json:"severity" binding:"required"`
	Description   string     `json:"description" binding:"required"`
	OccurredAt    *time.Time `json:"occurred_at"`
}

// CreateHandler records a new observation. The log is append-only; there is
// deliberately no update or delete surface.
// POST /api/v1/surveillance
func (h *SurveillanceHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSurveillanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if !models.ValidSeverity(req.Severity) {
			respond.Fail(c, http.StatusBadRequest, "Unknown severity "+req.Severity)
			return
		}
		if !models.ValidActivityType(req.ActivityType) {
			respond.Fail(c, http.StatusBadRequest, "Unknown activity type "+req.ActivityType)
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

		occurred := time.Now()
		if req.OccurredAt != nil {
			occurred = *req.OccurredAt
		}

		log := &models.SurveillanceLog{
			InstitutionID: req.InstitutionID,
			ActivityType:  req.ActivityType,
			Severity:      req.Severity,
			Description:   req.Description,
			OccurredAt:    occurred,
		}
		if username := c.GetString(middleware.UsernameKey); username != "" {
			log.ReportedBy = &username
		}

		if err := h.store.CreateSurveillanceLog(c.Request.Context(), log); err != nil {
			respond.Err(c, apperr.Persistence("create surveillance log", err))
			return
		}
		respond.Created(c, gin.H{"log": surveillanceJSON(log)})
	}
}
