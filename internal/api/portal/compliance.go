// compliance.go implements handlers for the per-requirement compliance ledger
// of an institution and the interventions issued against it.
package portal

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/api/respond"
	"github.com/supervision-portal/supervision-portal/internal/apperr"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/middleware"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// ComplianceHandlers handles compliance status and intervention endpoints
type ComplianceHandlers struct {
	store store.Store
}

// NewComplianceHandlers creates a new ComplianceHandlers instance
func NewComplianceHandlers(st store.Store) *ComplianceHandlers {
	return &ComplianceHandlers{store: st}
}

func complianceJSON(cs *models.ComplianceStatus) gin.H {
	return gin.H{
		"id":             cs.ID,
		"institution_id": cs.InstitutionID,
		"requirement":    cs.Requirement,
		"state":          cs.State,
		"notes":          cs.Notes,
		"updated_at":     cs.UpdatedAt,
	}
}

func interventionJSON(iv *models.Intervention) gin.H {
	return gin.H{
		"id":             iv.ID,
		"institution_id": iv.InstitutionID,
		"action":         iv.Action,
		"notes":          iv.Notes,
		"issued_by":      iv.IssuedBy,
		"issued_at":      iv.IssuedAt,
	}
}

// loadInstitution resolves the :id param to an institution, replying with the
// appropriate error envelope when it cannot.
func (h *ComplianceHandlers) loadInstitution(c *gin.Context) *models.Institution {
	id := c.Param("id")
	inst, err := h.store.GetInstitution(c.Request.Context(), id)
	if err != nil {
		respond.Err(c, apperr.Persistence("load institution", err))
		return nil
	}
	if inst == nil {
		respond.Err(c, apperr.NotFound("institution", id))
		return nil
	}
	return inst
}

// ListHandler returns the compliance ledger of an institution together with
// its derived compliance score.
// GET /api/v1/institutions/:id/compliance
func (h *ComplianceHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		inst := h.loadInstitution(c)
		if inst == nil {
			return
		}

		statuses, err := h.store.ListComplianceStatus(c.Request.Context(), inst.ID)
		if err != nil {
			respond.Err(c, apperr.Persistence("list compliance status", err))
			return
		}

		rows := make([]gin.H, 0, len(statuses))
		for _, cs := range statuses {
			rows = append(rows, complianceJSON(cs))
		}
		respond.OK(c, gin.H{
			"requirements":     rows,
			"compliance_score": inst.ComplianceScore,
		})
	}
}

type upsertComplianceRequest struct {
	Requirement string  `json:"requirement" binding:"required"`
	State       string  `json:"state" binding:"required"`
	Notes       *string `json:"notes"`
}

// UpsertHandler records the state of one requirement. Repeating a requirement
// replaces its prior state, and every write recomputes the institution's
// compliance score.
// PUT /api/v1/institutions/:id/compliance
func (h *ComplianceHandlers) UpsertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req upsertComplianceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if !models.ValidComplianceState(req.State) {
			respond.Fail(c, http.StatusBadRequest, "Unknown compliance state "+req.State)
			return
		}

		inst := h.loadInstitution(c)
		if inst == nil {
			return
		}

		cs := &models.ComplianceStatus{
			InstitutionID: inst.ID,
			Requirement:   req.Requirement,
			State:         req.State,
			Notes:         req.Notes,
		}
		if err := h.store.UpsertComplianceStatus(c.Request.Context(), cs); err != nil {
			respond.Err(c, apperr.Persistence("upsert compliance status", err))
			return
		}
		respond.OK(c, gin.H{"requirement": complianceJSON(cs)})
	}
}

// ListInterventionsHandler returns the interventions issued against an
// institution, most recent first.
// GET /api/v1/institutions/:id/interventions
func (h *ComplianceHandlers) ListInterventionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		inst := h.loadInstitution(c)
		if inst == nil {
			return
		}

		interventions, err := h.store.ListInterventions(c.Request.Context(), inst.ID)
		if err != nil {
			respond.Err(c, apperr.Persistence("list interventions", err))
			return
		}

		rows := make([]gin.H, 0, len(interventions))
		for _, iv := range interventions {
			rows = append(rows, interventionJSON(iv))
		}
		respond.OK(c, gin.H{"interventions": rows})
	}
}

type createInterventionRequest struct {
	Action string     `json:"action" binding:"required"`
	Notes  *string    `json:"notes"`
	Issued *time.Time `json:"issued_at"`
}

// CreateInterventionHandler records a supervisory action. Append-only, like
// the surveillance log.
// POST /api/v1/institutions/:id/interventions
func (h *ComplianceHandlers) CreateInterventionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createInterventionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}

		inst := h.loadInstitution(c)
		if inst == nil {
			return
		}

		iv := &models.Intervention{
			InstitutionID: inst.ID,
			Action:        req.Action,
			Notes:         req.Notes,
		}
		if req.Issued != nil {
			iv.IssuedAt = *req.Issued
		}
		if username := c.GetString(middleware.UsernameKey); username != "" {
			iv.IssuedBy = &username
		}

		if err := h.store.CreateIntervention(c.Request.Context(), iv); err != nil {
			respond.Err(c, apperr.Persistence("create intervention", err))
			return
		}
		respond.Created(c, gin.H{"intervention": interventionJSON(iv)})
	}
}
