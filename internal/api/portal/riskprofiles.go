// riskprofiles.go implements handlers for the risk assessment history and the
// on-demand scoring endpoint.
package portal

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/api/respond"
	"github.com/supervision-portal/supervision-portal/internal/apperr"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/middleware"
	"github.com/supervision-portal/supervision-portal/internal/risk"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// RiskProfileHandlers handles risk profile and assessment endpoints
type RiskProfileHandlers struct {
	store  store.Store
	engine *risk.Engine
}

// NewRiskProfileHandlers creates a new RiskProfileHandlers instance
func NewRiskProfileHandlers(st store.Store, engine *risk.Engine) *RiskProfileHandlers {
	return &RiskProfileHandlers{store: st, engine: engine}
}

func profileJSON(p *models.RiskProfile) gin.H {
	return gin.H{
		"id":             p.ID,
		"institution_id": p.InstitutionID,
		"score":          p.Score,
		"level":          p.Level,
		"factors":        p.Factors,
		"assessed_by":    p.AssessedBy,
		"notes":          p.Notes,
		"created_at":     p.CreatedAt,
	}
}

// ListHandler returns the assessment history of an institution, newest first.
// GET /api/v1/risk-profiles?institutionId=&page=&limit=
func (h *RiskProfileHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		institutionID := strings.TrimSpace(c.Query("institutionId"))
		if institutionID == "" {
			respond.Fail(c, http.StatusBadRequest, "institutionId query parameter is required")
			return
		}

		page, limit := pageParams(c, "limit", 20, 100)
		profiles, total, err := h.store.ListRiskProfiles(c.Request.Context(), institutionID, limit, (page-1)*limit)
		if err != nil {
			respond.Err(c, apperr.Persistence("list risk profiles", err))
			return
		}

		rows := make([]gin.H, 0, len(profiles))
		for _, p := range profiles {
			rows = append(rows, profileJSON(p))
		}
		respond.OK(c, gin.H{
			"profiles": rows,
			"pagination": gin.H{
				"page":  page,
				"limit": limit,
				"total": total,
			},
		})
	}
}

type createProfileRequest struct {
	InstitutionID string  `json:"institution_id" binding:"required"`
	Score         int     `json:"score"`
	Notes         *string `json:"notes"`
}

// CreateHandler records a manual assessment. The level band is always derived
// from the score; callers cannot set score and level inconsistently.
// POST /api/v1/risk-profiles
func (h *RiskProfileHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if req.Score < 0 || req.Score > 100 {
			respond.Fail(c, http.StatusBadRequest, "Score must be between 0 and 100")
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

		profile := &models.RiskProfile{
			InstitutionID: req.InstitutionID,
			Score:         req.Score,
			Level:         models.LevelForScore(req.Score),
			Notes:         req.Notes,
		}
		if username := c.GetString(middleware.UsernameKey); username != "" {
			profile.AssessedBy = &username
		}

		if err := h.store.CreateRiskProfile(c.Request.Context(), profile); err != nil {
			respond.Err(c, apperr.Persistence("create risk profile", err))
			return
		}
		respond.Created(c, gin.H{"profile": profileJSON(profile)})
	}
}

type updateProfileRequest struct {
	Score *int    `json:"score"`
	Notes *string `json:"notes"`
}

// UpdateHandler amends an assessment's score or notes. Omitted fields keep
// their prior value; a changed score moves the level band with it.
// PUT /api/v1/risk-profiles/:id
func (h *RiskProfileHandlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if req.Score != nil && (*req.Score < 0 || *req.Score > 100) {
			respond.Fail(c, http.StatusBadRequest, "Score must be between 0 and 100")
			return
		}

		id := c.Param("id")
		patch := models.RiskProfilePatch{Score: req.Score, Notes: req.Notes}
		if patch.IsEmpty() {
			respond.Fail(c, http.StatusBadRequest, "Empty update")
			return
		}

		if err := h.store.UpdateRiskProfile(c.Request.Context(), id, patch); err != nil {
			if err == store.ErrNotFound {
				respond.Err(c, apperr.NotFound("risk profile", id))
				return
			}
			respond.Err(c, apperr.Persistence("update risk profile", err))
			return
		}
		respond.OK(c, gin.H{"updated": true})
	}
}

type assessRequest struct {
	InstitutionID string `json:"institutionId" binding:"required"`
}

// @Summary      Compute risk score
// @Description  Runs the scoring engine against an institution's current data. Read-only; nothing is persisted.
// @Tags         Risk
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  assessRequest  true  "Institution to assess"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}  "Institution not found"
// @Router       /api/v1/risk-assessment [post]
func (h *RiskProfileHandlers) AssessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}

		assessment, err := h.engine.ComputeRiskScore(c.Request.Context(), req.InstitutionID)
		if err != nil {
			respond.Err(c, err)
			return
		}

		respond.OK(c, gin.H{
			"institution_id": assessment.InstitutionID,
			"score":          assessment.Score,
			"level":          assessment.Level,
			"factors":        assessment.Factors,
			"computed_at":    assessment.ComputedAt,
		})
	}
}
