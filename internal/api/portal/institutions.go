// Package portal implements the supervision portal's API handlers: institution
// registry, risk profiles and assessment, surveillance logs, inspection
// findings, dashboard aggregates, the audit trail, and supervisor analytics.
// Handlers validate input at the boundary, call into the domain services, and
// answer through the respond envelope; they never pick status codes directly.
package portal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/api/respond"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/registry"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// InstitutionHandlers handles institution registry endpoints
type InstitutionHandlers struct {
	registry *registry.Service
	store    store.Store
}

// NewInstitutionHandlers creates a new InstitutionHandlers instance
func NewInstitutionHandlers(reg *registry.Service, st store.Store) *InstitutionHandlers {
	return &InstitutionHandlers{registry: reg, store: st}
}

// pageParams reads 1-based pagination from the query string with bounds.
func pageParams(c *gin.Context, pageSizeKey string, defaultSize, maxSize int) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery(pageSizeKey, strconv.Itoa(defaultSize)))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > maxSize {
		size = defaultSize
	}
	return page, size
}

// institutionJSON shapes an institution for the wire.
func institutionJSON(inst *models.Institution) gin.H {
	return gin.H{
		"id":                 inst.ID,
		"name":               inst.Name,
		"license_number":     inst.LicenseNumber,
		"category":           inst.Category,
		"status":             inst.Status,
		"risk_level":         inst.RiskLevel,
		"risk_score":         inst.RiskScore,
		"compliance_score":   inst.ComplianceScore,
		"contact_email":      inst.ContactEmail,
		"contact_phone":      inst.ContactPhone,
		"address":            inst.Address,
		"registered_at":      inst.RegisteredAt,
		"license_expires_at": inst.LicenseExpiresAt,
		"updated_at":         inst.UpdatedAt,
	}
}

// @Summary      List institutions
// @Description  Paginated, filtered view of the institution registry.
// @Tags         Institutions
// @Security     Bearer
// @Produce      json
// @Param        search     query  string  false  "Name or license number substring"
// @Param        status     query  string  false  "Active | Suspended | Revoked | Pending Application"
// @Param        riskLevel  query  string  false  "High | Medium | Low"
// @Param        category   query  string  false  "Institution category"
// @Param        page       query  int     false  "Page number (default 1)"
// @Param        pageSize   query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/institutions [get]
func (h *InstitutionHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.registry.SetFilters(registry.Filters{
			Search:    c.Query("search"),
			Status:    c.Query("status"),
			RiskLevel: c.Query("riskLevel"),
			Category:  c.Query("category"),
		})

		page, pageSize := pageParams(c, "pageSize", 20, 100)
		items, total := h.registry.View(page, pageSize)

		rows := make([]gin.H, 0, len(items))
		for _, inst := range items {
			rows = append(rows, institutionJSON(inst))
		}

		respond.OK(c, gin.H{
			"institutions": rows,
			"pagination": gin.H{
				"page":     page,
				"pageSize": pageSize,
				"total":    total,
			},
		})
	}
}

// GetHandler returns a single institution by ID.
// GET /api/v1/institutions/:id
func (h *InstitutionHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		inst, err := h.store.GetInstitution(c.Request.Context(), id)
		if err != nil {
			respond.Err(c, err)
			return
		}
		if inst == nil {
			respond.Fail(c, http.StatusNotFound, "Institution not found")
			return
		}
		respond.OK(c, gin.H{"institution": institutionJSON(inst)})
	}
}

type createInstitutionRequest struct {
	Name             string     `json:"name" binding:"required"`
	LicenseNumber    string     `json:"license_number" binding:"required"`
	Category         string     `json:"category" binding:"required"`
	Status           string     `json:"status"`
	ContactEmail     *string    `json:"contact_email"`
	ContactPhone     *string    `json:"contact_phone"`
	Address          *string    `json:"address"`
	LicenseExpiresAt *time.Time `json:"license_expires_at"`
}

// CreateHandler registers a new institution.
// POST /api/v1/institutions
func (h *InstitutionHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createInstitutionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}

		if req.Status != "" && !models.ValidStatus(req.Status) {
			respond.Fail(c, http.StatusBadRequest, "Unknown status "+req.Status)
			return
		}

		inst := &models.Institution{
			Name:             req.Name,
			LicenseNumber:    req.LicenseNumber,
			Category:         req.Category,
			Status:           req.Status,
			ContactEmail:     req.ContactEmail,
			ContactPhone:     req.ContactPhone,
			Address:          req.Address,
			LicenseExpiresAt: req.LicenseExpiresAt,
		}
		if err := h.registry.Register(c.Request.Context(), inst); err != nil {
			respond.Err(c, err)
			return
		}
		respond.Created(c, gin.H{"institution": institutionJSON(inst)})
	}
}

type updateInstitutionRequest struct {
	Name             *string    `json:"name"`
	Category         *string    `json:"category"`
	Status           *string    `json:"status"`
	RiskLevel        *string    `json:"risk_level"`
	RiskScore        *int       `json:"risk_score"`
	ContactEmail     *string    `json:"contact_email"`
	ContactPhone     *string    `json:"contact_phone"`
	Address          *string    `json:"address"`
	LicenseExpiresAt *time.Time `json:"license_expires_at"`
}

// UpdateHandler partially updates an institution. Omitted fields keep their
// prior value.
// PUT /api/v1/institutions/:id
func (h *InstitutionHandlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateInstitutionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}

		if req.Status != nil && !models.ValidStatus(*req.Status) {
			respond.Fail(c, http.StatusBadRequest, "Unknown status "+*req.Status)
			return
		}
		if req.RiskLevel != nil && !models.ValidRiskLevel(*req.RiskLevel) {
			respond.Fail(c, http.StatusBadRequest, "Unknown risk level "+*req.RiskLevel)
			return
		}

		id := c.Param("id")
		patch := models.InstitutionPatch{
			Name:             req.Name,
			Category:         req.Category,
			Status:           req.Status,
			RiskLevel:        req.RiskLevel,
			RiskScore:        req.RiskScore,
			ContactEmail:     req.ContactEmail,
			ContactPhone:     req.ContactPhone,
			Address:          req.Address,
			LicenseExpiresAt: req.LicenseExpiresAt,
		}
		if err := h.registry.Update(c.Request.Context(), id, patch); err != nil {
			respond.Err(c, err)
			return
		}

		inst, err := h.store.GetInstitution(c.Request.Context(), id)
		if err != nil || inst == nil {
			respond.OK(c, gin.H{"updated": true})
			return
		}
		respond.OK(c, gin.H{"institution": institutionJSON(inst)})
	}
}

// DeleteHandler revokes an institution's license. Institutions are never
// hard-deleted; the registry keeps them for the supervisory record.
// DELETE /api/v1/institutions/:id
func (h *InstitutionHandlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := h.registry.PerformLicenseAction(c.Request.Context(), id, registry.ActionRevoke); err != nil {
			respond.Err(c, err)
			return
		}
		respond.OK(c, gin.H{"revoked": true})
	}
}

type licenseActionRequest struct {
	Action string `json:"action" binding:"required"`
}

// LicenseActionHandler applies a licensing state transition.
// POST /api/v1/institutions/:id/license-actions
func (h *InstitutionHandlers) LicenseActionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req licenseActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}

		id := c.Param("id")
		if err := h.registry.PerformLicenseAction(c.Request.Context(), id, req.Action); err != nil {
			respond.Err(c, err)
			return
		}

		inst, err := h.store.GetInstitution(c.Request.Context(), id)
		if err != nil || inst == nil {
			respond.OK(c, gin.H{"applied": req.Action})
			return
		}
		respond.OK(c, gin.H{"institution": institutionJSON(inst)})
	}
}

// StatisticsHandler returns registry-wide derived statistics.
// GET /api/v1/institutions/statistics
func (h *InstitutionHandlers) StatisticsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := h.registry.Statistics()
		respond.OK(c, gin.H{
			"total_entities":       stats.TotalEntities,
			"active_licenses":      stats.ActiveLicenses,
			"expiring_soon":        stats.ExpiringSoon,
			"suspended":            stats.Suspended,
			"by_category":          stats.ByCategory,
			"by_risk_level":        stats.ByRiskLevel,
			"avg_risk_score":       stats.AvgRiskScore,
			"avg_compliance_score": stats.AvgComplianceScore,
		})
	}
}
