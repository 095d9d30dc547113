// login.go implements the public authentication endpoint.
package portal

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/api/respond"
	"github.com/supervision-portal/supervision-portal/internal/apperr"
	"github.com/supervision-portal/supervision-portal/internal/auth"
	"github.com/supervision-portal/supervision-portal/internal/config"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// AuthHandlers handles authentication endpoints
type AuthHandlers struct {
	store store.Store
	cfg   *config.AuthConfig
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(st store.Store, cfg *config.AuthConfig) *AuthHandlers {
	return &AuthHandlers{store: st, cfg: cfg}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler exchanges credentials for a signed session token. Unknown
// usernames, bad passwords, and deactivated accounts all return the same 401
// so the response does not reveal which accounts exist.
// POST /api/v1/auth/login
// @Summary Log in
// @Description Exchanges username and password for a JWT session token
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/auth/login [post]
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Err(c, apperr.Validation("username and password are required"))
			return
		}

		user, err := h.store.GetUserByUsername(c.Request.Context(), req.Username)
		if err != nil {
			respond.Err(c, apperr.Persistence("failed to load user", err))
			return
		}
		if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
			respond.Err(c, apperr.Unauthorized("Invalid credentials"))
			return
		}
		if !user.IsActive {
			respond.Err(c, apperr.Unauthorized("Invalid credentials"))
			return
		}

		institutionID := ""
		if user.InstitutionID != nil {
			institutionID = *user.InstitutionID
		}
		token, err := auth.GenerateJWT(user.ID, user.Username, user.Role, institutionID, h.cfg.TokenTTL)
		if err != nil {
			respond.Err(c, apperr.Persistence("failed to issue token", err))
			return
		}

		if err := h.store.TouchLastLogin(c.Request.Context(), user.ID); err != nil {
			slog.Warn("failed to record last login", "user_id", user.ID, "error", err)
		}

		respond.OK(c, gin.H{
			"token":      token,
			"expires_in": int(h.cfg.TokenTTL.Seconds()),
			"user": gin.H{
				"id":             user.ID,
				"username":       user.Username,
				"email":          user.Email,
				"role":           user.Role,
				"institution_id": user.InstitutionID,
			},
			"session_sweep_interval": int(h.cfg.SessionSweepInterval.Seconds()),
		})
	}
}
