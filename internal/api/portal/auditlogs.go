// auditlogs.go implements the audit trail endpoints: reading the trail,
// accepting client-side events, and verifying the hash chain.
package portal

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/api/respond"
	"github.com/supervision-portal/supervision-portal/internal/apperr"
	"github.com/supervision-portal/supervision-portal/internal/audit"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/db/repositories"
	"github.com/supervision-portal/supervision-portal/internal/middleware"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// AuditLogHandlers handles audit trail endpoints
type AuditLogHandlers struct {
	store store.Store
	queue *audit.Queue
}

// NewAuditLogHandlers creates a new AuditLogHandlers instance
func NewAuditLogHandlers(st store.Store, queue *audit.Queue) *AuditLogHandlers {
	return &AuditLogHandlers{store: st, queue: queue}
}

func auditLogJSON(log *models.AuditLog) gin.H {
	return gin.H{
		"id":            log.ID,
		"seq":           log.Seq,
		"actor":         log.Actor,
		"action":        log.Action,
		"resource_type": log.ResourceType,
		"resource_id":   log.ResourceID,
		"details":       log.Details,
		"ip_address":    log.IPAddress,
		"prev_hash":     log.PrevHash,
		"entry_hash":    log.EntryHash,
		"created_at":    log.CreatedAt,
	}
}

// ListHandler returns audit log entries, newest first.
// GET /api/v1/audit-logs?limit=&offset=&actor=&action=&resourceType=&resourceId=
// @Summary List audit logs
// @Description Returns audit trail entries newest first, with optional filters
// @Tags audit
// @Produce json
// @Param limit query int false "Max rows (default 100, capped at 500)"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/audit-logs [get]
func (h *AuditLogHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAuditLimit)))
		if limit < 1 {
			limit = defaultAuditLimit
		}
		if limit > maxAuditLimit {
			limit = maxAuditLimit
		}
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if offset < 0 {
			offset = 0
		}

		filters := repositories.AuditFilters{
			Actor:        strFilter(c, "actor"),
			Action:       strFilter(c, "action"),
			ResourceType: strFilter(c, "resourceType"),
			ResourceID:   strFilter(c, "resourceId"),
		}

		logs, total, err := h.store.ListAuditLogs(c.Request.Context(), filters, limit, offset)
		if err != nil {
			respond.Err(c, apperr.Persistence("failed to list audit logs", err))
			return
		}

		rows := make([]gin.H, 0, len(logs))
		for _, log := range logs {
			rows = append(rows, auditLogJSON(log))
		}
		respond.OK(c, gin.H{
			"logs":   rows,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}

type clientAuditEvent struct {
	Action       string                 `json:"action" binding:"required"`
	ResourceType string                 `json:"resource_type" binding:"required"`
	ResourceID   string                 `json:"resource_id"`
	Details      map[string]interface{} `json:"details"`
}

// CreateHandler accepts a client-reported audit event. The entry goes through
// the same queue as server-side events, so it joins the hash chain in write
// order. 202 because the write is asynchronous.
// POST /api/v1/audit-logs
func (h *AuditLogHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req clientAuditEvent
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Err(c, apperr.Validation("action and resource_type are required"))
			return
		}

		actor := "anonymous"
		if username, ok := c.Get(middleware.UsernameKey); ok {
			if s, ok := username.(string); ok && s != "" {
				actor = s
			}
		}

		details := req.Details
		if details == nil {
			details = map[string]interface{}{}
		}
		details["source"] = "client"

		h.queue.Enqueue(audit.Entry{
			Actor:        actor,
			Action:       req.Action,
			ResourceType: req.ResourceType,
			ResourceID:   req.ResourceID,
			Details:      details,
			IPAddress:    c.ClientIP(),
		})
		respond.Accepted(c)
	}
}

// VerifyHandler recomputes the whole hash chain and reports the first break,
// if any.
// GET /api/v1/audit-logs/verify
// @Summary Verify audit chain
// @Description Walks the audit trail recomputing every hash and reports integrity
// @Tags audit
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/audit-logs/verify [get]
func (h *AuditLogHandlers) VerifyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := audit.VerifyChain(c.Request.Context(), h.store)
		if err != nil {
			respond.Err(c, apperr.Persistence("chain verification failed", err))
			return
		}

		payload := gin.H{
			"checked": result.Checked,
			"intact":  result.Intact,
		}
		if !result.Intact {
			payload["broken_seq"] = result.BrokenSeq
		}
		respond.OK(c, payload)
	}
}
