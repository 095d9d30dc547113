// Package respond implements the JSON response envelope shared by every API
// handler: {success, data?, error?}. Handlers hand errors to Err unchanged;
// the taxonomy in internal/apperr decides the status code here, so a handler
// never picks status codes itself.
package respond

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/apperr"
)

// OK writes a 200 envelope with the given payload.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created writes a 201 envelope with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// Accepted writes a 202 envelope with no payload, for fire-and-forget writes.
func Accepted(c *gin.Context) {
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

// Err writes an error envelope with the status mapped from the error's kind.
// Client errors surface their message; anything mapping to a 500 is logged
// and replaced with a generic message so internals never leak to callers.
func Err(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Request.URL.Path, "error", err)
		msg = "Internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// Fail writes an error envelope with an explicit status, for cases that have
// no apperr value, such as malformed JSON rejected by binding.
func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
