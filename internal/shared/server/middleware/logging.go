package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"library-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		userID, _ := c.Get(userIDKey)
		batchID, _ := c.Get("batchId")
		fileID, _ := c.Get("fileId")
		documentID, _ := c.Get("documentId")
		statusTransition := ""
		if raw, ok := c.Get("statusTransition"); ok {
			if s, ok := raw.(string); ok {
				statusTransition = s
			}
		}

		telemetry.Info("request.complete", map[string]any{
			"request_id":        reqID,
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"status":            status,
			"status_transition": statusTransition,
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_id":           userID,
			"batch_id":          batchID,
			"file_id":           fileID,
			"document_id":       documentID,
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		})
	}
}
