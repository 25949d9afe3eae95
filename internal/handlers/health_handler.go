package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health reports database reachability and push delivery. A configured push
// backend that has lost its relay makes the instance degraded.
// GET /health
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	database := gin.H{"status": "connected"}
	if err := h.Store.Ping(ctx); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
		database = gin.H{"status": "error", "error": err.Error()}
	}

	healthy := h.Publisher.Healthy()
	if h.Publisher.Configured() && !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":      status,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": h.Config.Environment,
		"database":    database,
		"push": gin.H{
			"configured": h.Publisher.Configured(),
			"healthy":    healthy,
			"backend":    h.Config.Push.Backend,
		},
	})
}

// RealtimeConfig tells sessions whether push delivery is available.
// GET /api/realtime/config
func (h *Handler) RealtimeConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled": h.Publisher.Healthy(),
		"backend": h.Config.Push.Backend,
	})
}
