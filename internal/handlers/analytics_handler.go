package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GetAnalytics handles GET /api/analytics
func (h *Handler) GetAnalytics(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	stats, err := h.Store.Analytics(c.Request.Context(), userID, time.Now())
	if err != nil {
		h.fail(c, err, "Failed to fetch analytics")
		return
	}
	c.JSON(http.StatusOK, stats)
}
