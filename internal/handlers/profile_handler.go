package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"treebio-api/internal/realtime"
	"treebio-api/internal/store"
	"treebio-api/internal/urlcheck"
)

// GetProfile returns the caller's profile with links and social links.
// GET /api/profile
func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	profile, err := h.Store.GetProfileByUserID(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "Failed to fetch profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile applies a partial update and publishes profile-updated.
// PUT /api/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req store.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	for _, field := range []*string{req.FirstName, req.LastName, req.DisplayName, req.Bio, req.Title, req.Location} {
		if field != nil {
			*field = urlcheck.Sanitize(*field)
		}
	}
	if req.Website != nil && strings.TrimSpace(*req.Website) != "" {
		website, ok := h.checkURL(c, *req.Website)
		if !ok {
			return
		}
		req.Website = &website
	}

	ctx := c.Request.Context()
	before, err := h.Store.LookupProfile(ctx, userID)
	if err != nil {
		h.fail(c, err, "Failed to update profile")
		return
	}
	profile, err := h.Store.UpdateProfile(ctx, userID, req)
	if err != nil {
		h.fail(c, err, "Failed to update profile")
		return
	}

	// A profile that was just renamed or made private still tells its old
	// public channel.
	h.invalidate(before, profile)
	h.announce(ctx, userID, realtime.ProfileUpdated, realtime.Payload{Profile: profile}, before, profile)
	c.JSON(http.StatusOK, profile)
}
