package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"treebio-api/internal/models"
	"treebio-api/internal/realtime"
	"treebio-api/internal/store"
)

// CreateSocialLink handles POST /api/social-links
func (h *Handler) CreateSocialLink(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req store.SocialLinkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Platform and url are required."})
		return
	}
	url, ok := h.checkURL(c, req.URL)
	if !ok {
		return
	}
	req.URL = url

	sl, err := h.Store.CreateSocialLink(c.Request.Context(), userID, req)
	if err != nil {
		h.fail(c, err, "Failed to create social link")
		return
	}
	h.publishOwner(c.Request.Context(), userID, realtime.SocialLinkAdded, realtime.Payload{SocialLink: sl})
	c.JSON(http.StatusCreated, sl)
}

// UpdateSocialLink handles PUT /api/social-links
func (h *Handler) UpdateSocialLink(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.SocialLink
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Social link id is required."})
		return
	}
	url, ok := h.checkURL(c, req.URL)
	if !ok {
		return
	}
	req.URL = url

	sl, err := h.Store.UpdateSocialLink(c.Request.Context(), userID, req)
	if err != nil {
		h.fail(c, err, "Failed to update social link")
		return
	}
	h.publishOwner(c.Request.Context(), userID, realtime.SocialLinkUpdated, realtime.Payload{SocialLink: sl})
	c.JSON(http.StatusOK, sl)
}

// DeleteSocialLink handles DELETE /api/social-links?id=
func (h *Handler) DeleteSocialLink(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Social link id is required"})
		return
	}

	if err := h.Store.DeleteSocialLink(c.Request.Context(), userID, id); err != nil {
		h.fail(c, err, "Failed to delete social link")
		return
	}
	h.publishOwner(c.Request.Context(), userID, realtime.SocialLinkDeleted, realtime.Payload{SocialLinkID: id})
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}
