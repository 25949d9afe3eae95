package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"treebio-api/internal/models"
	"treebio-api/internal/realtime"
	"treebio-api/internal/store"
	"treebio-api/internal/urlcheck"
)

// CreateLink handles POST /api/links
func (h *Handler) CreateLink(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req store.LinkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Title and url are required."})
		return
	}
	url, ok := h.checkURL(c, req.URL)
	if !ok {
		return
	}
	req.URL = url
	req.Title = urlcheck.Sanitize(req.Title)
	req.Description = urlcheck.Sanitize(req.Description)

	link, err := h.Store.CreateLink(c.Request.Context(), userID, req)
	if err != nil {
		h.fail(c, err, "Failed to create link")
		return
	}
	h.publishOwner(c.Request.Context(), userID, realtime.LinkAdded, realtime.Payload{Link: link})
	c.JSON(http.StatusCreated, link)
}

// UpdateLink handles PUT /api/links
func (h *Handler) UpdateLink(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.Link
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Link id is required."})
		return
	}
	url, ok := h.checkURL(c, req.URL)
	if !ok {
		return
	}
	req.URL = url
	req.Title = urlcheck.Sanitize(req.Title)
	req.Description = urlcheck.Sanitize(req.Description)

	link, err := h.Store.UpdateLink(c.Request.Context(), userID, req)
	if err != nil {
		h.fail(c, err, "Failed to update link")
		return
	}
	h.publishOwner(c.Request.Context(), userID, realtime.LinkUpdated, realtime.Payload{Link: link})
	c.JSON(http.StatusOK, link)
}

// DeleteLink handles DELETE /api/links?id=
func (h *Handler) DeleteLink(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	linkID := c.Query("id")
	if linkID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Link id is required"})
		return
	}

	if err := h.Store.DeleteLink(c.Request.Context(), userID, linkID); err != nil {
		h.fail(c, err, "Failed to delete link")
		return
	}
	h.publishOwner(c.Request.Context(), userID, realtime.LinkDeleted, realtime.Payload{LinkID: linkID})
	c.JSON(http.StatusOK, gin.H{"success": true, "id": linkID})
}
