package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tomasen/realip"

	"treebio-api/internal/realtime"
	"treebio-api/internal/store"
)

func visitFrom(c *gin.Context) store.Visit {
	return store.Visit{
		IP:        realip.FromRequest(c.Request),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}
}

// GetPublicProfile serves a public profile page payload and counts the visit
// once per visitor within the view window.
// GET /api/public/:username
func (h *Handler) GetPublicProfile(c *gin.Context) {
	username := strings.ToLower(c.Param("username"))
	ctx := c.Request.Context()

	profile, cached := h.Profiles.Get(username)
	if !cached {
		var err error
		profile, err = h.Store.GetPublicProfile(ctx, username, time.Now())
		if err != nil {
			h.fail(c, err, "Failed to fetch profile")
			return
		}
		profile.Email = ""
		h.Profiles.Set(username, profile, h.Config.Cache.ProfileTTL)
	}

	resp := *profile
	visit := visitFrom(c)
	if h.Views.SetIfAbsent(profile.ID+"|"+visit.IP, struct{}{}, h.Config.Cache.ViewWindow) {
		view, err := h.Store.RecordView(ctx, profile.ID, visit)
		if err != nil {
			h.logger.Warn("failed to record profile view", "profileId", profile.ID, "err", err)
		} else {
			resp.ProfileViewCount = view.ViewCount
			h.Publisher.Publish(ctx, realtime.UserChannel(view.UserID), realtime.ProfileViewed, realtime.Payload{
				ProfileID: view.ProfileID,
				ViewCount: view.ViewCount,
			})
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) recordClick(c *gin.Context) (*store.ClickResult, bool) {
	ctx := c.Request.Context()
	res, err := h.Store.RecordClick(ctx, c.Param("id"), visitFrom(c))
	if err != nil {
		h.fail(c, err, "Failed to record click")
		return nil, false
	}
	h.Publisher.Publish(ctx, realtime.UserChannel(res.UserID), realtime.LinkClicked, realtime.Payload{
		Link:       &res.Link,
		LinkID:     res.Link.ID,
		ProfileID:  res.Link.ProfileID,
		ClickCount: res.ProfileClicks,
	})
	return res, true
}

// ClickLink handles POST /api/public/links/:id/click
func (h *Handler) ClickLink(c *gin.Context) {
	res, ok := h.recordClick(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"linkId":     res.Link.ID,
		"url":        res.Link.URL,
		"clickCount": res.Link.ClickCount,
	})
}

// RedirectLink counts a click and redirects to the link target.
// GET /l/:id
func (h *Handler) RedirectLink(c *gin.Context) {
	res, ok := h.recordClick(c)
	if !ok {
		return
	}
	c.Redirect(http.StatusFound, res.Link.URL)
}
