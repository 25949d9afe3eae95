// Package handlers implements the HTTP API. Every mutation is persisted
// first and published afterwards; a failed publish never changes the
// response.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"treebio-api/internal/auth"
	"treebio-api/internal/cache"
	"treebio-api/internal/config"
	"treebio-api/internal/logging"
	"treebio-api/internal/middleware"
	"treebio-api/internal/models"
	"treebio-api/internal/realtime"
	"treebio-api/internal/store"
	"treebio-api/internal/urlcheck"
)

// Deps are the collaborators shared by all handlers.
type Deps struct {
	Config    *config.Config
	Store     *store.Store
	Publisher *realtime.Publisher
	Hub       *realtime.Hub
	Tokens    *auth.TokenManager
	// Profiles caches public profile responses by username.
	Profiles cache.Cache[string, *models.Profile]
	// Views remembers recent visitor/profile pairs to de-duplicate views.
	Views cache.Cache[string, struct{}]
}

type Handler struct {
	Deps
	logger *slog.Logger
}

func New(deps Deps) *Handler {
	return &Handler{Deps: deps, logger: logging.Sub("api")}
}

func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return "", false
	}
	return userID, true
}

// fail maps store and validation errors onto status codes.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrUsernameTaken), errors.Is(err, store.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidUsername), errors.Is(err, store.ErrInvalidInput), errors.Is(err, auth.ErrWeakPassword):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "path", c.FullPath(), "err", err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": clientMessage(err)})
}

// clientMessage drops the outermost operation prefix from err.
func clientMessage(err error) string {
	if inner := errors.Unwrap(err); inner != nil {
		return inner.Error()
	}
	return err.Error()
}

func (h *Handler) checkURL(c *gin.Context, raw string) (string, bool) {
	normalized, err := urlcheck.Validate(raw, h.Config.IsProduction())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	if h.Config.PublicBaseURL != "" && urlcheck.IsShortURL(normalized, h.Config.PublicBaseURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "links cannot point to another tracked link"})
		return "", false
	}
	return normalized, true
}

// publicChannels lists the public channels of the profiles that are
// currently public and have a username.
func publicChannels(profiles ...*models.Profile) []string {
	var channels []string
	for _, p := range profiles {
		if p != nil && p.IsPublic && p.Handle() != "" {
			channels = append(channels, realtime.PublicChannel(p.Handle()))
		}
	}
	return lo.Uniq(channels)
}

// publicEvent redacts an owner event for anonymous subscribers so that it
// carries no more than GetPublicProfile would show. A link that is not live
// at now, or a hidden social link, reaches the public channel as a delete;
// ok is false when there is nothing to tell visitors.
func publicEvent(kind realtime.EventKind, p realtime.Payload, now time.Time) (realtime.EventKind, realtime.Payload, bool) {
	switch kind {
	case realtime.ProfileUpdated:
		if p.Profile == nil {
			return kind, p, false
		}
		profile := *p.Profile
		profile.Email = ""
		profile.Links = nil
		profile.SocialLinks = nil
		return kind, realtime.Payload{Profile: &profile}, true
	case realtime.LinkAdded, realtime.LinkUpdated:
		if p.Link == nil {
			return kind, p, false
		}
		if !p.Link.LiveAt(now) {
			return realtime.LinkDeleted, realtime.Payload{LinkID: p.Link.ID}, kind == realtime.LinkUpdated
		}
		link := *p.Link
		return kind, realtime.Payload{Link: &link}, true
	case realtime.SocialLinkAdded, realtime.SocialLinkUpdated:
		if p.SocialLink == nil {
			return kind, p, false
		}
		if !p.SocialLink.IsVisible {
			return realtime.SocialLinkDeleted, realtime.Payload{SocialLinkID: p.SocialLink.ID}, kind == realtime.SocialLinkUpdated
		}
		sl := *p.SocialLink
		return kind, realtime.Payload{SocialLink: &sl}, true
	case realtime.LinkDeleted, realtime.SocialLinkDeleted:
		return kind, p, true
	}
	// Analytics events stay private.
	return kind, p, false
}

// announce publishes an owner event in full on the private channel and, in
// redacted form, on the public channels of profiles.
func (h *Handler) announce(ctx context.Context, userID string, kind realtime.EventKind, payload realtime.Payload, profiles ...*models.Profile) {
	h.Publisher.Publish(ctx, realtime.UserChannel(userID), kind, payload)
	channels := publicChannels(profiles...)
	if len(channels) == 0 {
		return
	}
	if kind, payload, ok := publicEvent(kind, payload, time.Now()); ok {
		h.Publisher.PublishAll(ctx, channels, kind, payload)
	}
}

// publishOwner drops cached public views of the profile and announces the
// change. It runs after the mutation has been committed.
func (h *Handler) publishOwner(ctx context.Context, userID string, kind realtime.EventKind, payload realtime.Payload) {
	p, err := h.Store.LookupProfile(ctx, userID)
	if err != nil {
		h.logger.Warn("owner profile lookup failed, publishing privately", "userId", userID, "err", err)
	}
	h.invalidate(p)
	h.announce(ctx, userID, kind, payload, p)
}

func (h *Handler) invalidate(profiles ...*models.Profile) {
	for _, p := range profiles {
		if p != nil && p.Handle() != "" {
			h.Profiles.Delete(p.Handle())
		}
	}
}
