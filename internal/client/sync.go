// Package client keeps a session's mirror of its own profile in step with the
// server. Two Synchronizers share one interface: a push-backed one that
// applies events from the user's private channel, and a fallback that
// updates the mirror directly when no push backend is configured.
package client

import (
	"context"
	"log/slog"
	"time"

	"treebio-api/internal/logging"
	"treebio-api/internal/models"
)

// State is the subscription state of a session.
type State int

const (
	Unsubscribed State = iota
	Subscribing
	Subscribed
	Disconnected
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	case Disconnected:
		return "disconnected"
	default:
		return "unsubscribed"
	}
}

// Identity is the signed-in user a session synchronizes for.
type Identity struct {
	UserID string
	Token  string
}

// ProfileUpdate is a partial profile change; nil fields are left as they are.
type ProfileUpdate struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Title       *string `json:"title,omitempty"`
	Location    *string `json:"location,omitempty"`
	Website     *string `json:"website,omitempty"`
	Username    *string `json:"username,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	IsPublic    *bool   `json:"isPublic,omitempty"`
}

// LinkFields are the fields a caller supplies for a new link.
type LinkFields struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Description string     `json:"description,omitempty"`
	IsVisible   *bool      `json:"isVisible,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
	SortOrder   *int       `json:"sortOrder,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}

// SocialLinkFields are the fields a caller supplies for a new social link.
type SocialLinkFields struct {
	Platform  string `json:"platform"`
	URL       string `json:"url"`
	Username  string `json:"username,omitempty"`
	IsVisible *bool  `json:"isVisible,omitempty"`
	SortOrder *int   `json:"sortOrder,omitempty"`
}

// DataAccess persists mutations. APIClient is the HTTP implementation.
type DataAccess interface {
	GetProfile(ctx context.Context) (*models.Profile, error)
	UpdateProfile(ctx context.Context, upd ProfileUpdate) (*models.Profile, error)
	CreateLink(ctx context.Context, in LinkFields) (*models.Link, error)
	UpdateLink(ctx context.Context, link models.Link) (*models.Link, error)
	DeleteLink(ctx context.Context, id string) error
	CreateSocialLink(ctx context.Context, in SocialLinkFields) (*models.SocialLink, error)
	UpdateSocialLink(ctx context.Context, sl models.SocialLink) (*models.SocialLink, error)
	DeleteSocialLink(ctx context.Context, id string) error
}

// Notifier surfaces user-facing outcomes. It must not block.
type Notifier interface {
	Success(msg string)
	Failure(msg string, err error)
}

// Synchronizer is the session-facing surface. Mutations return the
// persistence error, if any, after it has also been reported to the Notifier.
type Synchronizer interface {
	Start(ctx context.Context, id Identity) error
	Stop()
	State() State
	IsConnected() bool

	Profile() *models.Profile
	Links() []models.Link
	SocialLinks() []models.SocialLink
	Snapshot() Mirror

	RefreshData(ctx context.Context) error
	UpdateProfile(ctx context.Context, upd ProfileUpdate) error
	AddLink(ctx context.Context, in LinkFields) error
	UpdateLink(ctx context.Context, link models.Link) error
	DeleteLink(ctx context.Context, id string) error
	AddSocialLink(ctx context.Context, in SocialLinkFields) error
	UpdateSocialLink(ctx context.Context, sl models.SocialLink) error
	DeleteSocialLink(ctx context.Context, id string) error
}

type Options struct {
	// PushEnabled selects the push-backed Synchronizer; see DiscoverPush.
	PushEnabled bool
	// Transport carries the push channel. Required when PushEnabled.
	Transport Transport
	// Data persists mutations. The fallback runs purely locally without it.
	Data     DataAccess
	Notifier Notifier
	// OnChange is called with a copy of the mirror after every change. It may
	// run on the transport's reader goroutine and must not call Stop.
	OnChange func(Mirror)
	Logger   *slog.Logger
}

// New picks the Synchronizer once, at session start.
func New(opts Options) Synchronizer {
	if opts.Logger == nil {
		opts.Logger = logging.Sub("sync")
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	if opts.PushEnabled && opts.Transport != nil && opts.Data != nil {
		return newPushSync(opts)
	}
	if opts.PushEnabled {
		opts.Logger.Warn("push enabled without transport or data access, using local sync")
	}
	return newFallbackSync(opts)
}

// DiscoverPush asks the server whether push delivery is available. Any
// failure is treated as "not configured".
func DiscoverPush(ctx context.Context, api *APIClient) bool {
	cfg, err := api.RealtimeConfig(ctx)
	if err != nil {
		logging.Sub("sync").Info("realtime config unavailable, using local sync", "err", err)
		return false
	}
	return cfg.Enabled
}

// LogNotifier reports outcomes to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Success(msg string) {
	n.Logger.Info(msg)
}

func (n LogNotifier) Failure(msg string, err error) {
	n.Logger.Error(msg, "err", err)
}

// notify calls fn with the mirror outside of any lock.
func notify(fn func(Mirror), m Mirror) {
	if fn != nil {
		fn(m.Clone())
	}
}
