package realtime

import (
	"errors"
	"fmt"

	"treebio-api/internal/models"
)

// EventKind discriminates what changed.
type EventKind string

const (
	ProfileUpdated    EventKind = "profile-updated"
	LinkAdded         EventKind = "link-added"
	LinkUpdated       EventKind = "link-updated"
	LinkDeleted       EventKind = "link-deleted"
	SocialLinkAdded   EventKind = "social-link-added"
	SocialLinkUpdated EventKind = "social-link-updated"
	SocialLinkDeleted EventKind = "social-link-deleted"
	LinkClicked       EventKind = "link-clicked"
	ProfileViewed     EventKind = "profile-viewed"
)

// Kinds lists every event kind.
var Kinds = []EventKind{
	ProfileUpdated,
	LinkAdded, LinkUpdated, LinkDeleted,
	SocialLinkAdded, SocialLinkUpdated, SocialLinkDeleted,
	LinkClicked, ProfileViewed,
}

// ErrMalformedEvent is returned for unknown kinds or payloads missing the
// fields their kind requires.
var ErrMalformedEvent = errors.New("malformed event")

// Payload carries the fields of one event; which are set depends on the kind.
type Payload struct {
	Profile      *models.Profile    `json:"profile,omitempty" msgpack:"profile,omitempty"`
	Link         *models.Link       `json:"link,omitempty" msgpack:"link,omitempty"`
	SocialLink   *models.SocialLink `json:"socialLink,omitempty" msgpack:"socialLink,omitempty"`
	LinkID       string             `json:"linkId,omitempty" msgpack:"linkId,omitempty"`
	SocialLinkID string             `json:"socialLinkId,omitempty" msgpack:"socialLinkId,omitempty"`
	ProfileID    string             `json:"profileId,omitempty" msgpack:"profileId,omitempty"`
	ViewCount    int64              `json:"viewCount,omitempty" msgpack:"viewCount,omitempty"`
	ClickCount   int64              `json:"clickCount,omitempty" msgpack:"clickCount,omitempty"`
}

// Event is a transient change notification. Events are never persisted.
type Event struct {
	Kind    EventKind `json:"kind" msgpack:"kind"`
	Payload Payload   `json:"payload" msgpack:"payload"`
}

// Validate checks the payload against the shape its kind requires.
func (e Event) Validate() error {
	p := e.Payload
	ok := false
	switch e.Kind {
	case ProfileUpdated:
		ok = p.Profile != nil && p.Profile.ID != ""
	case LinkAdded, LinkUpdated:
		ok = p.Link != nil && p.Link.ID != ""
	case LinkDeleted:
		ok = p.LinkID != ""
	case SocialLinkAdded, SocialLinkUpdated:
		ok = p.SocialLink != nil && p.SocialLink.ID != ""
	case SocialLinkDeleted:
		ok = p.SocialLinkID != ""
	case LinkClicked:
		ok = p.LinkID != "" || (p.Link != nil && p.Link.ID != "")
	case ProfileViewed:
		ok = p.ProfileID != ""
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, e.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: %s payload is incomplete", ErrMalformedEvent, e.Kind)
	}
	return nil
}

// Frame types exchanged over the push websocket.
const (
	FrameConnected   = "connected"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSubscribed  = "subscribed"
	FrameEvent       = "event"
	FrameError       = "error"
)

// Frame is one websocket message in either direction.
type Frame struct {
	Type     string `json:"type"`
	Channel  string `json:"channel,omitempty"`
	SocketID string `json:"socketId,omitempty"`
	Event    *Event `json:"event,omitempty"`
	Error    string `json:"error,omitempty"`
}
