package client

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"treebio-api/internal/models"
	"treebio-api/internal/realtime"
)

// Mirror is a session's local copy of one profile, its links and its social
// links. Values are never shared with another mirror; Reduce returns a new one.
type Mirror struct {
	Profile     *models.Profile
	Links       []models.Link
	SocialLinks []models.SocialLink
}

// FromProfile splits a fetched profile into a mirror.
func FromProfile(p *models.Profile) Mirror {
	if p == nil {
		return Mirror{}
	}
	return Mirror{
		Profile:     bareProfile(p),
		Links:       slices.Clone(p.Links),
		SocialLinks: slices.Clone(p.SocialLinks),
	}
}

// Clone returns a deep enough copy for callers to modify freely.
func (m Mirror) Clone() Mirror {
	out := Mirror{
		Links:       slices.Clone(m.Links),
		SocialLinks: slices.Clone(m.SocialLinks),
	}
	if m.Profile != nil {
		out.Profile = bareProfile(m.Profile)
	}
	return out
}

// bareProfile copies p without its nested collections, which the mirror
// keeps separately.
func bareProfile(p *models.Profile) *models.Profile {
	cp := *p
	cp.Links = nil
	cp.SocialLinks = nil
	return &cp
}

func linkID(l models.Link) string         { return l.ID }
func socialID(s models.SocialLink) string { return s.ID }

// upsertByID appends item, or replaces it in place when its id is already
// present.
func upsertByID[T any](items []T, item T, id func(T) string) []T {
	if _, i, ok := lo.FindIndexOf(items, func(x T) bool { return id(x) == id(item) }); ok {
		out := slices.Clone(items)
		out[i] = item
		return out
	}
	return append(slices.Clone(items), item)
}

// replaceByID swaps in item for the entry with the same id. Absent ids leave
// items untouched.
func replaceByID[T any](items []T, item T, id func(T) string) ([]T, bool) {
	_, i, ok := lo.FindIndexOf(items, func(x T) bool { return id(x) == id(item) })
	if !ok {
		return items, false
	}
	out := slices.Clone(items)
	out[i] = item
	return out, true
}

// removeByID drops the entry with the target id; absent ids return items
// as they were.
func removeByID[T any](items []T, target string, id func(T) string) []T {
	match := func(x T) bool { return id(x) == target }
	if !lo.ContainsBy(items, match) {
		return items
	}
	return lo.Reject(items, func(x T, _ int) bool { return match(x) })
}

func insertAt[T any](items []T, i int, item T) []T {
	i = min(max(i, 0), len(items))
	return slices.Insert(slices.Clone(items), i, item)
}

// Reduce applies one event to m and returns the resulting mirror. m itself is
// never modified. A malformed event leaves the mirror as it was and returns an
// error wrapping realtime.ErrMalformedEvent.
func Reduce(m Mirror, evt realtime.Event) (Mirror, error) {
	if err := evt.Validate(); err != nil {
		return m, err
	}
	p := evt.Payload
	out := m

	switch evt.Kind {
	case realtime.ProfileUpdated:
		out.Profile = bareProfile(p.Profile)
	case realtime.LinkAdded:
		out.Links = upsertByID(m.Links, *p.Link, linkID)
	case realtime.LinkUpdated:
		out.Links, _ = replaceByID(m.Links, *p.Link, linkID)
	case realtime.LinkDeleted:
		out.Links = removeByID(m.Links, p.LinkID, linkID)
	case realtime.SocialLinkAdded:
		out.SocialLinks = upsertByID(m.SocialLinks, *p.SocialLink, socialID)
	case realtime.SocialLinkUpdated:
		out.SocialLinks, _ = replaceByID(m.SocialLinks, *p.SocialLink, socialID)
	case realtime.SocialLinkDeleted:
		out.SocialLinks = removeByID(m.SocialLinks, p.SocialLinkID, socialID)
	case realtime.LinkClicked:
		out = applyClick(m, p)
	case realtime.ProfileViewed:
		if m.Profile != nil && m.Profile.ID == p.ProfileID {
			out.Profile = bareProfile(m.Profile)
			out.Profile.ProfileViewCount = p.ViewCount
		}
	default:
		return m, fmt.Errorf("%w: unhandled kind %q", realtime.ErrMalformedEvent, evt.Kind)
	}
	return out, nil
}

// applyClick refreshes the clicked link's counter and, when the event
// carries it, the profile's aggregate click count.
func applyClick(m Mirror, p realtime.Payload) Mirror {
	out := m
	id := p.LinkID
	if id == "" {
		id = p.Link.ID
	}
	if existing, i, ok := lo.FindIndexOf(m.Links, func(l models.Link) bool { return l.ID == id }); ok {
		if p.Link != nil {
			existing.ClickCount = p.Link.ClickCount
			existing.LastClickAt = p.Link.LastClickAt
		} else {
			existing.ClickCount++
		}
		out.Links = slices.Clone(m.Links)
		out.Links[i] = existing
	}
	if m.Profile != nil && p.ClickCount > 0 {
		out.Profile = bareProfile(m.Profile)
		out.Profile.LinkClicks = p.ClickCount
	}
	return out
}
