package client

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"treebio-api/internal/models"
)

// fallbackSync is used when no push backend is configured. While started it
// counts as connected and applies every mutation to the mirror immediately, with a
// locally generated id for new entities. With a DataAccess the change is
// also persisted: the local entity is then swapped for the stored one, or
// rolled back when persisting fails.
type fallbackSync struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	gen      uint64
	started  bool
	identity Identity
	mirror   Mirror
}

func newFallbackSync(opts Options) *fallbackSync {
	return &fallbackSync{opts: opts, logger: opts.Logger.With("variant", "fallback")}
}

func (s *fallbackSync) Start(ctx context.Context, id Identity) error {
	s.mu.Lock()
	s.gen++
	s.started = true
	s.identity = id
	s.mirror = Mirror{Profile: &models.Profile{UserID: id.UserID, IsPublic: true}}
	m := s.mirror
	s.mu.Unlock()
	s.logger.Info("local sync started", "userId", id.UserID)

	if s.opts.Data != nil {
		return s.RefreshData(ctx)
	}
	notify(s.opts.OnChange, m)
	return nil
}

func (s *fallbackSync) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.started = false
	s.identity = Identity{}
	s.mirror = Mirror{}
}

// State is Subscribed for as long as the session is started; there is no
// connection to wait for.
func (s *fallbackSync) State() State {
	if s.active() {
		return Subscribed
	}
	return Unsubscribed
}

func (s *fallbackSync) IsConnected() bool { return s.active() }

func (s *fallbackSync) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *fallbackSync) Snapshot() Mirror {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror.Clone()
}

func (s *fallbackSync) Profile() *models.Profile        { return s.Snapshot().Profile }
func (s *fallbackSync) Links() []models.Link            { return s.Snapshot().Links }
func (s *fallbackSync) SocialLinks() []models.SocialLink { return s.Snapshot().SocialLinks }

func (s *fallbackSync) RefreshData(ctx context.Context) error {
	s.mu.Lock()
	gen, started := s.gen, s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	if s.opts.Data == nil {
		return nil
	}

	p, err := s.opts.Data.GetProfile(ctx)
	if err != nil {
		s.opts.Notifier.Failure("Failed to refresh data", err)
		return err
	}
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	s.mirror = FromProfile(p)
	m := s.mirror
	s.mu.Unlock()
	notify(s.opts.OnChange, m)
	return nil
}

// commit stores fn's change to the mirror and reports it. A stopped session
// is left untouched.
func (s *fallbackSync) commit(fn func(m *Mirror)) (uint64, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return 0, ErrNotStarted
	}
	fn(&s.mirror)
	gen, m := s.gen, s.mirror
	s.mu.Unlock()
	notify(s.opts.OnChange, m)
	return gen, nil
}

// settle applies the persistence outcome unless the session moved on.
func (s *fallbackSync) settle(gen uint64, fn func(m *Mirror)) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	fn(&s.mirror)
	m := s.mirror
	s.mu.Unlock()
	notify(s.opts.OnChange, m)
}

func (s *fallbackSync) report(err error, ok, failed string) error {
	if err != nil {
		s.opts.Notifier.Failure(failed, err)
		return err
	}
	s.opts.Notifier.Success(ok)
	return nil
}

func (s *fallbackSync) UpdateProfile(ctx context.Context, upd ProfileUpdate) error {
	var prev, next *models.Profile
	gen, err := s.commit(func(m *Mirror) {
		prev = m.Profile
		if prev == nil {
			prev = &models.Profile{UserID: s.identity.UserID}
		}
		next = bareProfile(prev)
		applyProfileUpdate(next, upd)
		m.Profile = next
	})
	if err != nil {
		return err
	}
	if s.opts.Data == nil {
		return s.report(nil, "Profile updated!", "")
	}

	saved, err := s.opts.Data.UpdateProfile(ctx, upd)
	s.settle(gen, func(m *Mirror) {
		switch {
		case err == nil:
			m.Profile = bareProfile(saved)
		case m.Profile == next:
			m.Profile = prev
		}
	})
	return s.report(err, "Profile updated!", "Failed to update profile")
}

func applyProfileUpdate(p *models.Profile, upd ProfileUpdate) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.FirstName, upd.FirstName)
	set(&p.LastName, upd.LastName)
	set(&p.DisplayName, upd.DisplayName)
	set(&p.Bio, upd.Bio)
	set(&p.Title, upd.Title)
	set(&p.Location, upd.Location)
	set(&p.Website, upd.Website)
	set(&p.Avatar, upd.Avatar)
	set(&p.ImageURL, upd.ImageURL)
	if upd.Username != nil {
		if u := strings.ToLower(strings.TrimSpace(*upd.Username)); u != "" {
			p.Username = &u
		} else {
			p.Username = nil
		}
	}
	if upd.IsPublic != nil {
		p.IsPublic = *upd.IsPublic
	}
}

// list selects one entity collection of a mirror.
type list[T any] struct {
	of func(m *Mirror) *[]T
	id func(T) string
}

var (
	linkList   = list[models.Link]{of: func(m *Mirror) *[]models.Link { return &m.Links }, id: linkID}
	socialList = list[models.SocialLink]{of: func(m *Mirror) *[]models.SocialLink { return &m.SocialLinks }, id: socialID}
)

func addEntity[T any](ctx context.Context, s *fallbackSync, l list[T], local T, persist func(context.Context) (*T, error), ok, failed string) error {
	gen, err := s.commit(func(m *Mirror) {
		*l.of(m) = upsertByID(*l.of(m), local, l.id)
	})
	if err != nil {
		return err
	}
	if persist == nil {
		return s.report(nil, ok, failed)
	}

	saved, err := persist(ctx)
	s.settle(gen, func(m *Mirror) {
		items := *l.of(m)
		if err != nil {
			*l.of(m) = removeByID(items, l.id(local), l.id)
			return
		}
		if _, i, found := lo.FindIndexOf(items, func(x T) bool { return l.id(x) == l.id(local) }); found {
			items = slices.Clone(items)
			items[i] = *saved
			*l.of(m) = items
		}
	})
	return s.report(err, ok, failed)
}

func updateEntity[T any](ctx context.Context, s *fallbackSync, l list[T], item T, persist func(context.Context) (*T, error), ok, failed string) error {
	var prev T
	var existed bool
	gen, err := s.commit(func(m *Mirror) {
		prev, _, existed = lo.FindIndexOf(*l.of(m), func(x T) bool { return l.id(x) == l.id(item) })
		*l.of(m), _ = replaceByID(*l.of(m), item, l.id)
	})
	if err != nil {
		return err
	}
	if persist == nil {
		return s.report(nil, ok, failed)
	}

	saved, err := persist(ctx)
	s.settle(gen, func(m *Mirror) {
		switch {
		case err == nil:
			*l.of(m), _ = replaceByID(*l.of(m), *saved, l.id)
		case existed:
			*l.of(m), _ = replaceByID(*l.of(m), prev, l.id)
		}
	})
	return s.report(err, ok, failed)
}

func deleteEntity[T any](ctx context.Context, s *fallbackSync, l list[T], id string, persist func(context.Context) error, ok, failed string) error {
	var prev T
	var idx int
	var existed bool
	gen, err := s.commit(func(m *Mirror) {
		prev, idx, existed = lo.FindIndexOf(*l.of(m), func(x T) bool { return l.id(x) == id })
		*l.of(m) = removeByID(*l.of(m), id, l.id)
	})
	if err != nil {
		return err
	}
	if persist == nil {
		return s.report(nil, ok, failed)
	}

	err = persist(ctx)
	s.settle(gen, func(m *Mirror) {
		if err != nil && existed {
			items := removeByID(*l.of(m), id, l.id)
			*l.of(m) = insertAt(items, idx, prev)
		}
	})
	return s.report(err, ok, failed)
}

func nextSortOrder[T any](items []T, order func(T) int) int {
	if len(items) == 0 {
		return 0
	}
	return lo.Max(lo.Map(items, func(x T, _ int) int { return order(x) })) + 1
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (s *fallbackSync) AddLink(ctx context.Context, in LinkFields) error {
	if !s.active() {
		return ErrNotStarted
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.URL) == "" {
		err := errors.New("title and url are required")
		s.opts.Notifier.Failure("Failed to add link", err)
		return err
	}
	snap := s.Snapshot()
	now := time.Now()
	local := models.Link{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		URL:         in.URL,
		Description: in.Description,
		IsActive:    boolOr(in.IsActive, true),
		IsVisible:   boolOr(in.IsVisible, true),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.SortOrder != nil {
		local.SortOrder = *in.SortOrder
	} else {
		local.SortOrder = nextSortOrder(snap.Links, func(l models.Link) int { return l.SortOrder })
	}
	if snap.Profile != nil {
		local.ProfileID = snap.Profile.ID
	}

	var persist func(context.Context) (*models.Link, error)
	if s.opts.Data != nil {
		persist = func(ctx context.Context) (*models.Link, error) { return s.opts.Data.CreateLink(ctx, in) }
	}
	return addEntity(ctx, s, linkList, local, persist, "Link added!", "Failed to add link")
}

func (s *fallbackSync) UpdateLink(ctx context.Context, link models.Link) error {
	link.UpdatedAt = time.Now()
	var persist func(context.Context) (*models.Link, error)
	if s.opts.Data != nil {
		persist = func(ctx context.Context) (*models.Link, error) { return s.opts.Data.UpdateLink(ctx, link) }
	}
	return updateEntity(ctx, s, linkList, link, persist, "Link updated!", "Failed to update link")
}

func (s *fallbackSync) DeleteLink(ctx context.Context, id string) error {
	var persist func(context.Context) error
	if s.opts.Data != nil {
		persist = func(ctx context.Context) error { return s.opts.Data.DeleteLink(ctx, id) }
	}
	return deleteEntity(ctx, s, linkList, id, persist, "Link removed!", "Failed to delete link")
}

func (s *fallbackSync) AddSocialLink(ctx context.Context, in SocialLinkFields) error {
	if !s.active() {
		return ErrNotStarted
	}
	if strings.TrimSpace(in.Platform) == "" || strings.TrimSpace(in.URL) == "" {
		err := errors.New("platform and url are required")
		s.opts.Notifier.Failure("Failed to add social link", err)
		return err
	}
	snap := s.Snapshot()
	now := time.Now()
	local := models.SocialLink{
		ID:        uuid.NewString(),
		Platform:  strings.ToLower(strings.TrimSpace(in.Platform)),
		URL:       in.URL,
		Username:  strings.TrimSpace(in.Username),
		IsVisible: boolOr(in.IsVisible, true),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.SortOrder != nil {
		local.SortOrder = *in.SortOrder
	} else {
		local.SortOrder = nextSortOrder(snap.SocialLinks, func(sl models.SocialLink) int { return sl.SortOrder })
	}
	if snap.Profile != nil {
		local.ProfileID = snap.Profile.ID
	}

	var persist func(context.Context) (*models.SocialLink, error)
	if s.opts.Data != nil {
		persist = func(ctx context.Context) (*models.SocialLink, error) { return s.opts.Data.CreateSocialLink(ctx, in) }
	}
	return addEntity(ctx, s, socialList, local, persist, "Social link added!", "Failed to add social link")
}

func (s *fallbackSync) UpdateSocialLink(ctx context.Context, sl models.SocialLink) error {
	sl.UpdatedAt = time.Now()
	var persist func(context.Context) (*models.SocialLink, error)
	if s.opts.Data != nil {
		persist = func(ctx context.Context) (*models.SocialLink, error) { return s.opts.Data.UpdateSocialLink(ctx, sl) }
	}
	return updateEntity(ctx, s, socialList, sl, persist, "Social link updated!", "Failed to update social link")
}

func (s *fallbackSync) DeleteSocialLink(ctx context.Context, id string) error {
	var persist func(context.Context) error
	if s.opts.Data != nil {
		persist = func(ctx context.Context) error { return s.opts.Data.DeleteSocialLink(ctx, id) }
	}
	return deleteEntity(ctx, s, socialList, id, persist, "Social link removed!", "Failed to delete social link")
}

var _ Synchronizer = (*fallbackSync)(nil)
