package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"treebio-api/internal/models"
	"treebio-api/internal/realtime"
)

// fakeData is an in-memory DataAccess. When emit is set it plays the server:
// every successful mutation is echoed as an event.
type fakeData struct {
	mu      sync.Mutex
	profile models.Profile
	err     error
	gate    chan struct{}
	calls   int
	emit    func(realtime.Event)
}

func newFakeData(userID string) *fakeData {
	return &fakeData{profile: models.Profile{ID: "P1", UserID: userID, IsPublic: true}}
}

func (d *fakeData) begin() error {
	d.mu.Lock()
	d.calls++
	err := d.err
	d.mu.Unlock()
	return err
}

func (d *fakeData) echo(kind realtime.EventKind, p realtime.Payload) {
	if d.emit != nil {
		d.emit(realtime.Event{Kind: kind, Payload: p})
	}
}

func (d *fakeData) GetProfile(ctx context.Context) (*models.Profile, error) {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := d.begin(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.profile
	p.Links = append([]models.Link(nil), d.profile.Links...)
	p.SocialLinks = append([]models.SocialLink(nil), d.profile.SocialLinks...)
	return &p, nil
}

func (d *fakeData) UpdateProfile(_ context.Context, upd ProfileUpdate) (*models.Profile, error) {
	if err := d.begin(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	applyProfileUpdate(&d.profile, upd)
	p := *bareProfile(&d.profile)
	d.mu.Unlock()
	d.echo(realtime.ProfileUpdated, realtime.Payload{Profile: &p})
	return &p, nil
}

func (d *fakeData) CreateLink(_ context.Context, in LinkFields) (*models.Link, error) {
	if err := d.begin(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	l := models.Link{
		ID:        "srv-" + uuid.NewString(),
		ProfileID: d.profile.ID,
		Title:     in.Title,
		URL:       in.URL,
		IsActive:  true,
		IsVisible: boolOr(in.IsVisible, true),
		SortOrder: len(d.profile.Links),
	}
	d.profile.Links = append(d.profile.Links, l)
	d.mu.Unlock()
	d.echo(realtime.LinkAdded, realtime.Payload{Link: &l})
	return &l, nil
}

func (d *fakeData) UpdateLink(_ context.Context, link models.Link) (*models.Link, error) {
	if err := d.begin(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	var ok bool
	d.profile.Links, ok = replaceByID(d.profile.Links, link, linkID)
	d.mu.Unlock()
	if !ok {
		return nil, &APIError{Status: 404, Message: "not found"}
	}
	d.echo(realtime.LinkUpdated, realtime.Payload{Link: &link})
	return &link, nil
}

func (d *fakeData) DeleteLink(_ context.Context, id string) error {
	if err := d.begin(); err != nil {
		return err
	}
	d.mu.Lock()
	d.profile.Links = removeByID(d.profile.Links, id, linkID)
	d.mu.Unlock()
	d.echo(realtime.LinkDeleted, realtime.Payload{LinkID: id})
	return nil
}

func (d *fakeData) CreateSocialLink(_ context.Context, in SocialLinkFields) (*models.SocialLink, error) {
	if err := d.begin(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	sl := models.SocialLink{ID: "srv-" + uuid.NewString(), ProfileID: d.profile.ID, Platform: in.Platform, URL: in.URL, IsVisible: true}
	d.profile.SocialLinks = append(d.profile.SocialLinks, sl)
	d.mu.Unlock()
	d.echo(realtime.SocialLinkAdded, realtime.Payload{SocialLink: &sl})
	return &sl, nil
}

func (d *fakeData) UpdateSocialLink(_ context.Context, sl models.SocialLink) (*models.SocialLink, error) {
	if err := d.begin(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.profile.SocialLinks, _ = replaceByID(d.profile.SocialLinks, sl, socialID)
	d.mu.Unlock()
	d.echo(realtime.SocialLinkUpdated, realtime.Payload{SocialLink: &sl})
	return &sl, nil
}

func (d *fakeData) DeleteSocialLink(_ context.Context, id string) error {
	if err := d.begin(); err != nil {
		return err
	}
	d.mu.Lock()
	d.profile.SocialLinks = removeByID(d.profile.SocialLinks, id, socialID)
	d.mu.Unlock()
	d.echo(realtime.SocialLinkDeleted, realtime.Payload{SocialLinkID: id})
	return nil
}

func (d *fakeData) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// fakeTransport hands the bound listener to the test, which drives it.
type fakeTransport struct {
	mu     sync.Mutex
	l      Listener
	subs   map[string]bool
	opened int
	closed int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subs: make(map[string]bool)}
}

func (t *fakeTransport) Open(_ context.Context, _ string, l Listener) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.l = l
	t.opened++
	return nil
}

func (t *fakeTransport) Subscribe(channel string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs[channel] = true
	return nil
}

func (t *fakeTransport) Unsubscribe(channel string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, channel)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.l = nil
	t.closed++
	return nil
}

func (t *fakeTransport) listener() Listener {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.l
}

func (t *fakeTransport) subscribed(channel string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subs[channel]
}

// recordingNotifier collects notifications.
type recordingNotifier struct {
	mu       sync.Mutex
	success  []string
	failures []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.success = append(n.success, msg)
}

func (n *recordingNotifier) Failure(msg string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, msg)
}

func (n *recordingNotifier) failed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.failures...)
}

var errPersist = errors.New("database unavailable")
