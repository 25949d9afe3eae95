package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treebio-api/internal/models"
	"treebio-api/internal/realtime"
)

const waitFor = 2 * time.Second

type pushFixture struct {
	sync    Synchronizer
	data    *fakeData
	tr      *fakeTransport
	notes   *recordingNotifier
	l       Listener
	channel string
}

func startPush(t *testing.T, data *fakeData) *pushFixture {
	t.Helper()
	f := &pushFixture{data: data, tr: newFakeTransport(), notes: &recordingNotifier{}, channel: realtime.UserChannel("u1")}
	f.sync = New(Options{PushEnabled: true, Transport: f.tr, Data: data, Notifier: f.notes})
	require.IsType(t, &pushSync{}, f.sync)
	require.NoError(t, f.sync.Start(context.Background(), Identity{UserID: "u1", Token: "tok"}))
	t.Cleanup(f.sync.Stop)

	f.l = f.tr.listener()
	require.NotNil(t, f.l)
	require.True(t, f.tr.subscribed(f.channel))
	require.Equal(t, Subscribing, f.sync.State())
	return f
}

// subscribe completes the handshake and waits for the initial fetch.
func (f *pushFixture) subscribe(t *testing.T) {
	t.Helper()
	f.l.Connected()
	f.l.Subscribed(f.channel)
	require.Eventually(t, func() bool { return f.sync.State() == Subscribed }, waitFor, 5*time.Millisecond)
}

func (f *pushFixture) echo() {
	f.data.emit = func(evt realtime.Event) { f.l.Event(f.channel, evt) }
}

func linkEvent(kind realtime.EventKind, l models.Link) realtime.Event {
	return realtime.Event{Kind: kind, Payload: realtime.Payload{Link: &l}}
}

func TestPush_BuffersEventsUntilInitialFetch(t *testing.T) {
	data := newFakeData("u1")
	data.profile.Links = []models.Link{testLink("L1", "Docs")}
	data.gate = make(chan struct{})
	f := startPush(t, data)

	f.l.Connected()
	require.True(t, f.sync.IsConnected())
	f.l.Subscribed(f.channel)

	f.l.Event(f.channel, linkEvent(realtime.LinkAdded, testLink("L2", "Blog")))
	f.l.Event(f.channel, linkEvent(realtime.LinkAdded, testLink("L1", "Docs")))
	require.Equal(t, Subscribing, f.sync.State())
	require.Empty(t, f.sync.Links())

	close(data.gate)
	require.Eventually(t, func() bool { return f.sync.State() == Subscribed }, waitFor, 5*time.Millisecond)

	links := f.sync.Links()
	require.Len(t, links, 2)
	assert.Equal(t, "L1", links[0].ID)
	assert.Equal(t, "L2", links[1].ID)
	assert.Empty(t, f.notes.failed())
}

func TestPush_MutationsApplyOnlyWhenEchoed(t *testing.T) {
	f := startPush(t, newFakeData("u1"))
	f.subscribe(t)
	ctx := context.Background()

	require.NoError(t, f.sync.AddLink(ctx, LinkFields{Title: "Docs", URL: "https://docs.example.com"}))
	require.Equal(t, 2, f.data.callCount())
	require.Empty(t, f.sync.Links())

	f.echo()
	require.NoError(t, f.sync.AddLink(ctx, LinkFields{Title: "Blog", URL: "https://blog.example.com"}))
	links := f.sync.Links()
	require.Len(t, links, 1)
	assert.Equal(t, "Blog", links[0].Title)

	require.NoError(t, f.sync.UpdateProfile(ctx, ProfileUpdate{Bio: ptr("x")}))
	assert.Equal(t, "x", f.sync.Profile().Bio)

	f.notes.mu.Lock()
	assert.Equal(t, []string{"New link added!", "Profile updated in real-time!"}, f.notes.success)
	f.notes.mu.Unlock()
}

func TestPush_AddThenDeleteRestoresLinks(t *testing.T) {
	data := newFakeData("u1")
	data.profile.Links = []models.Link{testLink("L1", "Docs")}
	f := startPush(t, data)
	f.subscribe(t)
	f.echo()
	ctx := context.Background()
	before := f.sync.Links()

	require.NoError(t, f.sync.AddLink(ctx, LinkFields{Title: "Temp", URL: "https://temp.example.com"}))
	added := f.sync.Links()
	require.Len(t, added, 2)
	require.NoError(t, f.sync.DeleteLink(ctx, added[1].ID))

	require.Equal(t, before, f.sync.Links())
}

func TestPush_PersistFailureNotifiesAndKeepsMirror(t *testing.T) {
	f := startPush(t, newFakeData("u1"))
	f.subscribe(t)
	f.echo()
	f.data.mu.Lock()
	f.data.err = errPersist
	f.data.mu.Unlock()

	require.ErrorIs(t, f.sync.AddSocialLink(context.Background(), SocialLinkFields{Platform: "github", URL: "https://github.com/u1"}), errPersist)
	require.Empty(t, f.sync.SocialLinks())
	require.Equal(t, []string{"Failed to add social link"}, f.notes.failed())
}

func TestPush_DisconnectKeepsMirrorAndReconnectRefetches(t *testing.T) {
	data := newFakeData("u1")
	data.profile.Links = []models.Link{testLink("L1", "Docs")}
	f := startPush(t, data)
	f.subscribe(t)
	require.True(t, f.sync.IsConnected())

	f.l.Disconnected(errors.New("connection reset"))
	require.False(t, f.sync.IsConnected())
	require.Equal(t, Disconnected, f.sync.State())
	require.Len(t, f.sync.Links(), 1)

	// Changes made while offline are only seen through the refetch.
	data.mu.Lock()
	data.profile.Links = append(data.profile.Links, testLink("L2", "Blog"))
	data.mu.Unlock()

	f.l.Connected()
	require.True(t, f.sync.IsConnected())
	require.Equal(t, Subscribing, f.sync.State())
	f.l.Subscribed(f.channel)
	require.Eventually(t, func() bool { return f.sync.State() == Subscribed }, waitFor, 5*time.Millisecond)
	require.Len(t, f.sync.Links(), 2)
}

func TestPush_StopDropsLateCallbacks(t *testing.T) {
	f := startPush(t, newFakeData("u1"))
	f.subscribe(t)
	old := f.l

	f.sync.Stop()
	require.Equal(t, Unsubscribed, f.sync.State())
	require.False(t, f.sync.IsConnected())
	require.False(t, f.tr.subscribed(f.channel))
	require.Equal(t, 1, f.tr.closed)

	old.Event(f.channel, linkEvent(realtime.LinkAdded, testLink("L9", "Late")))
	require.Empty(t, f.sync.Links())
	require.ErrorIs(t, f.sync.AddLink(context.Background(), LinkFields{Title: "x", URL: "https://x.example.com"}), ErrNotStarted)
	require.ErrorIs(t, f.sync.RefreshData(context.Background()), ErrNotStarted)

	require.NoError(t, f.sync.Start(context.Background(), Identity{UserID: "u1", Token: "tok"}))
	f.l = f.tr.listener()
	f.subscribe(t)

	old.Event(f.channel, linkEvent(realtime.LinkAdded, testLink("L9", "Late")))
	old.Connected()
	require.Empty(t, f.sync.Links())
}

func TestPush_IgnoresOtherChannelsAndMalformedEvents(t *testing.T) {
	data := newFakeData("u1")
	data.profile.Links = []models.Link{testLink("L1", "Docs")}
	f := startPush(t, data)
	f.subscribe(t)
	before := f.sync.Snapshot()

	f.l.Event(realtime.UserChannel("u2"), linkEvent(realtime.LinkAdded, testLink("L2", "Other")))
	f.l.Event(f.channel, realtime.Event{Kind: realtime.LinkUpdated})
	f.l.Event(f.channel, realtime.Event{Kind: "link-teleported"})

	require.Equal(t, before, f.sync.Snapshot())
	f.notes.mu.Lock()
	assert.Empty(t, f.notes.success)
	f.notes.mu.Unlock()
}

func TestPush_AnalyticsEventsApplySilently(t *testing.T) {
	data := newFakeData("u1")
	data.profile.Links = []models.Link{testLink("L1", "Docs")}
	f := startPush(t, data)
	f.subscribe(t)

	f.l.Event(f.channel, realtime.Event{Kind: realtime.LinkClicked, Payload: realtime.Payload{LinkID: "L1", ClickCount: 3}})
	f.l.Event(f.channel, realtime.Event{Kind: realtime.ProfileViewed, Payload: realtime.Payload{ProfileID: "P1", ViewCount: 12}})

	assert.EqualValues(t, 1, f.sync.Links()[0].ClickCount)
	assert.EqualValues(t, 3, f.sync.Profile().LinkClicks)
	assert.EqualValues(t, 12, f.sync.Profile().ProfileViewCount)
	f.notes.mu.Lock()
	assert.Empty(t, f.notes.success)
	f.notes.mu.Unlock()
}

func TestPush_RejectedSubscriptionNotifies(t *testing.T) {
	f := startPush(t, newFakeData("u1"))
	f.l.Connected()
	f.l.Rejected(realtime.UserChannel("u2"), "forbidden")
	require.Empty(t, f.notes.failed())

	f.l.Rejected(f.channel, "forbidden")
	require.Equal(t, []string{"Live updates unavailable"}, f.notes.failed())
}

func TestPush_StartRequiresUser(t *testing.T) {
	s := New(Options{PushEnabled: true, Transport: newFakeTransport(), Data: newFakeData("u1")})
	require.Error(t, s.Start(context.Background(), Identity{}))
	require.Equal(t, Unsubscribed, s.State())
}
