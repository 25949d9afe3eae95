package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"treebio-api/internal/models"
	"treebio-api/internal/realtime"
)

var ErrNotStarted = errors.New("synchronizer not started")

// eventNotices are the notifications shown when another session's change
// arrives. Analytics events are applied silently.
var eventNotices = map[realtime.EventKind]string{
	realtime.ProfileUpdated:    "Profile updated in real-time!",
	realtime.LinkAdded:         "New link added!",
	realtime.LinkUpdated:       "Link updated!",
	realtime.LinkDeleted:       "Link removed!",
	realtime.SocialLinkAdded:   "Social link added!",
	realtime.SocialLinkUpdated: "Social link updated!",
	realtime.SocialLinkDeleted: "Social link removed!",
}

// pushSync mirrors the profile from events on the user's private channel.
// Its mutations only persist; the mirror changes when the echoed event
// arrives, so nothing is applied twice.
type pushSync struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	gen       uint64 // bumped on Start and Stop; stale callbacks compare against it
	seedSeq   uint64 // bumped per initial fetch; only the latest may finish
	state     State
	connected bool
	identity  Identity
	channel   string
	mirror    Mirror
	pending   []realtime.Event
	ctx       context.Context
}

func newPushSync(opts Options) *pushSync {
	return &pushSync{opts: opts, logger: opts.Logger.With("variant", "push")}
}

func (s *pushSync) Start(ctx context.Context, id Identity) error {
	if id.UserID == "" {
		return errors.New("start: identity without user id")
	}
	s.Stop()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = Subscribing
	s.identity = id
	s.channel = realtime.UserChannel(id.UserID)
	s.mirror = Mirror{}
	s.pending = nil
	s.ctx = ctx
	channel := s.channel
	s.mu.Unlock()

	l := &pushListener{s: s, gen: gen}
	if err := s.opts.Transport.Subscribe(channel); err != nil {
		s.Stop()
		return err
	}
	if err := s.opts.Transport.Open(ctx, id.Token, l); err != nil {
		s.Stop()
		return err
	}
	s.logger.Info("subscribing", "channel", channel)
	return nil
}

// Stop unsubscribes and discards the mirror. Callbacks already in flight see
// a newer generation and drop their work.
func (s *pushSync) Stop() {
	s.mu.Lock()
	if s.state == Unsubscribed {
		s.mu.Unlock()
		return
	}
	s.gen++
	channel := s.channel
	s.state = Unsubscribed
	s.connected = false
	s.identity = Identity{}
	s.channel = ""
	s.mirror = Mirror{}
	s.pending = nil
	s.mu.Unlock()

	if err := s.opts.Transport.Unsubscribe(channel); err != nil {
		s.logger.Debug("unsubscribe failed", "channel", channel, "err", err)
	}
	if err := s.opts.Transport.Close(); err != nil {
		s.logger.Debug("transport close failed", "err", err)
	}
	s.logger.Info("unsubscribed", "channel", channel)
}

func (s *pushSync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *pushSync) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *pushSync) Snapshot() Mirror {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror.Clone()
}

func (s *pushSync) Profile() *models.Profile        { return s.Snapshot().Profile }
func (s *pushSync) Links() []models.Link            { return s.Snapshot().Links }
func (s *pushSync) SocialLinks() []models.SocialLink { return s.Snapshot().SocialLinks }

// RefreshData replaces the mirror with a fresh fetch.
func (s *pushSync) RefreshData(ctx context.Context) error {
	s.mu.Lock()
	gen, state := s.gen, s.state
	s.mu.Unlock()
	if state == Unsubscribed {
		return ErrNotStarted
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

// seed runs the initial fetch of a (re)subscription and then replays the
// events that arrived meanwhile.
func (s *pushSync) seed(gen, seq uint64) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	p, err := s.opts.Data.GetProfile(ctx)

	s.mu.Lock()
	if s.gen != gen || s.seedSeq != seq || s.state != Subscribing {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.logger.Warn("initial fetch failed, keeping last mirror", "err", err)
	} else {
		s.mirror = FromProfile(p)
	}
	for _, evt := range s.pending {
		s.applyLocked(evt)
	}
	replayed := len(s.pending)
	s.pending = nil
	s.state = Subscribed
	m := s.mirror
	s.mu.Unlock()

	if err != nil {
		s.opts.Notifier.Failure("Failed to load profile", err)
	}
	s.logger.Info("subscribed", "replayed", replayed)
	notify(s.opts.OnChange, m)
}

func (s *pushSync) applyLocked(evt realtime.Event) bool {
	next, err := Reduce(s.mirror, evt)
	if err != nil {
		s.logger.Warn("skipping event", "kind", evt.Kind, "err", err)
		return false
	}
	s.mirror = next
	return true
}

func (s *pushSync) mutate(ctx context.Context, failure string, call func(ctx context.Context) error) error {
	if s.State() == Unsubscribed {
		return ErrNotStarted
	}
	if err := call(ctx); err != nil {
		s.opts.Notifier.Failure(failure, err)
		return err
	}
	return nil
}

func (s *pushSync) UpdateProfile(ctx context.Context, upd ProfileUpdate) error {
	return s.mutate(ctx, "Failed to update profile", func(ctx context.Context) error {
		_, err := s.opts.Data.UpdateProfile(ctx, upd)
		return err
	})
}

func (s *pushSync) AddLink(ctx context.Context, in LinkFields) error {
	return s.mutate(ctx, "Failed to add link", func(ctx context.Context) error {
		_, err := s.opts.Data.CreateLink(ctx, in)
		return err
	})
}

func (s *pushSync) UpdateLink(ctx context.Context, link models.Link) error {
	return s.mutate(ctx, "Failed to update link", func(ctx context.Context) error {
		_, err := s.opts.Data.UpdateLink(ctx, link)
		return err
	})
}

func (s *pushSync) DeleteLink(ctx context.Context, id string) error {
	return s.mutate(ctx, "Failed to delete link", func(ctx context.Context) error {
		return s.opts.Data.DeleteLink(ctx, id)
	})
}

func (s *pushSync) AddSocialLink(ctx context.Context, in SocialLinkFields) error {
	return s.mutate(ctx, "Failed to add social link", func(ctx context.Context) error {
		_, err := s.opts.Data.CreateSocialLink(ctx, in)
		return err
	})
}

func (s *pushSync) UpdateSocialLink(ctx context.Context, sl models.SocialLink) error {
	return s.mutate(ctx, "Failed to update social link", func(ctx context.Context) error {
		_, err := s.opts.Data.UpdateSocialLink(ctx, sl)
		return err
	})
}

func (s *pushSync) DeleteSocialLink(ctx context.Context, id string) error {
	return s.mutate(ctx, "Failed to delete social link", func(ctx context.Context) error {
		return s.opts.Data.DeleteSocialLink(ctx, id)
	})
}

// pushListener binds transport callbacks to one generation of a pushSync.
type pushListener struct {
	s   *pushSync
	gen uint64
}

func (l *pushListener) Connected() {
	s := l.s
	s.mu.Lock()
	if s.gen != l.gen {
		s.mu.Unlock()
		return
	}
	s.connected = true
	if s.state == Disconnected {
		s.state = Subscribing
		s.pending = nil
	}
	s.mu.Unlock()
}

func (l *pushListener) Disconnected(err error) {
	s := l.s
	s.mu.Lock()
	if s.gen != l.gen {
		s.mu.Unlock()
		return
	}
	s.connected = false
	if s.state == Subscribing || s.state == Subscribed {
		s.state = Disconnected
	}
	s.seedSeq++
	s.mu.Unlock()
	s.logger.Info("disconnected, keeping last mirror", "err", err)
}

func (l *pushListener) Subscribed(channel string) {
	s := l.s
	s.mu.Lock()
	if s.gen != l.gen || channel != s.channel || s.state != Subscribing {
		s.mu.Unlock()
		return
	}
	s.seedSeq++
	seq := s.seedSeq
	s.mu.Unlock()
	go s.seed(l.gen, seq)
}

func (l *pushListener) Rejected(channel, reason string) {
	s := l.s
	s.mu.Lock()
	stale := s.gen != l.gen || channel != s.channel
	s.mu.Unlock()
	if stale {
		return
	}
	s.logger.Error("subscription rejected", "channel", channel, "reason", reason)
	s.opts.Notifier.Failure("Live updates unavailable", errors.New(reason))
}

func (l *pushListener) Event(channel string, evt realtime.Event) {
	s := l.s
	s.mu.Lock()
	if s.gen != l.gen || channel != s.channel {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case Subscribing:
		s.pending = append(s.pending, evt)
		s.mu.Unlock()
		return
	case Unsubscribed:
		s.mu.Unlock()
		return
	}
	applied := s.applyLocked(evt)
	m := s.mirror
	s.mu.Unlock()

	if !applied {
		return
	}
	if msg, ok := eventNotices[evt.Kind]; ok {
		s.opts.Notifier.Success(msg)
	}
	notify(s.opts.OnChange, m)
}

var _ Synchronizer = (*pushSync)(nil)
