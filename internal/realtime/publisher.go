package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"treebio-api/internal/logging"
)

// Backend delivers an event to every current subscriber of a channel.
type Backend interface {
	Trigger(ctx context.Context, channel string, evt Event) error
}

// HealthReporter is implemented by backends that can lose their delivery
// path at runtime, such as the Redis relay.
type HealthReporter interface {
	Healthy() bool
}

// Status of one publish attempt.
type Status int

const (
	// Delivered means the backend accepted the event.
	Delivered Status = iota
	// Degraded means no backend is configured; nothing was sent.
	Degraded
	// Failed means the backend or the input rejected the event.
	Failed
)

func (s Status) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Degraded:
		return "degraded"
	default:
		return "failed"
	}
}

// Outcome reports what happened to a publish. It is informational only:
// the mutation that triggered the publish is already committed.
type Outcome struct {
	Status Status
	Err    error
}

var errBackendPanic = errors.New("push backend panicked")

// Publisher is the server-side entry point for realtime events. Publishing
// is best effort: it never blocks on a missing backend and never returns an
// error to the mutation path.
type Publisher struct {
	backend Backend
	logger  *slog.Logger
}

// NewPublisher wraps a backend. A nil backend means push is unconfigured.
func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend, logger: logging.Sub("publisher")}
}

// Configured reports whether a push backend is present.
func (p *Publisher) Configured() bool {
	return p != nil && p.backend != nil
}

// Healthy reports whether a configured backend can currently deliver to
// this instance's sockets.
func (p *Publisher) Healthy() bool {
	if !p.Configured() {
		return false
	}
	if hr, ok := p.backend.(HealthReporter); ok {
		return hr.Healthy()
	}
	return true
}

// Publish sends one event on one channel.
func (p *Publisher) Publish(ctx context.Context, channel string, kind EventKind, payload Payload) Outcome {
	evt := Event{Kind: kind, Payload: payload}
	if _, _, ok := ParseChannel(channel); !ok {
		err := fmt.Errorf("invalid channel %q", channel)
		p.logger.Error("publish rejected", "channel", channel, "kind", kind, "err", err)
		return Outcome{Status: Failed, Err: err}
	}
	if err := evt.Validate(); err != nil {
		p.logger.Error("publish rejected", "channel", channel, "kind", kind, "err", err)
		return Outcome{Status: Failed, Err: err}
	}
	if !p.Configured() {
		p.logger.Info("push backend not configured, event not sent", "channel", channel, "kind", kind)
		return Outcome{Status: Degraded}
	}

	if err := p.trigger(ctx, channel, evt); err != nil {
		p.logger.Error("failed to trigger realtime event", "channel", channel, "kind", kind, "err", err)
		return Outcome{Status: Failed, Err: err}
	}
	p.logger.Debug("event published", "channel", channel, "kind", kind)
	return Outcome{Status: Delivered}
}

// PublishAll publishes the same event on several channels, skipping empty names.
func (p *Publisher) PublishAll(ctx context.Context, channels []string, kind EventKind, payload Payload) []Outcome {
	out := make([]Outcome, 0, len(channels))
	for _, ch := range channels {
		if ch == "" {
			continue
		}
		out = append(out, p.Publish(ctx, ch, kind, payload))
	}
	return out
}

func (p *Publisher) trigger(ctx context.Context, channel string, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errBackendPanic, r)
		}
	}()
	return p.backend.Trigger(ctx, channel, evt)
}

// HubBackend delivers events to websocket clients connected to this process.
type HubBackend struct {
	hub *Hub
}

func NewHubBackend(hub *Hub) *HubBackend {
	return &HubBackend{hub: hub}
}

func (b *HubBackend) Trigger(_ context.Context, channel string, evt Event) error {
	msg, err := EncodeEventFrame(channel, evt)
	if err != nil {
		return err
	}
	b.hub.Broadcast(channel, msg)
	return nil
}

// EncodeEventFrame renders the websocket frame for an event.
func EncodeEventFrame(channel string, evt Event) ([]byte, error) {
	msg, err := json.Marshal(Frame{Type: FrameEvent, Channel: channel, Event: &evt})
	if err != nil {
		return nil, fmt.Errorf("encode event frame: %w", err)
	}
	return msg, nil
}
