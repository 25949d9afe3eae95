package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"treebio-api/internal/logging"
	"treebio-api/internal/realtime"
)

// Listener receives connection signals and channel traffic. Calls come from
// one goroutine per connection, in the order the server sent them.
type Listener interface {
	Connected()
	Disconnected(err error)
	Subscribed(channel string)
	Rejected(channel, reason string)
	Event(channel string, evt realtime.Event)
}

// Transport is a push connection that reconnects on its own and replays
// its subscriptions after every reconnect.
type Transport interface {
	// Open starts (or restarts) the connection loop for token.
	Open(ctx context.Context, token string, l Listener) error
	Subscribe(channel string) error
	Unsubscribe(channel string) error
	// Close stops the loop. No Listener call happens after it returns.
	Close() error
}

const (
	clientPongWait  = 75 * time.Second
	clientWriteWait = 5 * time.Second
)

type WSTransportOptions struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Dialer     *websocket.Dialer
}

// WSTransport is the gorilla websocket Transport for the /api/ws endpoint.
type WSTransport struct {
	endpoint string
	opts     WSTransportOptions
	logger   *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	channels map[string]struct{}
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu sync.Mutex
}

// NewWSTransport derives the websocket endpoint from the API base URL.
func NewWSTransport(baseURL string, opts WSTransportOptions) (*WSTransport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/api/ws"

	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 250 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 5 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &WSTransport{
		endpoint: u.String(),
		opts:     opts,
		logger:   logging.Sub("ws-transport"),
		channels: make(map[string]struct{}),
	}, nil
}

func (t *WSTransport) Open(ctx context.Context, token string, l Listener) error {
	if l == nil {
		return errors.New("transport: nil listener")
	}
	if err := t.Close(); err != nil {
		return err
	}

	u, err := url.Parse(t.endpoint)
	if err != nil {
		return err
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.mu.Lock()
	t.cancel, t.done = cancel, done
	t.mu.Unlock()

	go func() {
		defer close(done)
		t.run(runCtx, u.String(), l)
	}()
	return nil
}

func (t *WSTransport) run(ctx context.Context, endpoint string, l Listener) {
	backoff := t.opts.MinBackoff
	wasConnected := false
	for {
		err := t.session(ctx, endpoint, l, &wasConnected)
		if ctx.Err() != nil {
			return
		}
		if wasConnected {
			l.Disconnected(err)
			wasConnected = false
			backoff = t.opts.MinBackoff
		}
		t.logger.Debug("reconnecting", "in", backoff, "err", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, t.opts.MaxBackoff)
	}
}

// session serves one connection until it fails or ctx ends.
func (t *WSTransport) session(ctx context.Context, endpoint string, l Listener, connected *bool) error {
	conn, _, err := t.opts.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer func() {
		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		t.mu.Unlock()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(clientPongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(clientPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(clientWriteWait))
	})

	var hello realtime.Frame
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Type != realtime.FrameConnected {
		return fmt.Errorf("unexpected first frame %q", hello.Type)
	}

	t.mu.Lock()
	t.conn = conn
	channels := make([]string, 0, len(t.channels))
	for ch := range t.channels {
		channels = append(channels, ch)
	}
	t.mu.Unlock()

	*connected = true
	l.Connected()
	for _, ch := range channels {
		if err := t.write(conn, realtime.Frame{Type: realtime.FrameSubscribe, Channel: ch}); err != nil {
			return err
		}
	}

	for {
		var f realtime.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(clientPongWait))
		switch f.Type {
		case realtime.FrameSubscribed:
			l.Subscribed(f.Channel)
		case realtime.FrameEvent:
			if f.Event == nil {
				t.logger.Warn("event frame without event", "channel", f.Channel)
				continue
			}
			l.Event(f.Channel, *f.Event)
		case realtime.FrameError:
			if f.Channel != "" {
				l.Rejected(f.Channel, f.Error)
			} else {
				t.logger.Warn("server error frame", "error", f.Error)
			}
		}
	}
}

func (t *WSTransport) write(conn *websocket.Conn, f realtime.Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s: %w", f.Type, err)
	}
	return nil
}

// Subscribe records channel and joins it now if connected; otherwise it is
// joined on the next connect.
func (t *WSTransport) Subscribe(channel string) error {
	t.mu.Lock()
	t.channels[channel] = struct{}{}
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return t.write(conn, realtime.Frame{Type: realtime.FrameSubscribe, Channel: channel})
}

func (t *WSTransport) Unsubscribe(channel string) error {
	t.mu.Lock()
	delete(t.channels, channel)
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return t.write(conn, realtime.Frame{Type: realtime.FrameUnsubscribe, Channel: channel})
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

var _ Transport = (*WSTransport)(nil)
