package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
}

func (c *recordingClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false
	}
	c.messages = append(c.messages, message)
	return true
}

func (c *recordingClient) Close() {}

func (c *recordingClient) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.messages...)
}

func TestHub_BroadcastPerChannel(t *testing.T) {
	hub := NewHub()
	a, b, other := &recordingClient{}, &recordingClient{}, &recordingClient{}
	hub.Register(UserChannel("42"), a)
	hub.Register(UserChannel("42"), b)
	hub.Register(UserChannel("7"), other)

	require.Equal(t, 2, hub.Broadcast(UserChannel("42"), []byte("hello")))
	require.Len(t, a.received(), 1)
	require.Len(t, b.received(), 1)
	require.Empty(t, other.received())
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub()
	c := &recordingClient{}
	hub.Register(UserChannel("42"), c)
	hub.Register(PublicChannel("alice"), c)
	require.Equal(t, 1, hub.Subscribers(UserChannel("42")))

	hub.Unregister(UserChannel("42"), c)
	require.Equal(t, 0, hub.Subscribers(UserChannel("42")))
	require.Equal(t, 1, hub.Subscribers(PublicChannel("alice")))

	hub.UnregisterAll(c)
	require.Equal(t, 0, hub.Broadcast(PublicChannel("alice"), []byte("x")))
}

func TestHub_FailedSendNotCounted(t *testing.T) {
	hub := NewHub()
	hub.Register(UserChannel("42"), &recordingClient{fail: true})
	hub.Register(UserChannel("42"), &recordingClient{})
	require.Equal(t, 1, hub.Broadcast(UserChannel("42"), []byte("x")))
}
