package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserChannel_DeterministicAndInjective(t *testing.T) {
	ids := []string{"", " ", "42", "042", "4-2", "user-1", "ünïcödé", "a/b", "private-user-1", "x\x00y", "-"}
	seen := make(map[string]string, len(ids))
	for _, id := range ids {
		ch := UserChannel(id)
		require.Equal(t, ch, UserChannel(id))
		if prev, dup := seen[ch]; dup {
			t.Fatalf("ids %q and %q share channel %q", prev, id, ch)
		}
		seen[ch] = id
	}
	require.Equal(t, "private-user-42", UserChannel("42"))
}

func TestPublicChannel_NeverCollidesWithUserChannel(t *testing.T) {
	for _, key := range []string{"", "alice", "42", "user-42"} {
		require.NotEqual(t, UserChannel(key), PublicChannel(key))
	}
	require.Equal(t, "public-profile-alice", PublicChannel("alice"))
}

func TestParseChannel(t *testing.T) {
	kind, key, ok := ParseChannel(UserChannel("42"))
	require.True(t, ok)
	require.Equal(t, ChannelUser, kind)
	require.Equal(t, "42", key)

	kind, key, ok = ParseChannel(PublicChannel("alice"))
	require.True(t, ok)
	require.Equal(t, ChannelPublic, kind)
	require.Equal(t, "alice", key)

	for _, bad := range []string{"", "private-user-", "public-profile-", "presence-x", "user-42"} {
		_, _, ok := ParseChannel(bad)
		require.False(t, ok, bad)
	}
}
