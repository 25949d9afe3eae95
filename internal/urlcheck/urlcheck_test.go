package urlcheck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		raw        string
		production bool
		want       string
		err        error
	}{
		{raw: "  example.com/docs ", want: "https://example.com/docs"},
		{raw: "http://example.com", want: "http://example.com"},
		{raw: "HTTPS://Example.com", want: "HTTPS://Example.com"},
		{raw: "", err: ErrEmpty},
		{raw: "ftp://example.com", err: ErrScheme},
		{raw: "https://", err: ErrFormat},
		{raw: "https://ab", err: ErrHostname},
		{raw: "http://localhost:3000", want: "http://localhost:3000"},
		{raw: "http://localhost:3000", production: true, err: ErrPrivateHost},
		{raw: "http://192.168.1.10", production: true, err: ErrPrivateHost},
		{raw: "http://10.0.0.1", production: true, err: ErrPrivateHost},
		{raw: "http://127.0.0.1", want: "http://127.0.0.1"},
		{raw: "https://172.217.0.1", production: true, want: "https://172.217.0.1"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := Validate(tc.raw, tc.production)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "https://x.com/ascript", Sanitize(" https://x.com/<a>script "))
}

func TestIsShortURL(t *testing.T) {
	require.True(t, IsShortURL("https://tree.bio/l/abc", "https://tree.bio"))
	require.False(t, IsShortURL("https://tree.bio/alice", "https://tree.bio"))
	require.False(t, IsShortURL("https://other.bio/l/abc", "https://tree.bio"))
	require.False(t, IsShortURL("::", "https://tree.bio"))
}
