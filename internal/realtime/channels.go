package realtime

import "strings"

const (
	userChannelPrefix   = "private-user-"
	publicChannelPrefix = "public-profile-"
)

// ChannelKind tells private per-user channels from public per-profile ones.
type ChannelKind int

const (
	ChannelInvalid ChannelKind = iota
	ChannelUser
	ChannelPublic
)

// UserChannel returns the private channel of an identity.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// PublicChannel returns the channel visitors of a published profile listen on.
func PublicChannel(username string) string {
	return publicChannelPrefix + username
}

// ParseChannel splits a channel name into its kind and key.
func ParseChannel(name string) (ChannelKind, string, bool) {
	if key, ok := strings.CutPrefix(name, userChannelPrefix); ok && key != "" {
		return ChannelUser, key, true
	}
	if key, ok := strings.CutPrefix(name, publicChannelPrefix); ok && key != "" {
		return ChannelPublic, key, true
	}
	return ChannelInvalid, "", false
}
