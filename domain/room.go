package domain

import (
	"strings"
)

// RoomKey identifies a live fan-out group. It is never persisted.
type RoomKey string

const (
	privateRoomPrefix   = "room:"
	communityRoomPrefix = "community:"
)

// PairKey canonicalizes two participant ids so that {a, b} and {b, a}
// produce the same key.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// PrivateRoomKey returns the room of the private conversation between a and b,
// whichever of the two joins first.
func PrivateRoomKey(a, b string) RoomKey {
	return RoomKey(privateRoomPrefix + PairKey(a, b))
}

// CommunityRoomKey returns the room of a community conversation.
func CommunityRoomKey(conversationID string) RoomKey {
	return RoomKey(communityRoomPrefix + conversationID)
}

func (k RoomKey) IsPrivate() bool {
	return strings.HasPrefix(string(k), privateRoomPrefix)
}

func (k RoomKey) IsCommunity() bool {
	return strings.HasPrefix(string(k), communityRoomPrefix)
}

func (k RoomKey) String() string {
	return string(k)
}
