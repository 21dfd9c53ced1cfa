// Package domain contains core concepts of the relay.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"time"

	"github.com/samber/lo"
)

type ConversationKind int

const (
	Private ConversationKind = iota
	Community
)

func (k ConversationKind) String() string {
	switch k {
	case Private:
		return "PRIVATE"
	case Community:
		return "COMMUNITY"
	default:
		return "UNKNOWN"
	}
}

func (k ConversationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Conversation is the durable record backing a room.
// A private conversation has exactly two participants, both allowed to send.
// A community has any number of participants, only doctors may send.
type Conversation struct {
	ID           string           `json:"id"`
	Kind         ConversationKind `json:"type"`
	Participants []Participant    `json:"participants"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// RoomKey derives the live room of the conversation.
func (c Conversation) RoomKey() RoomKey {
	if c.Kind == Community {
		return CommunityRoomKey(c.ID)
	}
	ids := c.ParticipantIDs()
	if len(ids) != 2 {
		// A malformed private record still gets a stable, isolated room.
		return CommunityRoomKey(c.ID)
	}
	return PrivateRoomKey(ids[0], ids[1])
}

func (c Conversation) ParticipantIDs() []string {
	return lo.Map(c.Participants, func(p Participant, _ int) string { return p.UserID })
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return lo.ContainsBy(c.Participants, func(p Participant) bool { return p.UserID == userID })
}

// CanSend reports whether userID is in the authorized senders subset.
func (c Conversation) CanSend(userID string) bool {
	p, ok := lo.Find(c.Participants, func(p Participant) bool { return p.UserID == userID })
	if !ok {
		return false
	}
	if c.Kind == Community {
		return p.Role == RoleDoctor
	}
	return true
}
