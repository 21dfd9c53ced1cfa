// Package event holds what travels between the relay and its clients
// and the domain events published to in-process sinks.
package event

import (
	"encoding/json"

	"chat-relay/domain"
	"chat-relay/domain/search"
)

type Name string

const (
	Me               Name = "me"
	OnlineUsers      Name = "onlineUsers"
	ConversationID   Name = "conversationId"
	PreviousMessages Name = "previousMessages"
	CommunityCreated Name = "communityCreated"
	ReceivedMessage  Name = "receivedMessage"
	MessagesSeen     Name = "messagesSeen"
	SearchResults    Name = "searchResults"
	CallUser         Name = "callUser"
	CallAccepted     Name = "callAccepted"
	IceCandidate     Name = "iceCandidate"
	CallDeclined     Name = "callDeclined"
	CallEnded        Name = "callEnded"
	Error            Name = "error"
)

// Inbound is a frame received from a client. Data is decoded once the
// event name is known.
type Inbound struct {
	Name Name            `json:"event"`
	Data json.RawMessage `json:"data"`
}

// Outbound is a frame sent to a client.
type Outbound struct {
	Name    Name `json:"event"`
	Payload any  `json:"data"`
}

func New(name Name, payload any) Outbound {
	return Outbound{Name: name, Payload: payload}
}

type SeenUpdate struct {
	UserID            string           `json:"userId"`
	ConversationID    string           `json:"conversationId"`
	LastSeenMessageID uint64           `json:"lastSeenMessageId"`
	UpdatedMessages   []domain.Message `json:"updatedMessages"`
}

type IncomingCall struct {
	Signal json.RawMessage `json:"signal"`
	From   string          `json:"from"`
	Name   string          `json:"name"`
}

type Accepted struct {
	Signal json.RawMessage `json:"signal"`
	From   string          `json:"from"`
}

type Candidate struct {
	Candidate json.RawMessage `json:"candidate"`
	From      string          `json:"from"`
}

type HangUp struct {
	From string `json:"from"`
}

type SearchResult struct {
	ConversationID string       `json:"conversationId"`
	Hits           []search.Hit `json:"hits"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
