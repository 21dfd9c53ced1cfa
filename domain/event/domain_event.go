package event

import (
	"time"

	"chat-relay/domain"
)

type Type string

const (
	MessagePostedType Type = "MESSAGE_POSTED"
	UserOnlineType    Type = "USER_ONLINE"
	UserOfflineType   Type = "USER_OFFLINE"
)

// DomainEvent is published after a state change has been committed.
// Consumers are side effects only, nothing flows back to the sender.
type DomainEvent interface {
	Type() Type
}

type MessagePosted struct {
	Message domain.Message
	RoomKey domain.RoomKey
}

func (MessagePosted) Type() Type { return MessagePostedType }

type UserOnline struct {
	UserID       string
	ConnectionID string
	At           time.Time
}

func (UserOnline) Type() Type { return UserOnlineType }

type UserOffline struct {
	UserID       string
	ConnectionID string
	At           time.Time
}

func (UserOffline) Type() Type { return UserOfflineType }
