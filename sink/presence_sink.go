package sink

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

// PresenceSink keeps the user store in line with live presence.
type PresenceSink struct {
	users contract.IUserRepository
	log   *slog.Logger
}

func NewPresenceSink(users contract.IUserRepository, log *slog.Logger) PresenceSink {
	return PresenceSink{users: users, log: log}
}

func (p PresenceSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.UserOnline:
		return p.users.SetOnline(evt.UserID, evt.ConnectionID)
	case event.UserOffline:
		return p.users.SetOffline(evt.UserID, evt.ConnectionID)
	default:
		return nil
	}
}
