package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
)

type IConversationResolver interface {
	ResolvePrivate(ctx context.Context, a, b string) (domain.Conversation, []domain.Message, bool, error)
	Resolve(ctx context.Context, conversationID string) (domain.Conversation, []domain.Message, error)
	CreateCommunity(ctx context.Context, doctorIDs, patientIDs []string) (domain.Conversation, error)
}

// ConversationResolver finds the conversation backing a room and loads its history.
type ConversationResolver struct {
	repository contract.IConversationRepository
	log        *slog.Logger
}

func NewConversationResolver(repository contract.IConversationRepository, log *slog.Logger) *ConversationResolver {
	return &ConversationResolver{repository: repository, log: log}
}

// ResolvePrivate returns the conversation whose participants are exactly {a, b},
// creating it on first contact. A new conversation comes with an empty history.
func (r *ConversationResolver) ResolvePrivate(ctx context.Context, a, b string) (domain.Conversation, []domain.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Conversation{}, nil, false, err
	}
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return domain.Conversation{}, nil, false, fmt.Errorf("%w: both participant ids are required", errors.ErrProtocolViolation)
	}
	if a == b {
		return domain.Conversation{}, nil, false, fmt.Errorf("%w: cannot open a conversation with yourself", errors.ErrProtocolViolation)
	}

	conversation, created, err := r.repository.FindOrCreatePrivate(a, b)
	if err != nil {
		return domain.Conversation{}, nil, false, err
	}
	if created {
		r.log.Info("Private conversation created", "conversation_id", conversation.ID, "participants", conversation.ParticipantIDs())
		return conversation, []domain.Message{}, true, nil
	}

	history, err := r.repository.ListMessages(conversation.ID)
	if err != nil {
		return domain.Conversation{}, nil, false, err
	}
	return conversation, history, false, nil
}

// Resolve loads a conversation by id with its full history.
func (r *ConversationResolver) Resolve(ctx context.Context, conversationID string) (domain.Conversation, []domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Conversation{}, nil, err
	}
	if conversationID == "" {
		return domain.Conversation{}, nil, fmt.Errorf("%w: conversation id is required", errors.ErrProtocolViolation)
	}
	conversation, err := r.repository.Get(conversationID)
	if err != nil {
		return domain.Conversation{}, nil, err
	}
	history, err := r.repository.ListMessages(conversationID)
	if err != nil {
		return domain.Conversation{}, nil, err
	}
	return conversation, history, nil
}

func (r *ConversationResolver) CreateCommunity(ctx context.Context, doctorIDs, patientIDs []string) (domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Conversation{}, err
	}
	conversation, err := r.repository.CreateCommunity(doctorIDs, patientIDs)
	if err != nil {
		return domain.Conversation{}, err
	}
	r.log.Info("Community created", "conversation_id", conversation.ID, "participants", len(conversation.Participants))
	return conversation, nil
}
