package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/domain/search"
	"chat-relay/errors"
	"chat-relay/observability"
)

// PostMessage is what the engine needs to store one message.
type PostMessage struct {
	ConversationID string
	SenderID       string
	Content        string
	File           *domain.FileRef
}

type IMessageService interface {
	PostMessage(ctx context.Context, cmd PostMessage) (domain.Message, error)
	MarkSeen(ctx context.Context, userID, conversationID string, lastSeenMessageID uint64) (event.SeenUpdate, error)
	MarkSeenFor(ctx context.Context, actorID, userID, conversationID string, lastSeenMessageID uint64) (event.SeenUpdate, error)
	Search(ctx context.Context, requesterID, conversationID, input string, limit int) (event.SearchResult, error)
}

// MessageService persists messages and receipts, then fans them out to the
// conversation's room. Nothing is broadcast when persistence fails.
type MessageService struct {
	repository contract.IConversationRepository
	router     contract.IRouter
	publisher  contract.IPublisher
	moderator  contract.IModerator
	index      contract.ISearchIndex
	metrics    *observability.Metrics
	log        *slog.Logger
}

// NewMessageService builds the engine. moderator and index may be nil.
func NewMessageService(
	repository contract.IConversationRepository,
	router contract.IRouter,
	publisher contract.IPublisher,
	moderator contract.IModerator,
	index contract.ISearchIndex,
	metrics *observability.Metrics,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		repository: repository,
		router:     router,
		publisher:  publisher,
		moderator:  moderator,
		index:      index,
		metrics:    metrics,
		log:        log,
	}
}

func (s *MessageService) PostMessage(ctx context.Context, cmd PostMessage) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	content := strings.TrimSpace(cmd.Content)
	if content == "" && cmd.File == nil {
		return domain.Message{}, fmt.Errorf("%w: message has neither content nor file", errors.ErrProtocolViolation)
	}

	conversation, err := s.repository.Get(cmd.ConversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conversation.CanSend(cmd.SenderID) {
		return domain.Message{}, fmt.Errorf("%w: %s cannot send to conversation %s", errors.ErrUnauthorized, cmd.SenderID, conversation.ID)
	}

	if content == "" {
		content = domain.FileUploadedContent
	} else if s.moderator != nil {
		censored, matched := s.moderator.Censor(content)
		if len(matched) > 0 {
			s.log.Debug("Message censored", "conversation_id", conversation.ID, "user_id", cmd.SenderID, "words", matched)
		}
		content = censored
	}

	msg, err := s.repository.AppendMessage(domain.Message{
		ConversationID: conversation.ID,
		SenderID:       cmd.SenderID,
		Content:        content,
		File:           cmd.File,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return domain.Message{}, err
	}

	room := conversation.RoomKey()
	delivered := s.router.Broadcast(room, event.New(event.ReceivedMessage, msg))
	s.metrics.MessagePosted()
	if s.publisher != nil {
		s.publisher.Publish(event.MessagePosted{Message: msg, RoomKey: room})
	}
	s.log.Debug("Message posted", "conversation_id", conversation.ID, "message_id", msg.ID, "delivered", delivered)
	return msg, nil
}

// MarkSeen stamps userID's receipts up to the watermark and broadcasts every
// message up to it, so all members converge on the same seen state.
func (s *MessageService) MarkSeen(ctx context.Context, userID, conversationID string, lastSeenMessageID uint64) (event.SeenUpdate, error) {
	return s.MarkSeenFor(ctx, userID, userID, conversationID, lastSeenMessageID)
}

// MarkSeenFor records receipts for userID on behalf of actorID. Both must be
// participants of the conversation. An empty actorID is not checked.
func (s *MessageService) MarkSeenFor(ctx context.Context, actorID, userID, conversationID string, lastSeenMessageID uint64) (event.SeenUpdate, error) {
	if err := ctx.Err(); err != nil {
		return event.SeenUpdate{}, err
	}
	conversation, err := s.repository.Get(conversationID)
	if err != nil {
		return event.SeenUpdate{}, err
	}
	if !conversation.HasParticipant(userID) {
		return event.SeenUpdate{}, fmt.Errorf("%w: %s is not part of conversation %s", errors.ErrUnauthorized, userID, conversationID)
	}
	if actorID != "" && !conversation.HasParticipant(actorID) {
		return event.SeenUpdate{}, fmt.Errorf("%w: %s is not part of conversation %s", errors.ErrUnauthorized, actorID, conversationID)
	}

	messages, stamped, err := s.repository.MarkSeen(conversationID, userID, lastSeenMessageID)
	if err != nil {
		return event.SeenUpdate{}, err
	}
	s.metrics.ReceiptsAdded(stamped)

	update := event.SeenUpdate{
		UserID:            userID,
		ConversationID:    conversationID,
		LastSeenMessageID: lastSeenMessageID,
		UpdatedMessages:   messages,
	}
	s.router.Broadcast(conversation.RoomKey(), event.New(event.MessagesSeen, update))
	s.log.Debug("Messages seen", "conversation_id", conversationID, "user_id", userID, "watermark", lastSeenMessageID, "stamped", stamped)
	return update, nil
}

// Search runs a full-text query over one conversation. The index is fed
// asynchronously, so the latest messages may be missing for a short while.
func (s *MessageService) Search(ctx context.Context, requesterID, conversationID, input string, limit int) (event.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return event.SearchResult{}, err
	}
	if s.index == nil {
		return event.SearchResult{}, fmt.Errorf("%w: search is disabled", errors.ErrNotFound)
	}
	conversation, err := s.repository.Get(conversationID)
	if err != nil {
		return event.SearchResult{}, err
	}
	if requesterID != "" && !conversation.HasParticipant(requesterID) {
		return event.SearchResult{}, fmt.Errorf("%w: %s is not part of conversation %s", errors.ErrUnauthorized, requesterID, conversationID)
	}

	hits, err := s.index.Search(search.NewQuery(conversationID, input, limit))
	if err != nil {
		return event.SearchResult{}, err
	}
	return event.SearchResult{ConversationID: conversationID, Hits: hits}, nil
}
