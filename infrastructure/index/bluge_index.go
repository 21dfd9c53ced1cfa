package index

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"chat-relay/domain"
	"chat-relay/domain/search"

	"github.com/blugelabs/bluge"
)

const (
	fieldConversation = "conversation_id"
	fieldMessage      = "message_id"
	fieldSender       = "sender_id"
	fieldContent      = "content"
)

// MessageIndex is a full-text index of message contents, partitioned by conversation.
// It is rebuilt from nothing if lost, the conversation store stays the source of truth.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

func documentID(m domain.Message) string {
	return m.ConversationID + ":" + strconv.FormatUint(m.ID, 10)
}

func toDocument(m domain.Message) *bluge.Document {
	return bluge.NewDocument(documentID(m)).
		AddField(bluge.NewKeywordField(fieldConversation, m.ConversationID).StoreValue()).
		AddField(bluge.NewKeywordField(fieldMessage, strconv.FormatUint(m.ID, 10)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSender, m.SenderID).StoreValue()).
		AddField(bluge.NewTextField(fieldContent, m.Content).StoreValue())
}

// IndexBatch writes all messages in a single segment. Messages carrying
// only a file are skipped, their content is a placeholder.
func (i *MessageIndex) IndexBatch(messages []domain.Message) error {
	batch := bluge.NewBatch()
	count := 0
	for _, m := range messages {
		if m.File != nil && m.Content == domain.FileUploadedContent {
			continue
		}
		doc := toDocument(m)
		batch.Update(doc.ID(), doc)
		count++
	}
	if count == 0 {
		return nil
	}
	if err := i.writer.Batch(batch); err != nil {
		return fmt.Errorf("bluge batch: %w", err)
	}
	return nil
}

// Search returns the best matches of q within its conversation.
func (i *MessageIndex) Search(q search.Query) ([]search.Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("bluge reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(q.ConversationID).SetField(fieldConversation))
	if q.Terms != "" {
		query.AddMust(bluge.NewMatchQuery(q.Terms).SetField(fieldContent))
	}
	if q.SenderID != "" {
		query.AddMust(bluge.NewTermQuery(q.SenderID).SetField(fieldSender))
	}

	dmi, err := reader.Search(context.Background(), bluge.NewTopNSearch(q.Limit, query))
	if err != nil {
		return nil, fmt.Errorf("bluge search: %w", err)
	}

	hits := []search.Hit{}
	match, err := dmi.Next()
	for err == nil && match != nil {
		hit := search.Hit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case fieldMessage:
				hit.MessageID, _ = strconv.ParseUint(string(value), 10, 64)
			case fieldSender:
				hit.SenderID = string(value)
			case fieldContent:
				hit.Content = string(value)
			}
			return true
		})
		if err != nil {
			break
		}
		hits = append(hits, hit)
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("bluge iterate: %w", err)
	}
	return hits, nil
}

func (i *MessageIndex) Close() error {
	return i.writer.Close()
}
