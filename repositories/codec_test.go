package repositories

import (
	"testing"
	"time"

	"chat-relay/domain"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestDecodeMessage_SkipsUnknownFields(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	b := encodeMessage(domain.Message{ID: 4, ConversationID: "c1", SenderID: "doc1", Content: "hello", CreatedAt: at})

	// Given a record written by a newer version with an extra field
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	m, err := decodeMessage(b)
	req.NoError(err)
	req.Equal(uint64(4), m.ID)
	req.Equal("hello", m.Content)
	req.Equal(at, m.CreatedAt)
	req.Nil(m.File)
}

func TestDecodeMessage_Truncated(t *testing.T) {
	req := require.New(t)
	b := encodeMessage(domain.Message{ID: 1, ConversationID: "c1", Content: "hello"})

	_, err := decodeMessage(b[:len(b)-2])
	req.Error(err)
}
