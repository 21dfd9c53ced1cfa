package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewQuery(t *testing.T) {
	req := require.New(t)

	// When a raw input carries a sender flag
	q := NewQuery("c1", "lab results --from doc1 tomorrow", 5)

	// Then the flag is extracted and the remaining words are the terms
	req.Equal("lab results tomorrow", q.Terms)
	req.Equal("doc1", q.SenderID)
	req.Equal("c1", q.ConversationID)
	req.Equal(5, q.Limit)
}

func TestNewQuery_DefaultLimitAndDanglingFlag(t *testing.T) {
	req := require.New(t)

	q := NewQuery("c1", "hello --from", 0)

	req.Equal(10, q.Limit)
	req.Equal("", q.SenderID)
	req.Equal("hello --from", q.Terms)
}
