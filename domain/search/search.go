package search

import (
	"strings"
)

// Query is the structured form of a raw search string typed by a user.
type Query struct {
	RawInput       string // The original text sent by the client
	Terms          string // Free text matched against message content
	SenderID       string // Restrict hits to one author, from "--from <id>"
	ConversationID string
	Limit          int
}

// Hit is one matching message.
type Hit struct {
	MessageID uint64  `json:"messageId"`
	SenderID  string  `json:"senderId"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
}

// NewQuery parses a raw string with command-line style flags.
// Example: invoice --from doc1
func NewQuery(conversationID, input string, limit int) Query {
	query := Query{
		RawInput:       input,
		ConversationID: conversationID,
		Limit:          limit,
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if part == "--from" && i+1 < len(parts) {
			query.SenderID = parts[i+1]
			i++ // Skip the value part in next iteration
			continue
		}
		textTerms = append(textTerms, part)
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
