package domain

import (
	"time"
)

// FileUploadedContent is stored as the text of a message that only carries a file.
const FileUploadedContent = "File uploaded"

// FileRef points to a payload held by the blob store. The relay never touches the bytes.
type FileRef struct {
	URL      string `json:"filePath"`
	MimeType string `json:"fileType"`
	Name     string `json:"fileName"`
}

type SeenReceipt struct {
	UserID string    `json:"userId"`
	SeenAt time.Time `json:"seenAt"`
}

// Message is immutable once stored, except for receipts.
// ID grows strictly within a conversation and doubles as the seen watermark.
type Message struct {
	ID             uint64        `json:"id"`
	ConversationID string        `json:"conversationId"`
	SenderID       string        `json:"senderId"`
	Content        string        `json:"content"`
	File           *FileRef      `json:"file,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	SeenBy         []SeenReceipt `json:"seenBy"`
}

// SeenByUser reports whether userID already has a receipt on the message.
func (m Message) SeenByUser(userID string) bool {
	for _, r := range m.SeenBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
