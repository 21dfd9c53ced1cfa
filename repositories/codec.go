package repositories

import (
	"fmt"
	"strings"
	"time"

	"chat-relay/domain"

	"google.golang.org/protobuf/encoding/protowire"
)

// Values are stored in protobuf wire format so records stay readable by
// any protobuf tooling and tolerate added fields.

const (
	convID           protowire.Number = 1
	convKind         protowire.Number = 2
	convParticipant  protowire.Number = 3
	convCreatedAt    protowire.Number = 4
	participantID    protowire.Number = 1
	participantRole  protowire.Number = 2
	msgID            protowire.Number = 1
	msgConversation  protowire.Number = 2
	msgSender        protowire.Number = 3
	msgContent       protowire.Number = 4
	msgFile          protowire.Number = 5
	msgCreatedAt     protowire.Number = 6
	fileURL          protowire.Number = 1
	fileMimeType     protowire.Number = 2
	fileName         protowire.Number = 3
	receiptSeenAt    protowire.Number = 1
	userID           protowire.Number = 1
	userConnectionID protowire.Number = 2
	userOnline       protowire.Number = 3
	userOnlineAt     protowire.Number = 4
	userOfflineAt    protowire.Number = 5
)

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	return appendVarint(b, num, uint64(t.UnixNano()))
}

func appendMessage(b []byte, num protowire.Number, inner []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

// walk calls field for every field of b. field returns the number of bytes
// it consumed, or 0 to skip an unknown field.
func walk(b []byte, field func(num protowire.Number, typ protowire.Type, b []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n = field(num, typ, b)
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeVarint(typ protowire.Type, b []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeTime(typ protowire.Type, b []byte, dst *time.Time) int {
	var nanos uint64
	n := consumeVarint(typ, b, &nanos)
	if n > 0 {
		*dst = time.Unix(0, int64(nanos)).UTC()
	}
	return n
}

func consumeBool(typ protowire.Type, b []byte, dst *bool) int {
	var v uint64
	n := consumeVarint(typ, b, &v)
	if n > 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n
}

func consumeMessage(typ protowire.Type, b []byte, decode func([]byte) error) int {
	if typ != protowire.BytesType {
		return 0
	}
	inner, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n
	}
	if err := decode(inner); err != nil {
		return -1
	}
	return n
}

func encodeConversation(c domain.Conversation) []byte {
	var b []byte
	b = appendString(b, convID, c.ID)
	b = appendVarint(b, convKind, uint64(c.Kind))
	for _, p := range c.Participants {
		var inner []byte
		inner = appendString(inner, participantID, p.UserID)
		inner = appendVarint(inner, participantRole, uint64(p.Role))
		b = appendMessage(b, convParticipant, inner)
	}
	return appendTime(b, convCreatedAt, c.CreatedAt)
}

func decodeConversation(b []byte) (domain.Conversation, error) {
	var c domain.Conversation
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case convID:
			return consumeString(typ, b, &c.ID)
		case convKind:
			var kind uint64
			n := consumeVarint(typ, b, &kind)
			c.Kind = domain.ConversationKind(kind)
			return n
		case convParticipant:
			return consumeMessage(typ, b, func(inner []byte) error {
				p, err := decodeParticipant(inner)
				c.Participants = append(c.Participants, p)
				return err
			})
		case convCreatedAt:
			return consumeTime(typ, b, &c.CreatedAt)
		}
		return 0
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	return c, nil
}

func decodeParticipant(b []byte) (domain.Participant, error) {
	var p domain.Participant
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case participantID:
			return consumeString(typ, b, &p.UserID)
		case participantRole:
			var role uint64
			n := consumeVarint(typ, b, &role)
			p.Role = domain.Role(role)
			return n
		}
		return 0
	})
	return p, err
}

// encodeMessage leaves receipts out, they live under their own keys.
func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendVarint(b, msgID, m.ID)
	b = appendString(b, msgConversation, m.ConversationID)
	b = appendString(b, msgSender, m.SenderID)
	b = appendString(b, msgContent, m.Content)
	if m.File != nil {
		var inner []byte
		inner = appendString(inner, fileURL, m.File.URL)
		inner = appendString(inner, fileMimeType, m.File.MimeType)
		inner = appendString(inner, fileName, m.File.Name)
		b = appendMessage(b, msgFile, inner)
	}
	return appendTime(b, msgCreatedAt, m.CreatedAt)
}

func decodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case msgID:
			return consumeVarint(typ, b, &m.ID)
		case msgConversation:
			return consumeString(typ, b, &m.ConversationID)
		case msgSender:
			return consumeString(typ, b, &m.SenderID)
		case msgContent:
			return consumeString(typ, b, &m.Content)
		case msgFile:
			return consumeMessage(typ, b, func(inner []byte) error {
				var f domain.FileRef
				err := walk(inner, func(num protowire.Number, typ protowire.Type, b []byte) int {
					switch num {
					case fileURL:
						return consumeString(typ, b, &f.URL)
					case fileMimeType:
						return consumeString(typ, b, &f.MimeType)
					case fileName:
						return consumeString(typ, b, &f.Name)
					}
					return 0
				})
				m.File = &f
				return err
			})
		case msgCreatedAt:
			return consumeTime(typ, b, &m.CreatedAt)
		}
		return 0
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}

func encodeReceipt(seenAt time.Time) []byte {
	return appendTime(nil, receiptSeenAt, seenAt)
}

func decodeReceipt(b []byte) (time.Time, error) {
	var seenAt time.Time
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == receiptSeenAt {
			return consumeTime(typ, b, &seenAt)
		}
		return 0
	})
	return seenAt, err
}

func encodeUser(u domain.User) []byte {
	var b []byte
	b = appendString(b, userID, u.ID)
	b = appendString(b, userConnectionID, u.LastConnectionID)
	b = appendVarint(b, userOnline, protowire.EncodeBool(u.Online))
	b = appendTime(b, userOnlineAt, u.OnlineAt)
	return appendTime(b, userOfflineAt, u.OfflineAt)
}

func decodeUser(b []byte) (domain.User, error) {
	var u domain.User
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case userID:
			return consumeString(typ, b, &u.ID)
		case userConnectionID:
			return consumeString(typ, b, &u.LastConnectionID)
		case userOnline:
			return consumeBool(typ, b, &u.Online)
		case userOnlineAt:
			return consumeTime(typ, b, &u.OnlineAt)
		case userOfflineAt:
			return consumeTime(typ, b, &u.OfflineAt)
		}
		return 0
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

// Describe renders a stored record for diagnostics, based on its key prefix.
func Describe(key, value []byte) (kind string, summary string) {
	k := string(key)
	switch {
	case strings.HasPrefix(k, conversationPrefix):
		c, err := decodeConversation(value)
		if err != nil {
			return "conversation", err.Error()
		}
		return "conversation", fmt.Sprintf("%s %v", c.Kind, c.ParticipantIDs())
	case strings.HasPrefix(k, pairPrefix):
		return "pair", string(value)
	case strings.HasPrefix(k, sequencePrefix):
		return "sequence", fmt.Sprintf("%d", decodeSequence(value))
	case strings.HasPrefix(k, messagePrefix):
		m, err := decodeMessage(value)
		if err != nil {
			return "message", err.Error()
		}
		return "message", fmt.Sprintf("#%d %s: %s", m.ID, m.SenderID, m.Content)
	case strings.HasPrefix(k, receiptPrefix):
		seenAt, err := decodeReceipt(value)
		if err != nil {
			return "receipt", err.Error()
		}
		return "receipt", seenAt.Format(time.RFC3339)
	case strings.HasPrefix(k, userPrefix):
		u, err := decodeUser(value)
		if err != nil {
			return "user", err.Error()
		}
		return "user", fmt.Sprintf("online=%t connection=%s", u.Online, u.LastConnectionID)
	}
	return "unknown", fmt.Sprintf("%d bytes", len(value))
}
