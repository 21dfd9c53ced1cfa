package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"chat-relay/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Command is an inbound payload that can check its own shape.
type Command interface {
	Normalize()
}

// Validate normalizes aliases then checks the validate tags of cmd.
// Any failure is a protocol violation reported to the sender only.
func Validate(cmd Command) error {
	cmd.Normalize()
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrProtocolViolation, describe(err))
	}
	return nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

type Identify struct {
	UserID string `json:"userId" validate:"required"`
}

func (c *Identify) Normalize() { c.UserID = strings.TrimSpace(c.UserID) }

type GetOnlineUsers struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,max=500,dive,required"`
}

func (c *GetOnlineUsers) Normalize() {}

// JoinRoom asks for the private room between two identities.
// The historical doctorId/clientId names are accepted as aliases.
type JoinRoom struct {
	SelfID   string `json:"selfId" validate:"required"`
	PeerID   string `json:"peerId" validate:"required,nefield=SelfID"`
	DoctorID string `json:"doctorId,omitempty" validate:"-"`
	ClientID string `json:"clientId,omitempty" validate:"-"`
}

func (c *JoinRoom) Normalize() {
	if c.SelfID == "" {
		c.SelfID = c.DoctorID
	}
	if c.PeerID == "" {
		c.PeerID = c.ClientID
	}
	c.SelfID = strings.TrimSpace(c.SelfID)
	c.PeerID = strings.TrimSpace(c.PeerID)
}

type LeaveRoom struct {
	RoomKey string `json:"roomKey" validate:"required"`
}

func (c *LeaveRoom) Normalize() {}

type CreateCommunity struct {
	DoctorIDs  []string `json:"doctorIds" validate:"required,min=1,dive,required"`
	PatientIDs []string `json:"patientIds" validate:"omitempty,dive,required"`
}

func (c *CreateCommunity) Normalize() {}

type JoinCommunity struct {
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId"`
}

func (c *JoinCommunity) Normalize() {}

type SendMessage struct {
	ConversationID string `json:"conversationId" validate:"required"`
	RoomKey        string `json:"roomKey"`
	RoomID         string `json:"roomId,omitempty" validate:"-"`
	Content        string `json:"content" validate:"max=10000"`
	Message        string `json:"message,omitempty" validate:"-"`
	SenderID       string `json:"senderId" validate:"required"`
	FilePath       string `json:"filePath,omitempty"`
	FileName       string `json:"fileName,omitempty"`
	FileType       string `json:"fileType,omitempty" validate:"required_with=FilePath"`
}

func (c *SendMessage) Normalize() {
	if c.Content == "" {
		c.Content = c.Message
	}
	if c.RoomKey == "" {
		c.RoomKey = c.RoomID
	}
}

// File returns the attachment carried by the message, if any.
func (c *SendMessage) File() *FileRef {
	if c.FilePath == "" {
		return nil
	}
	return &FileRef{URL: c.FilePath, MimeType: c.FileType, Name: c.FileName}
}

type FileUpload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	SenderID       string `json:"senderId" validate:"required"`
	FileRef        string `json:"fileRef" validate:"required"`
	FilePath       string `json:"filePath,omitempty" validate:"-"`
	FileType       string `json:"fileType" validate:"required"`
	FileName       string `json:"fileName" validate:"required"`
}

func (c *FileUpload) Normalize() {
	if c.FileRef == "" {
		c.FileRef = c.FilePath
	}
}

func (c *FileUpload) File() *FileRef {
	return &FileRef{URL: c.FileRef, MimeType: c.FileType, Name: c.FileName}
}

type MarkAsSeen struct {
	UserID            string `json:"userId" validate:"required"`
	ConversationID    string `json:"conversationId" validate:"required"`
	LastSeenMessageID uint64 `json:"lastSeenMessageId" validate:"required"`
}

func (c *MarkAsSeen) Normalize() {}

type SearchMessages struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Query          string `json:"query" validate:"required,max=256"`
	Limit          int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

func (c *SearchMessages) Normalize() {
	if c.Limit == 0 {
		c.Limit = 20
	}
}

// CallUser starts a call attempt. "to" is accepted for userToCall.
type CallUser struct {
	UserToCall string          `json:"userToCall" validate:"required"`
	To         string          `json:"to,omitempty" validate:"-"`
	SignalData json.RawMessage `json:"signalData" validate:"required"`
	From       string          `json:"from"`
	Name       string          `json:"name"`
}

func (c *CallUser) Normalize() {
	if c.UserToCall == "" {
		c.UserToCall = c.To
	}
}

type AnswerCall struct {
	To     string          `json:"to" validate:"required"`
	Signal json.RawMessage `json:"signal" validate:"required"`
	From   string          `json:"from"`
}

func (c *AnswerCall) Normalize() {}

type IceCandidate struct {
	To        string          `json:"to" validate:"required"`
	Candidate json.RawMessage `json:"candidate" validate:"required"`
	From      string          `json:"from"`
}

func (c *IceCandidate) Normalize() {}

// HangUp carries both declineCall and endCall.
type HangUp struct {
	To   string `json:"to" validate:"required"`
	From string `json:"from"`
}

func (c *HangUp) Normalize() {}
