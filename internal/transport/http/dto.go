package http

import (
	"github.com/cwrk-planet/chat-service/internal/domain"
)

type CreateChannelRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Kind        string  `json:"kind" validate:"required,oneof=public private system"`
	ContextType *string `json:"contextType" validate:"omitempty,max=64"`
	ContextID   *string `json:"contextId" validate:"omitempty,max=128"`
}

type DirectChannelRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type SystemChannelRequest struct {
	ContextType string `json:"contextType" validate:"required,max=64"`
	ContextID   string `json:"contextId" validate:"required,max=128"`
}

type AddMemberRequest struct {
	UserID      string `json:"userId" validate:"required"`
	DisplayName string `json:"displayName" validate:"max=100"`
	Role        string `json:"role" validate:"omitempty,oneof=member admin"`
}

type SendMessageRequest struct {
	Text     string  `json:"text" validate:"required"`
	ParentID *string `json:"parentId" validate:"omitempty,uuid"`
}

type EditMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

type AttachmentRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	Size        int64  `json:"size" validate:"gte=0"`
	MimeType    string `json:"mimeType" validate:"required,max=255"`
	StoragePath string `json:"storagePath" validate:"required"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
}

type MessagesPage struct {
	Items      []domain.Message `json:"items"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

type TypingResponse struct {
	ChannelID string              `json:"channelId"`
	Users     []domain.TypingUser `json:"users"`
}
