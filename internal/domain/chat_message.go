package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID           uuid.UUID
	RoomID       string
	ConnectionID string
	UserID       string
	DisplayName  string
	Content      string
	CreatedAt    time.Time
}

func NewChatMessage(roomID, connID string, identity Identity, content string) *ChatMessage {
	return &ChatMessage{
		ID:           uuid.New(),
		RoomID:       roomID,
		ConnectionID: connID,
		UserID:       identity.UserID,
		DisplayName:  identity.DisplayName,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
	}
}
