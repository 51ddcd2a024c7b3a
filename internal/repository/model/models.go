package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID       string    `gorm:"size:64;index;not null"`
	ConnectionID string    `gorm:"size:64;not null"`
	UserID       string    `gorm:"size:64;not null"`
	DisplayName  string    `gorm:"size:255;not null"`
	Content      string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"index;not null"`
}

type Attendance struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RoomID       string     `gorm:"size:64;index;not null"`
	ConnectionID string     `gorm:"size:64;index;not null"`
	UserID       string     `gorm:"size:64;not null"`
	DisplayName  string     `gorm:"size:255;not null"`
	JoinedAt     time.Time  `gorm:"not null"`
	LeftAt       *time.Time `gorm:"index"`
}
