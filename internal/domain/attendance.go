package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceRecord is the durable trace of one connection's stay in a room,
// written off the relay path for meeting bookkeeping.
type AttendanceRecord struct {
	ID           uuid.UUID
	RoomID       string
	ConnectionID string
	UserID       string
	DisplayName  string
	JoinedAt     time.Time
	LeftAt       *time.Time
}

func NewAttendanceRecord(roomID, connID string, identity Identity) *AttendanceRecord {
	return &AttendanceRecord{
		ID:           uuid.New(),
		RoomID:       roomID,
		ConnectionID: connID,
		UserID:       identity.UserID,
		DisplayName:  identity.DisplayName,
		JoinedAt:     time.Now().UTC(),
	}
}
