package repository

import (
	"context"
	"errors"
	"time"

	"github.com/videflow/videflow/internal/domain"
)

var (
	ErrAttendanceNotFound = errors.New("attendance record not found")
)

// HistoryRepository durably records what happened in a meeting: chat messages
// and attendance spans. It is only ever called off the relay path.
type HistoryRepository interface {
	SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error
	ListChatMessages(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error)
	SaveAttendance(ctx context.Context, rec *domain.AttendanceRecord) error
	CloseAttendance(ctx context.Context, roomID, connID string, leftAt time.Time) error
}
