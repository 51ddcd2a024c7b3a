package repository

import (
	"context"
	"sync"
	"time"

	"github.com/videflow/videflow/internal/domain"
)

// InMemoryHistoryRepository keeps history in process memory. It backs tests
// and DSN-less deployments where durable history is not wanted.
type InMemoryHistoryRepository struct {
	mu         sync.RWMutex
	messages   map[string][]*domain.ChatMessage
	attendance map[string][]*domain.AttendanceRecord
}

func NewInMemoryHistoryRepository() *InMemoryHistoryRepository {
	return &InMemoryHistoryRepository{
		messages:   make(map[string][]*domain.ChatMessage),
		attendance: make(map[string][]*domain.AttendanceRecord),
	}
}

func (r *InMemoryHistoryRepository) SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages[msg.RoomID] = append(r.messages[msg.RoomID], msg)
	return nil
}

func (r *InMemoryHistoryRepository) ListChatMessages(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[roomID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}

	out := make([]*domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (r *InMemoryHistoryRepository) SaveAttendance(ctx context.Context, rec *domain.AttendanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.attendance[rec.RoomID] = append(r.attendance[rec.RoomID], rec)
	return nil
}

func (r *InMemoryHistoryRepository) CloseAttendance(ctx context.Context, roomID, connID string, leftAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.attendance[roomID] {
		if rec.ConnectionID == connID && rec.LeftAt == nil {
			at := leftAt
			rec.LeftAt = &at
			return nil
		}
	}
	return ErrAttendanceNotFound
}

// Attendance returns the recorded spans for a room, for tests and inspection.
func (r *InMemoryHistoryRepository) Attendance(roomID string) []*domain.AttendanceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.AttendanceRecord, len(r.attendance[roomID]))
	copy(out, r.attendance[roomID])
	return out
}
