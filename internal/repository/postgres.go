package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/videflow/videflow/internal/domain"
	"github.com/videflow/videflow/internal/repository/model"
)

type PostgresHistoryRepository struct {
	db *gorm.DB
}

func NewPostgresHistoryRepository(db *gorm.DB) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

func (r *PostgresHistoryRepository) SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("chat message is nil")
	}

	return r.db.WithContext(ctx).Create(toModelChatMessage(msg)).Error
}

func (r *PostgresHistoryRepository) ListChatMessages(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	var rows []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	msgs := make([]*domain.ChatMessage, 0, len(rows))
	for i := range rows {
		msgs = append(msgs, toDomainChatMessage(&rows[i]))
	}
	return msgs, nil
}

func (r *PostgresHistoryRepository) SaveAttendance(ctx context.Context, rec *domain.AttendanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil {
		return errors.New("attendance record is nil")
	}

	return r.db.WithContext(ctx).Create(toModelAttendance(rec)).Error
}

func (r *PostgresHistoryRepository) CloseAttendance(ctx context.Context, roomID, connID string, leftAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).
		Model(&model.Attendance{}).
		Where("room_id = ? AND connection_id = ? AND left_at IS NULL", roomID, connID).
		Update("left_at", leftAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAttendanceNotFound
	}
	return nil
}

func toModelChatMessage(msg *domain.ChatMessage) *model.ChatMessage {
	return &model.ChatMessage{
		ID:           msg.ID,
		RoomID:       msg.RoomID,
		ConnectionID: msg.ConnectionID,
		UserID:       msg.UserID,
		DisplayName:  msg.DisplayName,
		Content:      msg.Content,
		CreatedAt:    msg.CreatedAt,
	}
}

func toDomainChatMessage(m *model.ChatMessage) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:           m.ID,
		RoomID:       m.RoomID,
		ConnectionID: m.ConnectionID,
		UserID:       m.UserID,
		DisplayName:  m.DisplayName,
		Content:      m.Content,
		CreatedAt:    m.CreatedAt,
	}
}

func toModelAttendance(rec *domain.AttendanceRecord) *model.Attendance {
	return &model.Attendance{
		ID:           rec.ID,
		RoomID:       rec.RoomID,
		ConnectionID: rec.ConnectionID,
		UserID:       rec.UserID,
		DisplayName:  rec.DisplayName,
		JoinedAt:     rec.JoinedAt,
		LeftAt:       rec.LeftAt,
	}
}
