package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/videflow/videflow/internal/domain"
	"github.com/videflow/videflow/internal/repository"
	"github.com/videflow/videflow/lib/logger/sl"
)

const recordTimeout = 5 * time.Second

// History persists chat messages and attendance spans behind a bounded queue.
// Record calls return immediately; when the queue is saturated the record is
// dropped and logged, never the relayed message. This keeps persistence
// strictly off the signaling path.
type History struct {
	log   *slog.Logger
	repo  repository.HistoryRepository
	tasks chan func(context.Context)
	wg    sync.WaitGroup
}

func NewHistory(repo repository.HistoryRepository, queueSize int, log *slog.Logger) *History {
	if log == nil {
		log = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	h := &History{
		log:   log,
		repo:  repo,
		tasks: make(chan func(context.Context), queueSize),
	}

	h.wg.Add(1)
	go h.worker()

	return h
}

func (h *History) RecordChat(msg *domain.ChatMessage) {
	h.submit(func(ctx context.Context) {
		if err := h.repo.SaveChatMessage(ctx, msg); err != nil {
			h.log.Error("failed to save chat message", sl.Err(err))
		}
	})
}

func (h *History) RecordJoin(rec *domain.AttendanceRecord) {
	h.submit(func(ctx context.Context) {
		if err := h.repo.SaveAttendance(ctx, rec); err != nil {
			h.log.Error("failed to save attendance", sl.Err(err))
		}
	})
}

func (h *History) RecordLeave(roomID, connID string, leftAt time.Time) {
	h.submit(func(ctx context.Context) {
		err := h.repo.CloseAttendance(ctx, roomID, connID, leftAt)
		if err != nil {
			if errors.Is(err, repository.ErrAttendanceNotFound) {
				// The join record itself was dropped earlier; nothing to close.
				h.log.Debug("no open attendance to close",
					slog.String("room_id", roomID),
					slog.String("conn_id", connID),
				)
				return
			}
			h.log.Error("failed to close attendance", sl.Err(err))
		}
	})
}

// ChatHistory reads back stored messages for the REST edge.
func (h *History) ChatHistory(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	return h.repo.ListChatMessages(ctx, roomID, limit)
}

// Close drains the queue and stops the worker.
func (h *History) Close() {
	close(h.tasks)
	h.wg.Wait()
}

func (h *History) submit(task func(context.Context)) {
	select {
	case h.tasks <- task:
	default:
		h.log.Warn("history queue saturated, dropping record")
	}
}

func (h *History) worker() {
	defer h.wg.Done()
	for task := range h.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		task(ctx)
		cancel()
	}
}
