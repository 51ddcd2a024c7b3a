package signal

import (
	"context"
	"log/slog"

	"github.com/videflow/videflow/internal/domain"
)

type inbound struct {
	connID string
	event  domain.Event
}

type snapshotRequest struct {
	roomID string
	reply  chan []domain.ParticipantInfo
}

// Hub serializes every mutation of the registry and directory through one
// goroutine. Each inbound event is handled to completion before the next, so
// the router needs no locking and snapshot order is deterministic.
type Hub struct {
	log    *slog.Logger
	router *Router

	register   chan *Client
	unregister chan *Client
	events     chan inbound
	snapshots  chan snapshotRequest
}

func NewHub(router *Router, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		router:     router,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan inbound),
		snapshots:  make(chan snapshotRequest),
	}
}

// Run owns all room state until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.log.Info("hub stopped")
			return
		case client := <-h.register:
			h.router.Connect(client)
		case client := <-h.unregister:
			h.router.Disconnect(client.id)
			close(client.send)
		case in := <-h.events:
			h.router.Dispatch(in.connID, in.event)
		case req := <-h.snapshots:
			req.reply <- h.router.Snapshot(req.roomID)
		}
	}
}

// Attach hands a new client to the loop and starts its pumps.
func (h *Hub) Attach(client *Client) {
	h.register <- client
	go client.writePump()
	go client.readPump()
}

// Participants answers the REST read model without racing the loop.
func (h *Hub) Participants(ctx context.Context, roomID string) ([]domain.ParticipantInfo, error) {
	req := snapshotRequest{roomID: roomID, reply: make(chan []domain.ParticipantInfo, 1)}
	select {
	case h.snapshots <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case infos := <-req.reply:
		return infos, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
