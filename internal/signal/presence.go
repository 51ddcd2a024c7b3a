package signal

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/videflow/videflow/internal/domain"
	"github.com/videflow/videflow/lib/logger/sl"
)

// Presence builds join/leave/toggle notifications and emits them through the
// router's delivery primitives.
type Presence struct {
	log       *slog.Logger
	unicast   func(connID string, ev domain.Event)
	broadcast func(roomID, exclude string, ev domain.Event)
}

func NewPresence(log *slog.Logger, unicast func(string, domain.Event), broadcast func(string, string, domain.Event)) *Presence {
	return &Presence{log: log, unicast: unicast, broadcast: broadcast}
}

// SnapshotTo sends the joiner the list of participants already in the room.
func (p *Presence) SnapshotTo(connID, roomID string, existing []domain.ParticipantInfo) {
	p.unicast(connID, domain.Event{
		Type:    domain.EventExistingParticipants,
		Room:    roomID,
		Payload: p.marshal(existing),
	})
}

// AnnounceJoin tells the rest of the room about the new participant.
func (p *Presence) AnnounceJoin(roomID, connID string, part *domain.Participant) {
	p.broadcast(roomID, connID, domain.Event{
		Type:    domain.EventUserJoined,
		Room:    roomID,
		From:    connID,
		Payload: p.marshal(part.Info(connID)),
	})
}

// AnnounceLeave tells the remaining members that a participant is gone.
func (p *Presence) AnnounceLeave(roomID, connID string, identity domain.Identity) {
	p.broadcast(roomID, connID, domain.Event{
		Type: domain.EventUserLeft,
		Room: roomID,
		From: connID,
		Payload: p.marshal(domain.ParticipantInfo{
			ConnectionID: connID,
			UserID:       identity.UserID,
			UserName:     identity.DisplayName,
		}),
	})
}

func (p *Presence) AnnounceMediaToggle(roomID, connID, mediaType string, enabled bool) {
	p.broadcast(roomID, connID, domain.Event{
		Type: domain.EventUserMediaToggle,
		Room: roomID,
		From: connID,
		Payload: p.marshal(domain.MediaTogglePayload{
			ConnectionID: connID,
			Type:         mediaType,
			Enabled:      enabled,
		}),
	})
}

func (p *Presence) AnnounceScreenShare(roomID, connID string, identity domain.Identity, started bool) {
	eventType := domain.EventUserStoppedScreenShare
	if started {
		eventType = domain.EventUserStartedScreenShare
	}
	p.broadcast(roomID, connID, domain.Event{
		Type: eventType,
		Room: roomID,
		From: connID,
		Payload: p.marshal(domain.ScreenSharePayload{
			ConnectionID: connID,
			UserID:       identity.UserID,
			UserName:     identity.DisplayName,
		}),
	})
}

// AnnounceChat fans a server-stamped chat message out to the rest of the room.
func (p *Presence) AnnounceChat(roomID, connID string, msg *domain.ChatMessage) {
	p.broadcast(roomID, connID, domain.Event{
		Type: domain.EventChatMessage,
		Room: roomID,
		From: connID,
		Payload: p.marshal(domain.ChatPayload{
			Message:   msg.Content,
			UserName:  msg.DisplayName,
			UserID:    msg.UserID,
			Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		}),
	})
}

func (p *Presence) marshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Error("failed to marshal presence payload", sl.Err(err))
		return nil
	}
	return data
}
