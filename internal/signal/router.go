package signal

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/videflow/videflow/internal/domain"
	"github.com/videflow/videflow/lib/logger/sl"
)

const maxChatMessageLength = 4000

// Sink is the outbound half of a connection. Enqueue must never block; it
// reports false when the message was dropped.
type Sink interface {
	ID() string
	Identity() domain.Identity
	Enqueue(ev domain.Event) bool
}

// Recorder receives durable side effects off the relay path. Implementations
// must return immediately; they may drop under pressure but never block.
type Recorder interface {
	RecordChat(msg *domain.ChatMessage)
	RecordJoin(rec *domain.AttendanceRecord)
	RecordLeave(roomID, connID string, leftAt time.Time)
}

// Router dispatches typed events from connections, mutating the registry and
// directory and emitting direct relays or room broadcasts. All methods must be
// called from the hub loop; handling one event to completion before the next
// is what keeps the two structures in agreement without locks.
type Router struct {
	log       *slog.Logger
	registry  *Registry
	directory *Directory
	presence  *Presence
	recorder  Recorder
	sinks     map[string]Sink
}

func NewRouter(registry *Registry, directory *Directory, recorder Recorder, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	r := &Router{
		log:       log,
		registry:  registry,
		directory: directory,
		recorder:  recorder,
		sinks:     make(map[string]Sink),
	}
	r.presence = NewPresence(log, r.unicast, r.broadcast)
	return r
}

// Connect makes a transport session addressable. The connection stays
// unjoined until it sends join-room.
func (r *Router) Connect(s Sink) {
	r.sinks[s.ID()] = s
	r.log.Debug("connection opened", slog.String("conn_id", s.ID()))
}

// Disconnect applies the same effects as an explicit leave-room, then drops
// the transport.
func (r *Router) Disconnect(connID string) {
	r.leave(connID)
	delete(r.sinks, connID)
	r.log.Debug("connection closed", slog.String("conn_id", connID))
}

// Dispatch routes one inbound event. Malformed events are dropped and logged;
// the loop never dies on bad input.
func (r *Router) Dispatch(connID string, ev domain.Event) {
	if _, ok := r.sinks[connID]; !ok {
		return
	}

	switch ev.Type {
	case domain.EventJoinRoom:
		r.handleJoin(connID, ev)
	case domain.EventOffer, domain.EventAnswer, domain.EventICECandidate:
		r.handleRelay(connID, ev)
	case domain.EventChatMessage:
		r.handleChat(connID, ev)
	case domain.EventToggleMedia:
		r.handleToggleMedia(connID, ev)
	case domain.EventStartScreenShare:
		r.handleScreenShare(connID, ev, true)
	case domain.EventStopScreenShare:
		r.handleScreenShare(connID, ev, false)
	case domain.EventWhiteboardDraw, domain.EventWhiteboardClear:
		r.handleWhiteboard(connID, ev)
	case domain.EventLeaveRoom:
		r.leave(connID)
	default:
		r.log.Warn("unsupported event type",
			slog.String("conn_id", connID),
			slog.String("type", string(ev.Type)),
		)
	}
}

// Snapshot exposes the read-side membership view for the REST edge. Like
// every other method it runs on the hub loop.
func (r *Router) Snapshot(roomID string) []domain.ParticipantInfo {
	return r.directory.Snapshot(roomID, "")
}

func (r *Router) handleJoin(connID string, ev domain.Event) {
	if ev.Room == "" {
		r.dropMalformed(connID, ev, "missing roomId")
		return
	}

	identity := r.joinIdentity(connID, ev.Payload)
	if identity.DisplayName == "" {
		r.dropMalformed(connID, ev, "missing userName")
		return
	}

	// A join while already in a room is a rejoin: complete the leave of the
	// old room before touching the new one.
	if _, ok := r.registry.Lookup(connID); ok {
		r.leave(connID)
	}

	participant := domain.NewParticipant(identity)
	existing := r.directory.Join(ev.Room, connID, participant)
	r.registry.Register(connID, ev.Room, identity)

	r.presence.SnapshotTo(connID, ev.Room, existing)
	r.presence.AnnounceJoin(ev.Room, connID, participant)

	if r.recorder != nil {
		r.recorder.RecordJoin(domain.NewAttendanceRecord(ev.Room, connID, identity))
	}

	r.log.Info("participant joined",
		slog.String("room_id", ev.Room),
		slog.String("conn_id", connID),
		slog.String("user_id", identity.UserID),
		slog.String("display_name", identity.DisplayName),
	)
}

// joinIdentity prefers the identity fields in the join payload and falls back
// to the identity the surrounding layer attached at upgrade time. Either way
// the pair is trusted as-is.
func (r *Router) joinIdentity(connID string, payload json.RawMessage) domain.Identity {
	identity := r.sinks[connID].Identity()

	var join domain.JoinPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &join); err != nil {
			r.log.Warn("unreadable join payload", slog.String("conn_id", connID), sl.Err(err))
			return identity
		}
	}
	if join.UserID != "" {
		identity.UserID = join.UserID
	}
	if join.UserName != "" {
		identity.DisplayName = join.UserName
	}
	return identity
}

// handleRelay forwards offer/answer/ice-candidate blobs verbatim to a single
// target. An unknown target is a silent drop: the sender's own negotiation
// timeout is the user-visible signal.
func (r *Router) handleRelay(connID string, ev domain.Event) {
	if ev.To == "" {
		r.dropMalformed(connID, ev, "missing target")
		return
	}
	if _, ok := r.registry.Lookup(ev.To); !ok {
		r.log.Debug("relay target not registered",
			slog.String("conn_id", connID),
			slog.String("target", ev.To),
			slog.String("type", string(ev.Type)),
		)
		return
	}

	forward := ev
	forward.From = connID
	r.unicast(ev.To, forward)
}

func (r *Router) handleChat(connID string, ev domain.Event) {
	assoc, ok := r.registry.Lookup(connID)
	if !ok {
		r.dropMalformed(connID, ev, "sender not in a room")
		return
	}

	var chat domain.ChatPayload
	if err := json.Unmarshal(ev.Payload, &chat); err != nil {
		r.dropMalformed(connID, ev, "unreadable chat payload")
		return
	}
	chat.Message = strings.TrimSpace(chat.Message)
	if chat.Message == "" {
		r.dropMalformed(connID, ev, "empty chat message")
		return
	}
	if utf8.RuneCountInString(chat.Message) > maxChatMessageLength {
		r.dropMalformed(connID, ev, "chat message too long")
		return
	}

	identity := assoc.Identity
	if chat.UserName != "" {
		identity.DisplayName = chat.UserName
	}
	if chat.UserID != "" {
		identity.UserID = chat.UserID
	}

	msg := domain.NewChatMessage(assoc.RoomID, connID, identity, chat.Message)
	r.presence.AnnounceChat(assoc.RoomID, connID, msg)

	if r.recorder != nil {
		r.recorder.RecordChat(msg)
	}
}

func (r *Router) handleToggleMedia(connID string, ev domain.Event) {
	assoc, ok := r.registry.Lookup(connID)
	if !ok {
		r.dropMalformed(connID, ev, "sender not in a room")
		return
	}

	var toggle domain.MediaTogglePayload
	if err := json.Unmarshal(ev.Payload, &toggle); err != nil {
		r.dropMalformed(connID, ev, "unreadable toggle payload")
		return
	}
	if toggle.Type != domain.MediaTypeAudio && toggle.Type != domain.MediaTypeVideo {
		r.dropMalformed(connID, ev, "unknown media type")
		return
	}

	updated := r.directory.UpdateParticipant(assoc.RoomID, connID, func(p *domain.Participant) {
		switch toggle.Type {
		case domain.MediaTypeAudio:
			p.AudioEnabled = toggle.Enabled
		case domain.MediaTypeVideo:
			p.VideoEnabled = toggle.Enabled
		}
	})
	if !updated {
		r.recoverDesync(connID, assoc.RoomID)
		return
	}

	r.presence.AnnounceMediaToggle(assoc.RoomID, connID, toggle.Type, toggle.Enabled)
}

func (r *Router) handleScreenShare(connID string, ev domain.Event, started bool) {
	assoc, ok := r.registry.Lookup(connID)
	if !ok {
		r.dropMalformed(connID, ev, "sender not in a room")
		return
	}

	updated := r.directory.UpdateParticipant(assoc.RoomID, connID, func(p *domain.Participant) {
		p.ScreenSharing = started
	})
	if !updated {
		r.recoverDesync(connID, assoc.RoomID)
		return
	}

	r.presence.AnnounceScreenShare(assoc.RoomID, connID, assoc.Identity, started)
}

// handleWhiteboard fans a stroke or clear out to the rest of the room. The
// stroke payload is opaque, same as the WebRTC handshake blobs.
func (r *Router) handleWhiteboard(connID string, ev domain.Event) {
	assoc, ok := r.registry.Lookup(connID)
	if !ok {
		r.dropMalformed(connID, ev, "sender not in a room")
		return
	}

	forward := ev
	forward.Room = assoc.RoomID
	forward.From = connID
	r.broadcast(assoc.RoomID, connID, forward)
}

// leave removes the connection's participant from the directory and its
// association from the registry, destroying the room when it empties. A
// connection that never joined is a no-op.
func (r *Router) leave(connID string) {
	assoc, ok := r.registry.Remove(connID)
	if !ok {
		return
	}

	if !r.directory.Leave(assoc.RoomID, connID) {
		// The registry pointed at a room that does not hold this connection.
		// Scrub every trace rather than propagating the inconsistency.
		r.log.Warn("registry/directory desync on leave",
			slog.String("conn_id", connID),
			slog.String("room_id", assoc.RoomID),
		)
		r.directory.Purge(connID)
	}

	r.presence.AnnounceLeave(assoc.RoomID, connID, assoc.Identity)

	if r.recorder != nil {
		r.recorder.RecordLeave(assoc.RoomID, connID, time.Now().UTC())
	}

	r.log.Info("participant left",
		slog.String("room_id", assoc.RoomID),
		slog.String("conn_id", connID),
		slog.Int("remaining", r.directory.Len(assoc.RoomID)),
	)
}

// recoverDesync forcibly removes a connection from both structures after a
// disagreement was detected mid-operation. The connection is told its session
// state is gone so the client can rejoin instead of operating on a ghost room.
func (r *Router) recoverDesync(connID, roomID string) {
	r.log.Warn("registry/directory desync detected",
		slog.String("conn_id", connID),
		slog.String("room_id", roomID),
	)
	r.registry.Remove(connID)
	r.directory.Purge(connID)

	payload, _ := json.Marshal(domain.ErrorPayload{Error: "session state lost, rejoin the room"})
	r.unicast(connID, domain.Event{Type: domain.EventError, Room: roomID, Payload: payload})
}

func (r *Router) unicast(connID string, ev domain.Event) {
	sink, ok := r.sinks[connID]
	if !ok {
		r.log.Debug("unicast target gone", slog.String("conn_id", connID), slog.String("type", string(ev.Type)))
		return
	}
	if !sink.Enqueue(ev) {
		r.log.Debug("dropping event for slow connection", slog.String("conn_id", connID), slog.String("type", string(ev.Type)))
	}
}

func (r *Router) broadcast(roomID, exclude string, ev domain.Event) {
	for _, connID := range r.directory.Members(roomID) {
		if connID == exclude {
			continue
		}
		r.unicast(connID, ev)
	}
}

func (r *Router) dropMalformed(connID string, ev domain.Event, reason string) {
	r.log.Warn("dropping malformed event",
		slog.String("conn_id", connID),
		slog.String("type", string(ev.Type)),
		slog.String("reason", reason),
	)
}
