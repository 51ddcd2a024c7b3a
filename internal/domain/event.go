package domain

import "encoding/json"

type EventType string

// Client to relay.
const (
	EventJoinRoom         EventType = "join-room"
	EventOffer            EventType = "offer"
	EventAnswer           EventType = "answer"
	EventICECandidate     EventType = "ice-candidate"
	EventChatMessage      EventType = "chat-message"
	EventToggleMedia      EventType = "toggle-media"
	EventStartScreenShare EventType = "start-screen-share"
	EventStopScreenShare  EventType = "stop-screen-share"
	EventWhiteboardDraw   EventType = "whiteboard-draw"
	EventWhiteboardClear  EventType = "whiteboard-clear"
	EventLeaveRoom        EventType = "leave-room"
)

// Relay to client.
const (
	EventExistingParticipants   EventType = "existing-participants"
	EventUserJoined             EventType = "user-joined"
	EventUserLeft               EventType = "user-left"
	EventUserMediaToggle        EventType = "user-media-toggle"
	EventUserStartedScreenShare EventType = "user-started-screen-share"
	EventUserStoppedScreenShare EventType = "user-stopped-screen-share"
	EventError                  EventType = "error"
)

// Event is the envelope for every message crossing a signaling socket.
// For offer/answer/ice-candidate and whiteboard strokes the payload is an
// opaque blob forwarded verbatim; the relay never parses it.
type Event struct {
	Type    EventType       `json:"type"`
	Room    string          `json:"roomId,omitempty"`
	To      string          `json:"to,omitempty"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload carries the trusted identity supplied at join time.
type JoinPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// ParticipantInfo is the presence view of a participant shared with the room.
type ParticipantInfo struct {
	ConnectionID  string `json:"connectionId"`
	UserID        string `json:"userId"`
	UserName      string `json:"userName"`
	AudioEnabled  bool   `json:"audioEnabled"`
	VideoEnabled  bool   `json:"videoEnabled"`
	ScreenSharing bool   `json:"screenSharing"`
}

type ChatPayload struct {
	Message   string `json:"message"`
	UserName  string `json:"userName"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp,omitempty"`
}

type MediaTogglePayload struct {
	ConnectionID string `json:"connectionId,omitempty"`
	Type         string `json:"type"`
	Enabled      bool   `json:"enabled"`
}

type ScreenSharePayload struct {
	ConnectionID string `json:"connectionId,omitempty"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

const (
	MediaTypeAudio = "audio"
	MediaTypeVideo = "video"
)
