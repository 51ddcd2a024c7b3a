package signal

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videflow/videflow/internal/domain"
)

type fakeSink struct {
	id       string
	identity domain.Identity
	events   []domain.Event
	full     bool
}

func (s *fakeSink) ID() string { return s.id }

func (s *fakeSink) Identity() domain.Identity { return s.identity }

func (s *fakeSink) Enqueue(ev domain.Event) bool {
	if s.full {
		return false
	}
	s.events = append(s.events, ev)
	return true
}

func (s *fakeSink) lastEvent(t *testing.T) domain.Event {
	t.Helper()
	require.NotEmpty(t, s.events)
	return s.events[len(s.events)-1]
}

func (s *fakeSink) eventsOfType(eventType domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range s.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type fakeRecorder struct {
	chats  []*domain.ChatMessage
	joins  []*domain.AttendanceRecord
	leaves []string
}

func (r *fakeRecorder) RecordChat(msg *domain.ChatMessage) { r.chats = append(r.chats, msg) }

func (r *fakeRecorder) RecordJoin(rec *domain.AttendanceRecord) { r.joins = append(r.joins, rec) }

func (r *fakeRecorder) RecordLeave(roomID, connID string, _ time.Time) {
	r.leaves = append(r.leaves, roomID+"/"+connID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T) (*Router, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{}
	return NewRouter(NewRegistry(), NewDirectory(), rec, testLogger()), rec
}

func connect(t *testing.T, r *Router, id, userID, userName string) *fakeSink {
	t.Helper()
	sink := &fakeSink{id: id, identity: domain.Identity{UserID: userID, DisplayName: userName}}
	r.Connect(sink)
	return sink
}

func joinEvent(t *testing.T, roomID, userID, userName string) domain.Event {
	t.Helper()
	payload, err := json.Marshal(domain.JoinPayload{UserID: userID, UserName: userName})
	require.NoError(t, err)
	return domain.Event{Type: domain.EventJoinRoom, Room: roomID, Payload: payload}
}

func join(t *testing.T, r *Router, sink *fakeSink, roomID string) {
	t.Helper()
	r.Dispatch(sink.id, joinEvent(t, roomID, sink.identity.UserID, sink.identity.DisplayName))
}

func decodeParticipants(t *testing.T, ev domain.Event) []domain.ParticipantInfo {
	t.Helper()
	var infos []domain.ParticipantInfo
	require.NoError(t, json.Unmarshal(ev.Payload, &infos))
	return infos
}

func TestRouter_JoinSendsSnapshotAndAnnounces(t *testing.T) {
	r, rec := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	join(t, r, alice, "R1")

	snap := alice.eventsOfType(domain.EventExistingParticipants)
	require.Len(t, snap, 1)
	assert.Empty(t, decodeParticipants(t, snap[0]))

	bob := connect(t, r, "B", "u2", "Bob")
	join(t, r, bob, "R1")

	snap = bob.eventsOfType(domain.EventExistingParticipants)
	require.Len(t, snap, 1)
	infos := decodeParticipants(t, snap[0])
	require.Len(t, infos, 1)
	assert.Equal(t, "A", infos[0].ConnectionID)
	assert.Equal(t, "Alice", infos[0].UserName)

	joined := alice.eventsOfType(domain.EventUserJoined)
	require.Len(t, joined, 1)
	var info domain.ParticipantInfo
	require.NoError(t, json.Unmarshal(joined[0].Payload, &info))
	assert.Equal(t, "B", info.ConnectionID)
	assert.Equal(t, "Bob", info.UserName)

	// The joiner never sees its own user-joined.
	assert.Empty(t, bob.eventsOfType(domain.EventUserJoined))

	require.Len(t, rec.joins, 2)
	assert.Equal(t, "R1", rec.joins[0].RoomID)
}

func TestRouter_JoinWithoutRoomIsDropped(t *testing.T) {
	r, rec := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	r.Dispatch("A", domain.Event{Type: domain.EventJoinRoom})

	assert.Empty(t, alice.events)
	assert.Empty(t, rec.joins)
}

func TestRouter_JoinFallsBackToUpgradeIdentity(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	r.Dispatch("A", domain.Event{Type: domain.EventJoinRoom, Room: "R1"})

	infos := r.Snapshot("R1")
	require.Len(t, infos, 1)
	assert.Equal(t, "u1", infos[0].UserID)
	assert.Equal(t, "Alice", infos[0].UserName)
	require.NotEmpty(t, alice.eventsOfType(domain.EventExistingParticipants))
}

func TestRouter_RelayIsUnicastOnly(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	bob := connect(t, r, "B", "u2", "Bob")
	carol := connect(t, r, "C", "u3", "Carol")
	join(t, r, alice, "R1")
	join(t, r, bob, "R1")
	join(t, r, carol, "R1")

	offer := json.RawMessage(`{"sdp":"v=0...","type":"offer"}`)
	r.Dispatch("B", domain.Event{Type: domain.EventOffer, To: "A", Payload: offer})

	got := alice.eventsOfType(domain.EventOffer)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].From)
	assert.JSONEq(t, string(offer), string(got[0].Payload))

	assert.Empty(t, bob.eventsOfType(domain.EventOffer))
	assert.Empty(t, carol.eventsOfType(domain.EventOffer))
}

func TestRouter_RelayToUnknownTargetIsSilentlyDropped(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	join(t, r, alice, "R1")

	before := len(alice.events)
	r.Dispatch("A", domain.Event{Type: domain.EventICECandidate, To: "ghost", Payload: json.RawMessage(`{}`)})
	assert.Len(t, alice.events, before)
}

func TestRouter_RelayPayloadForwardedVerbatim(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	bob := connect(t, r, "B", "u2", "Bob")
	join(t, r, alice, "R1")
	join(t, r, bob, "R1")

	// Content the relay must not interpret, including unknown fields.
	blob := json.RawMessage(`{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54321 typ host","weird":[1,2,3]}`)
	r.Dispatch("A", domain.Event{Type: domain.EventICECandidate, To: "B", Payload: blob})

	got := bob.eventsOfType(domain.EventICECandidate)
	require.Len(t, got, 1)
	assert.Equal(t, string(blob), string(got[0].Payload))
}

func TestRouter_ChatBroadcastStampsTimestamp(t *testing.T) {
	r, rec := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	bob := connect(t, r, "B", "u2", "Bob")
	join(t, r, alice, "R1")
	join(t, r, bob, "R1")

	payload, _ := json.Marshal(domain.ChatPayload{Message: "hello", UserName: "Alice", UserID: "u1"})
	r.Dispatch("A", domain.Event{Type: domain.EventChatMessage, Payload: payload})

	got := bob.eventsOfType(domain.EventChatMessage)
	require.Len(t, got, 1)

	var chat domain.ChatPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &chat))
	assert.Equal(t, "hello", chat.Message)
	assert.Equal(t, "Alice", chat.UserName)
	assert.Equal(t, "u1", chat.UserID)

	ts, err := time.Parse(time.RFC3339Nano, chat.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, 5*time.Second)

	// Sender does not receive its own chat back.
	assert.Empty(t, alice.eventsOfType(domain.EventChatMessage))

	require.Len(t, rec.chats, 1)
	assert.Equal(t, "hello", rec.chats[0].Content)
	assert.Equal(t, "R1", rec.chats[0].RoomID)
}

func TestRouter_ChatFromUnjoinedConnectionIsDropped(t *testing.T) {
	r, rec := newTestRouter(t)

	connect(t, r, "A", "u1", "Alice")
	payload, _ := json.Marshal(domain.ChatPayload{Message: "hello"})
	r.Dispatch("A", domain.Event{Type: domain.EventChatMessage, Payload: payload})

	assert.Empty(t, rec.chats)
}

func TestRouter_ChatEmptyMessageIsDropped(t *testing.T) {
	r, rec := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	bob := connect(t, r, "B", "u2", "Bob")
	join(t, r, alice, "R1")
	join(t, r, bob, "R1")

	payload, _ := json.Marshal(domain.ChatPayload{Message: "   "})
	r.Dispatch("A", domain.Event{Type: domain.EventChatMessage, Payload: payload})

	assert.Empty(t, bob.eventsOfType(domain.EventChatMessage))
	assert.Empty(t, rec.chats)
}

func TestRouter_ToggleMediaUpdatesFlagAndBroadcasts(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	bob := connect(t, r, "B", "u2", "Bob")
	join(t, r, alice, "R1")
	join(t, r, bob, "R1")

	payload, _ := json.Marshal(domain.MediaTogglePayload{Type: domain.MediaTypeAudio, Enabled: false})
	r.Dispatch("A", domain.Event{Type: domain.EventToggleMedia, Payload: payload})

	got := bob.eventsOfType(domain.EventUserMediaToggle)
	require.Len(t, got, 1)

	var toggle domain.MediaTogglePayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &toggle))
	assert.Equal(t, "A", toggle.ConnectionID)
	assert.Equal(t, domain.MediaTypeAudio, toggle.Type)
	assert.False(t, toggle.Enabled)

	infos := r.Snapshot("R1")
	for _, info := range infos {
		if info.ConnectionID == "A" {
			assert.False(t, info.AudioEnabled)
			assert.True(t, info.VideoEnabled)
		}
	}

	assert.Empty(t, alice.eventsOfType(domain.EventUserMediaToggle))
}

func TestRouter_ToggleMediaUnknownTypeIsDropped(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	bob := connect(t, r, "B", "u2", "Bob")
	join(t, r, alice, "R1")
	join(t, r, bob, "R1")

	payload, _ := json.Marshal(domain.MediaTogglePayload{Type: "hologram", Enabled: true})
	r.Dispatch("A", domain.Event{Type: domain.EventToggleMedia, Payload: payload})

	assert.Empty(t, bob.eventsOfType(domain.EventUserMediaToggle))
}

func TestRouter_ScreenShareBroadcasts(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	bob := connect(t, r, "B", "u2", "Bob")
	join(t, r, alice, "R1")
	join(t, r, bob, "R1")

	r.Dispatch("A", domain.Event{Type: domain.EventStartScreenShare})

	got := bob.eventsOfType(domain.EventUserStartedScreenShare)
	require.Len(t, got, 1)
	var share domain.ScreenSharePayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &share))
	assert.Equal(t, "A", share.ConnectionID)
	assert.Equal(t, "Alice", share.UserName)

	p, ok := r.directory.Participant("R1", "A")
	require.True(t, ok)
	assert.True(t, p.ScreenSharing)

	r.Dispatch("A", domain.Event{Type: domain.EventStopScreenShare})
	require.Len(t, bob.eventsOfType(domain.EventUserStoppedScreenShare), 1)

	p, ok = r.directory.Participant("R1", "A")
	require.True(t, ok)
	assert.False(t, p.ScreenSharing)
}

func TestRouter_WhiteboardFanOutIsContentBlind(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	bob := connect(t, r, "B", "u2", "Bob")
	carol := connect(t, r, "C", "u3", "Carol")
	join(t, r, alice, "R1")
	join(t, r, bob, "R1")
	join(t, r, carol, "R1")

	stroke := json.RawMessage(`{"x0":1,"y0":2,"x1":3,"y1":4,"color":"#ff0000"}`)
	r.Dispatch("A", domain.Event{Type: domain.EventWhiteboardDraw, Payload: stroke})

	for _, sink := range []*fakeSink{bob, carol} {
		got := sink.eventsOfType(domain.EventWhiteboardDraw)
		require.Len(t, got, 1)
		assert.Equal(t, "A", got[0].From)
		assert.Equal(t, string(stroke), string(got[0].Payload))
	}
	assert.Empty(t, alice.eventsOfType(domain.EventWhiteboardDraw))

	r.Dispatch("A", domain.Event{Type: domain.EventWhiteboardClear})
	require.Len(t, bob.eventsOfType(domain.EventWhiteboardClear), 1)
}

func TestRouter_LeaveNotifiesAndDestroysEmptyRoom(t *testing.T) {
	r, rec := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	bob := connect(t, r, "B", "u2", "Bob")
	join(t, r, alice, "R1")
	join(t, r, bob, "R1")

	r.Dispatch("A", domain.Event{Type: domain.EventLeaveRoom})

	got := bob.eventsOfType(domain.EventUserLeft)
	require.Len(t, got, 1)
	var info domain.ParticipantInfo
	require.NoError(t, json.Unmarshal(got[0].Payload, &info))
	assert.Equal(t, "A", info.ConnectionID)
	assert.Equal(t, "Alice", info.UserName)

	assert.Equal(t, 1, r.directory.Len("R1"))
	assert.Equal(t, []string{"R1/A"}, rec.leaves)

	r.Dispatch("B", domain.Event{Type: domain.EventLeaveRoom})
	assert.Equal(t, 0, r.directory.RoomCount())
	assert.Equal(t, 0, r.registry.Len())
}

func TestRouter_DisconnectEqualsLeave(t *testing.T) {
	r, rec := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	bob := connect(t, r, "B", "u2", "Bob")
	join(t, r, alice, "R1")
	join(t, r, bob, "R1")

	r.Disconnect("A")

	got := bob.eventsOfType(domain.EventUserLeft)
	require.Len(t, got, 1)
	assert.Equal(t, 1, r.directory.Len("R1"))
	assert.Equal(t, []string{"R1/A"}, rec.leaves)

	// Events from the dead connection are ignored.
	r.Dispatch("A", domain.Event{Type: domain.EventChatMessage, Payload: json.RawMessage(`{"message":"ghost"}`)})
	assert.Empty(t, bob.eventsOfType(domain.EventChatMessage))
}

func TestRouter_RejoinLeavesOldRoomFirst(t *testing.T) {
	r, rec := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	bob := connect(t, r, "B", "u2", "Bob")
	join(t, r, alice, "R1")
	join(t, r, bob, "R1")

	join(t, r, alice, "R2")

	// Bob saw Alice leave R1.
	require.Len(t, bob.eventsOfType(domain.EventUserLeft), 1)

	assert.Equal(t, 1, r.directory.Len("R1"))
	assert.Equal(t, 1, r.directory.Len("R2"))

	assoc, ok := r.registry.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, "R2", assoc.RoomID)

	assert.Equal(t, []string{"R1/A"}, rec.leaves)
}

func TestRouter_SlowSinkDropsWithoutBlocking(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	join(t, r, alice, "R1")

	slow := &fakeSink{id: "B", identity: domain.Identity{UserID: "u2", DisplayName: "Bob"}, full: true}
	r.Connect(slow)
	r.Dispatch("B", joinEvent(t, "R1", "u2", "Bob"))

	// Bob's snapshot was dropped by the saturated sink, but the room state is
	// intact and Alice still got the join notification.
	assert.Equal(t, 2, r.directory.Len("R1"))
	require.Len(t, alice.eventsOfType(domain.EventUserJoined), 1)
}

func TestRouter_UnknownEventTypeIsIgnored(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	join(t, r, alice, "R1")

	before := len(alice.events)
	r.Dispatch("A", domain.Event{Type: "reboot-universe"})
	assert.Len(t, alice.events, before)
	assert.Equal(t, 1, r.directory.Len("R1"))
}

func TestRouter_DesyncPurgesBothStructures(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")

	// Force the failure case: registered to a room the directory never saw.
	r.registry.Register("A", "R1", alice.identity)

	payload, _ := json.Marshal(domain.MediaTogglePayload{Type: domain.MediaTypeAudio, Enabled: false})
	r.Dispatch("A", domain.Event{Type: domain.EventToggleMedia, Payload: payload})

	_, ok := r.registry.Lookup("A")
	assert.False(t, ok)
	assert.Equal(t, 0, r.directory.RoomCount())

	errs := alice.eventsOfType(domain.EventError)
	require.Len(t, errs, 1)
	var errPayload domain.ErrorPayload
	require.NoError(t, json.Unmarshal(errs[0].Payload, &errPayload))
	assert.NotEmpty(t, errPayload.Error)
}

// Registry and directory must agree after any sequence of operations.
func TestRouter_StructuresStayInAgreement(t *testing.T) {
	r, _ := newTestRouter(t)

	sinks := make([]*fakeSink, 0, 6)
	for _, id := range []string{"A", "B", "C", "D", "E", "F"} {
		s := connect(t, r, id, "u-"+id, "user-"+id)
		sinks = append(sinks, s)
	}

	join(t, r, sinks[0], "R1")
	join(t, r, sinks[1], "R1")
	join(t, r, sinks[2], "R2")
	join(t, r, sinks[3], "R2")
	r.Dispatch("A", domain.Event{Type: domain.EventLeaveRoom})
	join(t, r, sinks[4], "R1")
	r.Disconnect("D")
	join(t, r, sinks[0], "R2") // A rejoins elsewhere
	join(t, r, sinks[5], "R3")
	r.Dispatch("F", domain.Event{Type: domain.EventLeaveRoom})

	// Every registered connection appears in exactly its registry room.
	total := 0
	for _, id := range []string{"A", "B", "C", "D", "E", "F"} {
		assoc, ok := r.registry.Lookup(id)
		if !ok {
			continue
		}
		_, present := r.directory.Participant(assoc.RoomID, id)
		assert.True(t, present, "registry says %s is in %s but directory disagrees", id, assoc.RoomID)
		total++
	}

	// And every directory member is registered to that room.
	rooms := map[string]int{"R1": 0, "R2": 0, "R3": 0}
	members := 0
	for roomID := range rooms {
		for _, connID := range r.directory.Members(roomID) {
			assoc, ok := r.registry.Lookup(connID)
			require.True(t, ok)
			assert.Equal(t, roomID, assoc.RoomID)
			members++
		}
	}
	assert.Equal(t, total, members)

	// R3 emptied out and must be gone.
	assert.Equal(t, 0, r.directory.Len("R3"))
}

// The end-to-end scenario from the product requirements: Alice and Bob meet
// in R1, exchange an offer, then Alice drops.
func TestRouter_MeetingLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)

	alice := connect(t, r, "A", "u1", "Alice")
	join(t, r, alice, "R1")

	snap := alice.eventsOfType(domain.EventExistingParticipants)
	require.Len(t, snap, 1)
	assert.Empty(t, decodeParticipants(t, snap[0]))

	bob := connect(t, r, "B", "u2", "Bob")
	join(t, r, bob, "R1")

	infos := decodeParticipants(t, bob.eventsOfType(domain.EventExistingParticipants)[0])
	require.Len(t, infos, 1)
	assert.Equal(t, "A", infos[0].ConnectionID)
	assert.Equal(t, "Alice", infos[0].UserName)

	joined := alice.eventsOfType(domain.EventUserJoined)
	require.Len(t, joined, 1)

	r.Dispatch("B", domain.Event{
		Type:    domain.EventOffer,
		To:      "A",
		Payload: json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})
	offers := alice.eventsOfType(domain.EventOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, "B", offers[0].From)

	r.Disconnect("A")

	left := bob.eventsOfType(domain.EventUserLeft)
	require.Len(t, left, 1)
	var info domain.ParticipantInfo
	require.NoError(t, json.Unmarshal(left[0].Payload, &info))
	assert.Equal(t, "A", info.ConnectionID)

	assert.Equal(t, 1, r.directory.Len("R1"))
	members := r.directory.Members("R1")
	assert.Equal(t, []string{"B"}, members)
}
