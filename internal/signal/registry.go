package signal

import "github.com/videflow/videflow/internal/domain"

// Association ties a live connection to the room it joined and the identity
// it joined as. It is a back-reference only; participant records live in the
// directory.
type Association struct {
	RoomID   string
	Identity domain.Identity
}

// Registry answers "what room is this connection in" for relays and cleanup.
// It is owned by the hub loop and must only be touched from that goroutine.
type Registry struct {
	conns map[string]Association
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Association)}
}

// Register stores or overwrites the association for a connection.
func (r *Registry) Register(connID, roomID string, identity domain.Identity) {
	r.conns[connID] = Association{RoomID: roomID, Identity: identity}
}

// Lookup returns the current association. A missing connection is a normal
// outcome, not an error.
func (r *Registry) Lookup(connID string) (Association, bool) {
	assoc, ok := r.conns[connID]
	return assoc, ok
}

// Remove deletes the association and returns what it was, so the caller
// knows which room to notify.
func (r *Registry) Remove(connID string) (Association, bool) {
	assoc, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	return assoc, ok
}

func (r *Registry) Len() int {
	return len(r.conns)
}
