package signal

import "github.com/videflow/videflow/internal/domain"

type room struct {
	// order holds connection ids in join order so snapshots are deterministic.
	order        []string
	participants map[string]*domain.Participant
}

func (rm *room) remove(connID string) bool {
	if _, ok := rm.participants[connID]; !ok {
		return false
	}
	delete(rm.participants, connID)
	for i, id := range rm.order {
		if id == connID {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}
	return true
}

// Directory maps room ids to their participants. Rooms are created lazily on
// first join and destroyed as soon as the last participant leaves. Like the
// registry it is owned by the hub loop.
type Directory struct {
	rooms map[string]*room
}

func NewDirectory() *Directory {
	return &Directory{rooms: make(map[string]*room)}
}

// Join inserts the participant, creating the room if needed, and returns the
// participants already present so the joiner knows who to signal with.
func (d *Directory) Join(roomID, connID string, p *domain.Participant) []domain.ParticipantInfo {
	rm, ok := d.rooms[roomID]
	if !ok {
		rm = &room{participants: make(map[string]*domain.Participant)}
		d.rooms[roomID] = rm
	}

	existing := rm.snapshot(connID)

	if _, ok := rm.participants[connID]; !ok {
		rm.order = append(rm.order, connID)
	}
	rm.participants[connID] = p

	return existing
}

// Leave removes the participant and destroys the room when it becomes empty.
// A missing room or participant is a no-op.
func (d *Directory) Leave(roomID, connID string) bool {
	rm, ok := d.rooms[roomID]
	if !ok {
		return false
	}
	if !rm.remove(connID) {
		return false
	}
	if len(rm.participants) == 0 {
		delete(d.rooms, roomID)
	}
	return true
}

// Snapshot returns the room's participants in join order, excluding the given
// connection.
func (d *Directory) Snapshot(roomID, excluding string) []domain.ParticipantInfo {
	rm, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	return rm.snapshot(excluding)
}

func (rm *room) snapshot(excluding string) []domain.ParticipantInfo {
	infos := make([]domain.ParticipantInfo, 0, len(rm.participants))
	for _, id := range rm.order {
		if id == excluding {
			continue
		}
		if p, ok := rm.participants[id]; ok {
			infos = append(infos, p.Info(id))
		}
	}
	return infos
}

// UpdateParticipant applies a media-toggle mutation to the stored record.
func (d *Directory) UpdateParticipant(roomID, connID string, mutate func(*domain.Participant)) bool {
	rm, ok := d.rooms[roomID]
	if !ok {
		return false
	}
	p, ok := rm.participants[connID]
	if !ok {
		return false
	}
	mutate(p)
	return true
}

func (d *Directory) Participant(roomID, connID string) (*domain.Participant, bool) {
	rm, ok := d.rooms[roomID]
	if !ok {
		return nil, false
	}
	p, ok := rm.participants[connID]
	return p, ok
}

// Members returns the connection ids of a room in join order.
func (d *Directory) Members(roomID string) []string {
	rm, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, len(rm.order))
	copy(out, rm.order)
	return out
}

func (d *Directory) Len(roomID string) int {
	rm, ok := d.rooms[roomID]
	if !ok {
		return 0
	}
	return len(rm.participants)
}

func (d *Directory) RoomCount() int {
	return len(d.rooms)
}

// Purge removes every trace of a connection from every room. It is the
// recovery path when registry and directory disagree about a connection.
func (d *Directory) Purge(connID string) {
	for roomID, rm := range d.rooms {
		if rm.remove(connID) && len(rm.participants) == 0 {
			delete(d.rooms, roomID)
		}
	}
}
