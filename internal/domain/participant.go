package domain

import "time"

// Participant is the per-connection record inside a room: identity plus the
// media-toggle flags other members render. Owned exclusively by the room
// directory; the connection registry keeps only a room back-reference.
type Participant struct {
	UserID        string
	DisplayName   string
	AudioEnabled  bool
	VideoEnabled  bool
	ScreenSharing bool
	JoinedAt      time.Time
}

func NewParticipant(identity Identity) *Participant {
	return &Participant{
		UserID:       identity.UserID,
		DisplayName:  identity.DisplayName,
		AudioEnabled: true,
		VideoEnabled: true,
		JoinedAt:     time.Now().UTC(),
	}
}

func (p *Participant) Info(connID string) ParticipantInfo {
	return ParticipantInfo{
		ConnectionID:  connID,
		UserID:        p.UserID,
		UserName:      p.DisplayName,
		AudioEnabled:  p.AudioEnabled,
		VideoEnabled:  p.VideoEnabled,
		ScreenSharing: p.ScreenSharing,
	}
}
