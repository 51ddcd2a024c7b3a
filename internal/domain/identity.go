package domain

import "github.com/google/uuid"

// Identity is the (userId, userName) pair the surrounding application layer
// vouches for. The relay does not verify it.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

func NewGuestIdentity(displayName string) Identity {
	return Identity{
		UserID:      uuid.New().String(),
		DisplayName: displayName,
	}
}
