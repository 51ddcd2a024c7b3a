package service

import (
	"errors"
	"net/http"

	"github.com/videflow/videflow/internal/domain"
)

var ErrNameRequired = errors.New("name is required")

// AuthService hands the relay a trusted (userId, userName) pair for a joining
// connection. The relay never verifies it; verification belongs to the
// surrounding application layer. This is an explicit trust boundary.
type AuthService interface {
	Identify(r *http.Request) (domain.Identity, error)
}

// QueryAuth trusts the identity carried in the upgrade request's query
// parameters, minting a guest id when no user id is supplied.
type QueryAuth struct{}

func (QueryAuth) Identify(r *http.Request) (domain.Identity, error) {
	name := r.URL.Query().Get("name")
	if name == "" {
		return domain.Identity{}, ErrNameRequired
	}

	if userID := r.URL.Query().Get("user_id"); userID != "" {
		return domain.Identity{UserID: userID, DisplayName: name}, nil
	}
	return domain.NewGuestIdentity(name), nil
}
