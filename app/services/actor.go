package services

import "github.com/shashiranjanraj/foodie/pkg/session"

// Actor is who asks for an order operation. Services never read the
// request themselves; controllers build an Actor from the session.
type Actor struct {
	UserID string
	Admin  bool
	System bool
}

func ActorFrom(id session.Identity) Actor {
	return Actor{UserID: id.UserID, Admin: id.IsAdmin()}
}

// SystemActor is used by background jobs such as the reconciler.
func SystemActor() Actor { return Actor{Admin: true, System: true} }

func (a Actor) label() string {
	switch {
	case a.System:
		return "system"
	case a.Admin:
		return "admin"
	}
	return "owner"
}
