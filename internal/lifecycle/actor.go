// Package lifecycle holds the marketplace state machines as pure functions.
// Each transition takes the current documents, a requested move and the acting
// user, and returns the new documents plus the effects the caller must apply
// in the same unit of work. Nothing here touches the database.
package lifecycle

import (
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

// Actor is the user performing a transition, as re-read from storage.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

func (a Actor) IsAdmin() bool    { return a.Role == models.RoleAdmin }
func (a Actor) IsClient() bool   { return a.Role == models.RoleClient }
func (a Actor) IsProvider() bool { return a.Role == models.RoleProvider }

// owns reports whether the actor is the given owner or an admin.
func (a Actor) owns(owner uuid.UUID) bool {
	return a.IsAdmin() || (a.IsClient() && a.ID == owner)
}
