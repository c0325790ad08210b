package model

import "github.com/google/uuid"

// Principal is the authenticated caller, verified upstream. Clients act on
// their own data only; operators act on any client.
type Principal struct {
	UserID   uuid.UUID
	ClientID uuid.UUID
	Role     ActorRole
}

func (p Principal) IsOperator() bool {
	return p.Role == ActorRoleOperator
}

func (p Principal) IsClient() bool {
	return p.Role == ActorRoleClient
}

// MayAccessClient reports whether the principal may touch data belonging to
// the given client.
func (p Principal) MayAccessClient(clientID uuid.UUID) bool {
	if p.IsOperator() {
		return true
	}
	return p.ClientID == clientID
}
