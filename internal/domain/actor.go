package domain

// RoleAdmin may complete or comment on any review and delete any document.
const RoleAdmin = "docflow_admin"

// Actor is the authenticated principal performing a transition.
type Actor struct {
	ID     string
	Roles  []string
	Scopes []string
}

// SystemActor performs engine-driven transitions.
var SystemActor = Actor{ID: AuditSystemActorID}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a Actor) IsSystem() bool {
	return a.ID == AuditSystemActorID
}
