package auth

import (
	"errors"
	"strings"

	"docflow/internal/domain"

	"github.com/gin-gonic/gin"
)

var errReservedSubject = errors.New("reserved principal subject")

// HeaderAuthenticator trusts identity headers set by the fronting gateway.
type HeaderAuthenticator struct{}

func NewHeaderAuthenticator() *HeaderAuthenticator {
	return &HeaderAuthenticator{}
}

func (h *HeaderAuthenticator) Authenticate(c *gin.Context) (domain.Actor, error) {
	actor := domain.Actor{
		ID: strings.TrimSpace(c.GetHeader("X-Principal-Subject")),
	}
	if actor.IsSystem() {
		return domain.Actor{}, errReservedSubject
	}
	if scopes := strings.TrimSpace(c.GetHeader("X-Principal-Scopes")); scopes != "" {
		actor.Scopes = splitCSV(scopes)
	}
	if roles := strings.TrimSpace(c.GetHeader("X-Principal-Roles")); roles != "" {
		actor.Roles = splitCSV(roles)
	}
	return actor, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
