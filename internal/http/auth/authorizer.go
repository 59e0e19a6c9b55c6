package auth

import (
	"errors"

	"docflow/internal/domain"
)

const (
	PermDocumentRead  = "documents:read"
	PermDocumentWrite = "documents:write"
	PermReviewWrite   = "reviews:write"

	DefaultAdminScope = "admin:*"
)

type AuthzError struct {
	Code string
	Err  error
}

func (e *AuthzError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code
}

func (e *AuthzError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Authorizer gates routes by scope. Per-record rules (who may decide a given
// review) are enforced by the workflow policy, not here.
type Authorizer struct {
	adminRole  string
	adminScope string
}

func NewAuthorizer() *Authorizer {
	return &Authorizer{adminRole: domain.RoleAdmin, adminScope: DefaultAdminScope}
}

func (a *Authorizer) Require(actor domain.Actor, permission string) error {
	if actor.ID == "" {
		return domain.ErrUnauthorized
	}
	if permission == "" {
		return nil
	}
	if actor.HasRole(a.adminRole) || hasScope(actor, a.adminScope) {
		return nil
	}
	if !hasScope(actor, permission) {
		return &AuthzError{Code: "MISSING_SCOPE", Err: domain.ErrForbidden}
	}
	return nil
}

func hasScope(actor domain.Actor, scope string) bool {
	if scope == "" {
		return false
	}
	for _, s := range actor.Scopes {
		if s == scope || s == DefaultAdminScope {
			return true
		}
	}
	return false
}

func IsAuthzError(err error) (*AuthzError, bool) {
	var authz *AuthzError
	if errors.As(err, &authz) {
		return authz, true
	}
	return nil, false
}
