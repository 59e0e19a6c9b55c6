package usecase

import (
	"context"

	"docflow/internal/domain"
)

// DefaultPolicy is the built-in rule set used when no policy engine is
// configured:
//
//   - review.decide: only the assigned reviewer
//   - review.complete: reviewer, assigner, document owner or admin
//   - review.comment: reviewer or admin
//   - document.delete: document owner or admin
type DefaultPolicy struct{}

func (DefaultPolicy) Authorize(ctx context.Context, input PolicyInput) error {
	actor := input.Actor
	if actor.ID == "" {
		return domain.Errorf(domain.KindUnauthorized, "actor is required")
	}
	if actor.IsSystem() {
		return nil
	}
	admin := actor.HasRole(domain.RoleAdmin)

	switch input.Action {
	case ActionReviewDecide:
		if input.Review != nil && input.Review.ReviewerID == actor.ID {
			return nil
		}
	case ActionReviewComplete:
		if admin {
			return nil
		}
		if input.Review != nil && (input.Review.ReviewerID == actor.ID || input.Review.AssignedByID == actor.ID) {
			return nil
		}
		if input.Document != nil && input.Document.OwnerID == actor.ID {
			return nil
		}
	case ActionReviewComment:
		if admin {
			return nil
		}
		if input.Review != nil && input.Review.ReviewerID == actor.ID {
			return nil
		}
	case ActionDocumentDelete:
		if admin {
			return nil
		}
		if input.Document != nil && input.Document.OwnerID == actor.ID {
			return nil
		}
	default:
		return domain.Errorf(domain.KindForbidden, "unknown action %q", input.Action)
	}
	return domain.Errorf(domain.KindForbidden, "%s not permitted for %s", input.Action, actor.ID)
}
