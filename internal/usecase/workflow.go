package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/documents"

	"github.com/google/uuid"
)

const DefaultMaxAttempts = 3

// retryOnConflict reruns fn while it fails with domain.ErrConflict, giving up
// with ErrConcurrentModification after attempts tries.
func retryOnConflict(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return &domain.Error{
		Kind:    domain.KindConcurrentModification,
		Message: "gave up after concurrent updates",
		Err:     err,
	}
}

// assignReview creates a pending review for reviewerID against versionID.
// It must run inside the caller's transaction; the document lock keeps two
// assignments of the same reviewer from both passing the open-review check.
func assignReview(ctx context.Context, store WorkflowStore, audit *AuditEmitter, actor domain.Actor, doc documents.Document, versionID, reviewerID string, due *time.Time, now time.Time) (documents.Review, error) {
	if _, err := store.LockDocument(ctx, doc.ID); err != nil {
		return documents.Review{}, err
	}
	existing, err := store.ListReviewsByVersion(ctx, versionID)
	if err != nil {
		return documents.Review{}, err
	}
	for _, review := range existing {
		if review.ReviewerID == reviewerID && !review.IsCompleted {
			return documents.Review{}, domain.Errorf(domain.KindAlreadyAssigned, "reviewer %s already has open review %s", reviewerID, review.ID)
		}
	}
	review := documents.Review{
		ID:                uuid.NewString(),
		DocumentID:        doc.ID,
		DocumentVersionID: versionID,
		ReviewerID:        reviewerID,
		AssignedByID:      actor.ID,
		Cycle:             doc.ReviewCycle,
		DueDate:           due,
		Revision:          1,
		CreatedAt:         now,
	}
	if err := store.CreateReview(ctx, review); err != nil {
		return documents.Review{}, err
	}
	audit.RecordReview(ctx, store.AuditEvents(), domain.AuditEventReviewAssigned, actor, nil, &review)
	return review, nil
}

func dueDate(requested *time.Time, now time.Time, dueIn time.Duration) *time.Time {
	if requested != nil {
		due := requested.UTC()
		return &due
	}
	if dueIn <= 0 {
		return nil
	}
	due := now.Add(dueIn)
	return &due
}

// normalizeIDs trims, drops blanks and removes duplicates keeping order.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func authorize(ctx context.Context, policy Policy, input PolicyInput) error {
	if policy == nil {
		policy = DefaultPolicy{}
	}
	return policy.Authorize(ctx, input)
}
