package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/documents"
)

// ReviewService drives single review assignments: PENDING, then a decision,
// then COMPLETED. Decisions and completions trigger re-aggregation of the
// owning document once they have committed.
type ReviewService struct {
	Store        WorkflowStore
	Audit        *AuditEmitter
	Policy       Policy
	Aggregator   Aggregator
	Clock        Clock
	DefaultDueIn time.Duration
	MaxAttempts  int
}

func NewReviewService(store WorkflowStore, audit *AuditEmitter, policy Policy, aggregator Aggregator, clock Clock) *ReviewService {
	return &ReviewService{
		Store:       store,
		Audit:       audit,
		Policy:      policy,
		Aggregator:  aggregator,
		Clock:       clock,
		MaxAttempts: DefaultMaxAttempts,
	}
}

type AssignInput struct {
	DocumentID string
	// VersionID defaults to the document's current version.
	VersionID  string
	ReviewerID string
	// DueDate defaults to now + DefaultDueIn, or no due date when that is zero.
	DueDate *time.Time
}

func (s *ReviewService) Assign(ctx context.Context, actor domain.Actor, in AssignInput) (documents.Review, error) {
	if err := s.ready(); err != nil {
		return documents.Review{}, err
	}
	in.DocumentID = strings.TrimSpace(in.DocumentID)
	in.ReviewerID = strings.TrimSpace(in.ReviewerID)
	if in.DocumentID == "" || in.ReviewerID == "" {
		return documents.Review{}, domain.Errorf(domain.KindInvalidArgument, "document_id and reviewer_id are required")
	}

	var out documents.Review
	err := retryOnConflict(ctx, s.MaxAttempts, func() error {
		return s.Store.WithTx(ctx, func(store WorkflowStore) error {
			doc, err := store.GetDocument(ctx, in.DocumentID)
			if err != nil {
				return err
			}
			if doc.Status != documents.StatusDraft && doc.Status != documents.StatusInReview {
				return domain.InvalidTransition(string(doc.Status), "assign reviewer")
			}
			versionID := in.VersionID
			if versionID == "" {
				versionID = doc.CurrentVersionID
			}
			if versionID != doc.CurrentVersionID {
				return domain.Errorf(domain.KindInvalidArgument, "version %s is not the current version of document %s", versionID, doc.ID)
			}

			now := s.now()
			review, err := assignReview(ctx, store, s.Audit, actor, doc, versionID, in.ReviewerID, dueDate(in.DueDate, now, s.DefaultDueIn), now)
			if err != nil {
				return err
			}
			if !containsID(doc.ReviewerIDs, in.ReviewerID) {
				doc.ReviewerIDs = append(append([]string(nil), doc.ReviewerIDs...), in.ReviewerID)
				doc.UpdatedAt = now
				if err := store.UpdateDocument(ctx, &doc); err != nil {
					return err
				}
			}
			out = review
			return nil
		})
	})
	if err != nil {
		return documents.Review{}, err
	}
	return out, nil
}

// Decide records an APPROVE or REJECT on a pending review. The decision is
// committed before the document is re-aggregated; when aggregation fails the
// committed review is returned together with an *AggregationError.
func (s *ReviewService) Decide(ctx context.Context, actor domain.Actor, reviewID string, decision documents.Decision, comment string) (documents.Review, error) {
	if err := s.ready(); err != nil {
		return documents.Review{}, err
	}
	if reviewID == "" {
		return documents.Review{}, domain.Errorf(domain.KindInvalidArgument, "review id is required")
	}
	if decision != documents.DecisionApprove && decision != documents.DecisionReject {
		return documents.Review{}, domain.Errorf(domain.KindInvalidArgument, "unknown decision %q", decision)
	}

	var out, seen documents.Review
	err := retryOnConflict(ctx, s.MaxAttempts, func() error {
		return s.Store.WithTx(ctx, func(store WorkflowStore) error {
			review, err := store.GetReview(ctx, reviewID)
			if err != nil {
				return err
			}
			seen = review
			if review.Decision != nil {
				return domain.Errorf(domain.KindAlreadyDecided, "review %s already decided %s", review.ID, *review.Decision)
			}
			if review.IsCompleted {
				return domain.Errorf(domain.KindAlreadyCompleted, "review %s is completed", review.ID)
			}
			if err := authorize(ctx, s.Policy, PolicyInput{Action: ActionReviewDecide, Actor: actor, Review: &review}); err != nil {
				return err
			}

			before := review
			now := s.now()
			chosen := decision
			review.Decision = &chosen
			review.ReviewDate = &now
			if comment != "" {
				review.Comment = comment
			}
			if err := store.UpdateReview(ctx, &review); err != nil {
				return err
			}
			s.Audit.RecordReview(ctx, store.AuditEvents(), domain.AuditEventReviewDecided, actor, &before, &review)
			out = review
			return nil
		})
	})
	if err != nil {
		s.recordFailure(ctx, domain.AuditEventReviewDecided, actor, seen, err)
		return documents.Review{}, err
	}
	return out, s.aggregate(ctx, out)
}

// Complete closes a review. Completing a review that was never decided is
// permitted and counts as an abstention.
func (s *ReviewService) Complete(ctx context.Context, actor domain.Actor, reviewID string) (documents.Review, error) {
	if err := s.ready(); err != nil {
		return documents.Review{}, err
	}
	if reviewID == "" {
		return documents.Review{}, domain.Errorf(domain.KindInvalidArgument, "review id is required")
	}

	var out, seen documents.Review
	err := retryOnConflict(ctx, s.MaxAttempts, func() error {
		return s.Store.WithTx(ctx, func(store WorkflowStore) error {
			review, err := store.GetReview(ctx, reviewID)
			if err != nil {
				return err
			}
			seen = review
			if review.IsCompleted {
				return domain.Errorf(domain.KindAlreadyCompleted, "review %s is completed", review.ID)
			}
			doc, err := store.GetDocument(ctx, review.DocumentID)
			if err != nil {
				return err
			}
			if err := authorize(ctx, s.Policy, PolicyInput{Action: ActionReviewComplete, Actor: actor, Document: &doc, Review: &review}); err != nil {
				return err
			}

			before := review
			now := s.now()
			review.IsCompleted = true
			review.CompletedAt = &now
			review.CompletedByID = actor.ID
			if err := store.UpdateReview(ctx, &review); err != nil {
				return err
			}
			s.Audit.RecordReview(ctx, store.AuditEvents(), domain.AuditEventReviewCompleted, actor, &before, &review)
			out = review
			return nil
		})
	})
	if err != nil {
		s.recordFailure(ctx, domain.AuditEventReviewCompleted, actor, seen, err)
		return documents.Review{}, err
	}
	return out, s.aggregate(ctx, out)
}

func (s *ReviewService) UpdateComment(ctx context.Context, actor domain.Actor, reviewID, comment string) (documents.Review, error) {
	if err := s.ready(); err != nil {
		return documents.Review{}, err
	}
	if reviewID == "" {
		return documents.Review{}, domain.Errorf(domain.KindInvalidArgument, "review id is required")
	}

	var out documents.Review
	err := retryOnConflict(ctx, s.MaxAttempts, func() error {
		return s.Store.WithTx(ctx, func(store WorkflowStore) error {
			review, err := store.GetReview(ctx, reviewID)
			if err != nil {
				return err
			}
			if review.IsCompleted {
				return domain.Errorf(domain.KindAlreadyCompleted, "review %s is completed", review.ID)
			}
			if err := authorize(ctx, s.Policy, PolicyInput{Action: ActionReviewComment, Actor: actor, Review: &review}); err != nil {
				return err
			}
			out = review
			if review.Comment == comment {
				return nil
			}
			before := review
			review.Comment = comment
			if err := store.UpdateReview(ctx, &review); err != nil {
				return err
			}
			s.Audit.RecordReview(ctx, store.AuditEvents(), domain.AuditEventReviewCommented, actor, &before, &review)
			out = review
			return nil
		})
	})
	if err != nil {
		return documents.Review{}, err
	}
	return out, nil
}

func (s *ReviewService) Get(ctx context.Context, reviewID string) (documents.Review, error) {
	if err := s.ready(); err != nil {
		return documents.Review{}, err
	}
	return s.Store.GetReview(ctx, reviewID)
}

func (s *ReviewService) ListByDocument(ctx context.Context, documentID string) ([]documents.Review, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := s.Store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.Store.ListReviewsByDocument(ctx, documentID)
}

// ListOverdue returns pending reviews whose due date has passed.
func (s *ReviewService) ListOverdue(ctx context.Context, limit int) ([]documents.Review, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Store.ListOverdueReviews(ctx, s.now(), limit)
}

// AggregationError reports a review change that committed while folding it
// into the document status failed. The review call must not be retried;
// AggregateDecision can be.
type AggregationError struct {
	DocumentID string
	Err        error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate document %s: %v", e.DocumentID, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

func (s *ReviewService) aggregate(ctx context.Context, review documents.Review) error {
	if s.Aggregator == nil {
		return nil
	}
	if _, err := s.Aggregator.AggregateDecision(ctx, review.DocumentID, review.DocumentVersionID); err != nil {
		return &AggregationError{DocumentID: review.DocumentID, Err: err}
	}
	return nil
}

func (s *ReviewService) recordFailure(ctx context.Context, eventType domain.AuditEventType, actor domain.Actor, review documents.Review, cause error) {
	if review.ID == "" {
		return
	}
	switch {
	case errors.Is(cause, domain.ErrAlreadyDecided), errors.Is(cause, domain.ErrAlreadyCompleted), errors.Is(cause, domain.ErrForbidden):
		s.Audit.RecordFailure(ctx, s.Store.AuditEvents(), eventType, actor, review.DocumentID,
			domain.AuditTarget{ID: review.ID, Type: domain.AuditTargetReview}, cause)
	}
}

func (s *ReviewService) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("review store is required")
	}
	return nil
}

func (s *ReviewService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}
