package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/documents"
	"docflow/internal/domain/schedule"
	"docflow/internal/domain/versioning"

	"github.com/google/uuid"
)

// LifecycleService owns document status: DRAFT -> IN_REVIEW -> APPROVED ->
// EXPIRED -> IN_REVIEW. Every transition is one WithTx unit; a guard failure
// leaves the stored state untouched.
type LifecycleService struct {
	Store       WorkflowStore
	Audit       *AuditEmitter
	Policy      Policy
	Clock       Clock
	MaxAttempts int
	// ReviewDueIn sets the due date of reviews created on submit and reopen.
	ReviewDueIn time.Duration
}

func NewLifecycleService(store WorkflowStore, audit *AuditEmitter, policy Policy, clock Clock) *LifecycleService {
	return &LifecycleService{
		Store:       store,
		Audit:       audit,
		Policy:      policy,
		Clock:       clock,
		MaxAttempts: DefaultMaxAttempts,
	}
}

type CreateDocumentInput struct {
	Title           string
	Description     string
	Classification  string
	ReviewFrequency string
	OwnerID         string
	TypeID          string
	ISOClauseID     string
	ReviewerIDs     []string
	FileURL         string
	DraftURL        string
}

func (s *LifecycleService) CreateDocument(ctx context.Context, actor domain.Actor, in CreateDocumentInput) (documents.Document, error) {
	if err := s.ready(); err != nil {
		return documents.Document{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return documents.Document{}, domain.Errorf(domain.KindInvalidArgument, "title is required")
	}
	frequency := documents.FrequencyAsNeeded
	if strings.TrimSpace(in.ReviewFrequency) != "" {
		parsed, err := documents.ParseFrequency(in.ReviewFrequency)
		if err != nil {
			return documents.Document{}, err
		}
		frequency = parsed
	}
	owner := strings.TrimSpace(in.OwnerID)
	if owner == "" {
		owner = actor.ID
	}
	if owner == "" {
		return documents.Document{}, domain.Errorf(domain.KindInvalidArgument, "owner_id is required")
	}

	now := s.now()
	version := documents.Version{
		ID:        uuid.NewString(),
		Version:   versioning.Initial,
		IsCurrent: true,
		FileURL:   in.FileURL,
		DraftURL:  in.DraftURL,
		CreatedAt: now,
	}
	doc := documents.Document{
		ID:               uuid.NewString(),
		Title:            title,
		Description:      in.Description,
		Status:           documents.StatusDraft,
		Classification:   in.Classification,
		ReviewFrequency:  frequency,
		OwnerID:          owner,
		TypeID:           in.TypeID,
		ISOClauseID:      in.ISOClauseID,
		CurrentVersionID: version.ID,
		ReviewerIDs:      normalizeIDs(in.ReviewerIDs),
		ReviewCycle:      1,
		Revision:         1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	version.DocumentID = doc.ID

	err := s.Store.WithTx(ctx, func(store WorkflowStore) error {
		if err := store.CreateDocument(ctx, doc); err != nil {
			return err
		}
		if err := store.CreateVersion(ctx, version); err != nil {
			return err
		}
		s.Audit.RecordDocument(ctx, store.AuditEvents(), domain.AuditEventDocumentCreated, actor, nil, &doc,
			domain.AuditTarget{ID: version.ID, Type: domain.AuditTargetVersion})
		return nil
	})
	if err != nil {
		return documents.Document{}, err
	}
	return doc, nil
}

// SubmitForReview moves a DRAFT document to IN_REVIEW. Reviews are opened for
// reviewerIDs, or for the document's configured reviewer set when none are
// given; reviewers that already hold an open review on the current version
// keep it. Decisions recorded while the document was a draft are aggregated
// right after the transition commits.
func (s *LifecycleService) SubmitForReview(ctx context.Context, actor domain.Actor, documentID string, reviewerIDs []string) (documents.Document, error) {
	if err := s.ready(); err != nil {
		return documents.Document{}, err
	}
	requested := normalizeIDs(reviewerIDs)

	var out documents.Document
	err := retryOnConflict(ctx, s.MaxAttempts, func() error {
		return s.Store.WithTx(ctx, func(store WorkflowStore) error {
			doc, err := store.GetDocument(ctx, documentID)
			if err != nil {
				return err
			}
			if doc.Status != documents.StatusDraft {
				return domain.InvalidTransition(string(doc.Status), "submit for review")
			}
			reviews, err := store.ListReviewsByVersion(ctx, doc.CurrentVersionID)
			if err != nil {
				return err
			}
			open := map[string]struct{}{}
			for _, review := range documents.OpenReviews(documents.CycleReviews(reviews, doc.ReviewCycle)) {
				open[review.ReviewerID] = struct{}{}
			}
			candidates := requested
			if len(candidates) == 0 {
				candidates = doc.ReviewerIDs
			}

			now := s.now()
			due := dueDate(nil, now, s.ReviewDueIn)
			for _, reviewerID := range candidates {
				if _, ok := open[reviewerID]; ok {
					continue
				}
				if _, err := assignReview(ctx, store, s.Audit, actor, doc, doc.CurrentVersionID, reviewerID, due, now); err != nil {
					return err
				}
				open[reviewerID] = struct{}{}
			}
			if len(open) == 0 {
				return domain.Errorf(domain.KindNoReviewersAssigned, "document %s has no reviewers", doc.ID)
			}

			before := doc
			doc.ReviewerIDs = normalizeIDs(append(append([]string(nil), doc.ReviewerIDs...), requested...))
			doc.Status = documents.StatusInReview
			doc.UpdatedAt = now
			if err := store.UpdateDocument(ctx, &doc); err != nil {
				return err
			}
			s.Audit.RecordDocument(ctx, store.AuditEvents(), domain.AuditEventDocumentSubmitted, actor, &before, &doc)
			out = doc
			return nil
		})
	})
	if err != nil {
		return documents.Document{}, err
	}
	return s.AggregateDecision(ctx, out.ID, out.CurrentVersionID)
}

// AggregateDecision folds the reviews of versionID (the current version when
// empty) into the document status. It is a no-op unless the document is
// IN_REVIEW on that version, so repeated calls are safe. Optimistic conflicts
// rerun the whole read-compute-write cycle up to MaxAttempts times.
func (s *LifecycleService) AggregateDecision(ctx context.Context, documentID, versionID string) (documents.Document, error) {
	if err := s.ready(); err != nil {
		return documents.Document{}, err
	}

	var out documents.Document
	err := retryOnConflict(ctx, s.MaxAttempts, func() error {
		return s.Store.WithTx(ctx, func(store WorkflowStore) error {
			doc, err := store.GetDocument(ctx, documentID)
			if err != nil {
				return err
			}
			out = doc
			target := versionID
			if target == "" {
				target = doc.CurrentVersionID
			}
			if doc.Status != documents.StatusInReview || doc.CurrentVersionID != target {
				return nil
			}
			reviews, err := store.ListReviewsByVersion(ctx, target)
			if err != nil {
				return err
			}
			reviews = documents.CycleReviews(reviews, doc.ReviewCycle)

			now := s.now()
			switch documents.AggregateReviews(reviews) {
			case documents.OutcomeHasRejection:
				err = s.reject(ctx, store, &doc, reviews, now)
			case documents.OutcomeApproveAll:
				err = s.approve(ctx, store, &doc, now)
			default:
				return nil
			}
			if err != nil {
				return err
			}
			out = doc
			return nil
		})
	})
	if err != nil {
		return documents.Document{}, err
	}
	return out, nil
}

// reject returns the document to DRAFT on its current version and closes the
// cycle: reviews still open are superseded and completed by the system so
// late decisions fail. Completed reviews are left as they are; the next
// cycle number keeps their decisions out of later aggregations.
func (s *LifecycleService) reject(ctx context.Context, store WorkflowStore, doc *documents.Document, reviews []documents.Review, now time.Time) error {
	before := *doc
	doc.Status = documents.StatusDraft
	doc.ReviewCycle++
	doc.UpdatedAt = now
	if err := store.UpdateDocument(ctx, doc); err != nil {
		return err
	}
	s.Audit.RecordDocument(ctx, store.AuditEvents(), domain.AuditEventDocumentRejected, domain.SystemActor, &before, doc)

	for _, review := range reviews {
		if review.IsCompleted {
			continue
		}
		prior := review
		review.Superseded = true
		review.IsCompleted = true
		review.CompletedAt = &now
		review.CompletedByID = domain.AuditSystemActorID
		if err := store.UpdateReview(ctx, &review); err != nil {
			return err
		}
		s.Audit.RecordReview(ctx, store.AuditEvents(), domain.AuditEventReviewSuperseded, domain.SystemActor, &prior, &review)
	}
	return nil
}

// approve seals the approved content as a new PATCH version and schedules
// the next periodic review.
func (s *LifecycleService) approve(ctx context.Context, store WorkflowStore, doc *documents.Document, now time.Time) error {
	current, err := store.GetVersion(ctx, doc.CurrentVersionID)
	if err != nil {
		return err
	}
	next, err := versioning.Bump(current.Version, versioning.Patch)
	if err != nil {
		return err
	}
	sealed := documents.Version{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Version:    next,
		IsCurrent:  true,
		FileURL:    current.FileURL,
		DraftURL:   current.DraftURL,
		CreatedAt:  now,
	}

	before := *doc
	doc.Status = documents.StatusApproved
	doc.CurrentVersionID = sealed.ID
	doc.NextReviewDate = schedule.NextDueDate(&now, doc.ReviewFrequency, nil)
	doc.UpdatedAt = now
	if err := store.UpdateDocument(ctx, doc); err != nil {
		return err
	}
	if err := s.promote(ctx, store, sealed); err != nil {
		return err
	}
	s.Audit.RecordDocument(ctx, store.AuditEvents(), domain.AuditEventDocumentApproved, domain.SystemActor, &before, doc,
		domain.AuditTarget{ID: sealed.ID, Type: domain.AuditTargetVersion})
	return nil
}

// CheckExpiry moves an APPROVED document whose next review date has passed
// to EXPIRED. A document that is not yet due is returned unchanged.
func (s *LifecycleService) CheckExpiry(ctx context.Context, documentID string, now time.Time) (documents.Document, error) {
	if err := s.ready(); err != nil {
		return documents.Document{}, err
	}
	if now.IsZero() {
		now = s.now()
	}

	var out documents.Document
	err := retryOnConflict(ctx, s.MaxAttempts, func() error {
		return s.Store.WithTx(ctx, func(store WorkflowStore) error {
			doc, err := store.GetDocument(ctx, documentID)
			if err != nil {
				return err
			}
			out = doc
			if doc.Status != documents.StatusApproved {
				return domain.InvalidTransition(string(doc.Status), "expire")
			}
			if !documents.IsDueForExpiry(doc, now) {
				return nil
			}
			before := doc
			doc.Status = documents.StatusExpired
			doc.UpdatedAt = now.UTC()
			if err := store.UpdateDocument(ctx, &doc); err != nil {
				return err
			}
			s.Audit.RecordDocument(ctx, store.AuditEvents(), domain.AuditEventDocumentExpired, domain.SystemActor, &before, &doc)
			out = doc
			return nil
		})
	})
	if err != nil {
		return documents.Document{}, err
	}
	return out, nil
}

// ReopenForReview starts a new review cycle for an EXPIRED document on a
// MAJOR-bumped version with fresh reviews for the configured reviewers.
func (s *LifecycleService) ReopenForReview(ctx context.Context, actor domain.Actor, documentID string) (documents.Document, error) {
	if err := s.ready(); err != nil {
		return documents.Document{}, err
	}

	var out documents.Document
	err := retryOnConflict(ctx, s.MaxAttempts, func() error {
		return s.Store.WithTx(ctx, func(store WorkflowStore) error {
			doc, err := store.GetDocument(ctx, documentID)
			if err != nil {
				return err
			}
			if doc.Status != documents.StatusExpired {
				return domain.InvalidTransition(string(doc.Status), "reopen for review")
			}
			reviewers := normalizeIDs(doc.ReviewerIDs)
			if len(reviewers) == 0 {
				return domain.Errorf(domain.KindNoReviewersAssigned, "document %s has no configured reviewers", doc.ID)
			}
			current, err := store.GetVersion(ctx, doc.CurrentVersionID)
			if err != nil {
				return err
			}
			next, err := versioning.Bump(current.Version, versioning.Major)
			if err != nil {
				return err
			}

			now := s.now()
			revision := documents.Version{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				Version:    next,
				IsCurrent:  true,
				FileURL:    current.FileURL,
				DraftURL:   current.DraftURL,
				CreatedAt:  now,
			}
			before := doc
			doc.Status = documents.StatusInReview
			doc.CurrentVersionID = revision.ID
			doc.ReviewCycle++
			doc.NextReviewDate = nil
			doc.UpdatedAt = now
			if err := store.UpdateDocument(ctx, &doc); err != nil {
				return err
			}
			if err := s.promote(ctx, store, revision); err != nil {
				return err
			}
			s.Audit.RecordDocument(ctx, store.AuditEvents(), domain.AuditEventDocumentReopened, actor, &before, &doc,
				domain.AuditTarget{ID: revision.ID, Type: domain.AuditTargetVersion})

			due := dueDate(nil, now, s.ReviewDueIn)
			for _, reviewerID := range reviewers {
				if _, err := assignReview(ctx, store, s.Audit, actor, doc, revision.ID, reviewerID, due, now); err != nil {
					return err
				}
			}
			out = doc
			return nil
		})
	})
	if err != nil {
		return documents.Document{}, err
	}
	return out, nil
}

// DeleteDocument removes a document together with its versions and reviews.
// The audit trail is kept.
func (s *LifecycleService) DeleteDocument(ctx context.Context, actor domain.Actor, documentID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.Store.WithTx(ctx, func(store WorkflowStore) error {
		doc, err := store.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, s.Policy, PolicyInput{Action: ActionDocumentDelete, Actor: actor, Document: &doc}); err != nil {
			return err
		}
		if err := store.DeleteDocument(ctx, doc.ID); err != nil {
			return err
		}
		s.Audit.RecordDocument(ctx, store.AuditEvents(), domain.AuditEventDocumentDeleted, actor, &doc, nil)
		return nil
	})
}

func (s *LifecycleService) GetDocument(ctx context.Context, documentID string) (documents.Document, error) {
	if err := s.ready(); err != nil {
		return documents.Document{}, err
	}
	return s.Store.GetDocument(ctx, documentID)
}

func (s *LifecycleService) ListVersions(ctx context.Context, documentID string) ([]documents.Version, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := s.Store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.Store.ListVersions(ctx, documentID)
}

// AuditTrail returns the document's audit events in commit order after
// verifying the hash chain.
func (s *LifecycleService) AuditTrail(ctx context.Context, documentID string) ([]domain.AuditEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	repo := s.Store.AuditEvents()
	if err := VerifyDocumentAuditChain(ctx, repo, documentID); err != nil {
		return nil, err
	}
	return repo.ListByDocument(ctx, documentID)
}

// ListDueForExpiry feeds the periodic expiry sweep.
func (s *LifecycleService) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]documents.Document, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Store.ListDueForExpiry(ctx, now, limit)
}

// promote makes version the only current version of its document.
func (s *LifecycleService) promote(ctx context.Context, store WorkflowStore, version documents.Version) error {
	if err := store.ClearCurrentVersion(ctx, version.DocumentID); err != nil {
		return err
	}
	return store.CreateVersion(ctx, version)
}

func (s *LifecycleService) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("lifecycle store is required")
	}
	return nil
}

func (s *LifecycleService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}
