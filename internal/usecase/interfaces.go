package usecase

import (
	"context"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/documents"
)

type Clock func() time.Time

// AuditEventRepository is the append-only audit sink. Append assigns Seq,
// PrevHash and Hash for the event's document.
type AuditEventRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEvent, error)
}

type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc documents.Document) error
	GetDocument(ctx context.Context, id string) (documents.Document, error)
	// LockDocument reads the document and holds it against concurrent
	// transitions until the surrounding transaction ends.
	LockDocument(ctx context.Context, id string) (documents.Document, error)
	// UpdateDocument fails with domain.ErrConflict unless doc.Revision matches
	// the stored revision. On success doc.Revision is incremented.
	UpdateDocument(ctx context.Context, doc *documents.Document) error
	// DeleteDocument removes the document with its versions and reviews.
	DeleteDocument(ctx context.Context, id string) error
	ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]documents.Document, error)
}

type VersionRepository interface {
	CreateVersion(ctx context.Context, version documents.Version) error
	GetVersion(ctx context.Context, id string) (documents.Version, error)
	ListVersions(ctx context.Context, documentID string) ([]documents.Version, error)
	ClearCurrentVersion(ctx context.Context, documentID string) error
}

type ReviewRepository interface {
	// CreateReview fails with domain.ErrAlreadyAssigned when the reviewer
	// already holds an uncompleted review on the same version.
	CreateReview(ctx context.Context, review documents.Review) error
	GetReview(ctx context.Context, id string) (documents.Review, error)
	// UpdateReview follows the same revision contract as UpdateDocument.
	UpdateReview(ctx context.Context, review *documents.Review) error
	ListReviewsByVersion(ctx context.Context, versionID string) ([]documents.Review, error)
	ListReviewsByDocument(ctx context.Context, documentID string) ([]documents.Review, error)
	ListOverdueReviews(ctx context.Context, now time.Time, limit int) ([]documents.Review, error)
}

// WorkflowStore is the persistence port for the workflow engine. Every
// transition runs inside WithTx; the store passed to fn (including its
// AuditEvents repository) is bound to that transaction.
type WorkflowStore interface {
	DocumentRepository
	VersionRepository
	ReviewRepository
	AuditEvents() AuditEventRepository
	WithTx(ctx context.Context, fn func(store WorkflowStore) error) error
}

type PolicyAction string

const (
	ActionReviewDecide   PolicyAction = "review.decide"
	ActionReviewComplete PolicyAction = "review.complete"
	ActionReviewComment  PolicyAction = "review.comment"
	ActionDocumentDelete PolicyAction = "document.delete"
)

type PolicyInput struct {
	Action   PolicyAction
	Actor    domain.Actor
	Document *documents.Document
	Review   *documents.Review
}

// Policy authorizes actor-scoped transitions. Implementations return
// domain.ErrForbidden (or an error matching it) on denial.
type Policy interface {
	Authorize(ctx context.Context, input PolicyInput) error
}

// Aggregator recomputes a document's status from the reviews of a version.
type Aggregator interface {
	AggregateDecision(ctx context.Context, documentID, versionID string) (documents.Document, error)
}
