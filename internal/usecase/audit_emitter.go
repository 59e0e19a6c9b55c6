package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/changes"
	"docflow/internal/domain/documents"
)

// AuditEmitter builds audit events from before/after snapshots and appends
// them to the transaction-bound repository it is handed.
type AuditEmitter struct {
	Clock Clock
}

func NewAuditEmitter(clock Clock) *AuditEmitter {
	return &AuditEmitter{Clock: clock}
}

func (e *AuditEmitter) Emit(ctx context.Context, repo AuditEventRepository, event domain.AuditEvent) (domain.AuditEvent, error) {
	if repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if event.DocumentID == "" || event.EventType == "" || event.ActorID == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if event.Result == "" {
		event.Result = domain.AuditResultSuccess
	}
	if event.Details == nil {
		event.Details = changes.Diff{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	return repo.Append(ctx, event)
}

// Record emits the event and logs instead of failing. Audit is not a
// transactional participant of the transition.
func (e *AuditEmitter) Record(ctx context.Context, repo AuditEventRepository, event domain.AuditEvent) {
	if e == nil {
		return
	}
	if _, err := e.Emit(ctx, repo, event); err != nil {
		log.Printf("audit: %s for document %s not recorded: %v", event.EventType, event.DocumentID, err)
	}
}

func (e *AuditEmitter) RecordDocument(ctx context.Context, repo AuditEventRepository, eventType domain.AuditEventType, actor domain.Actor, before, after *documents.Document, extra ...domain.AuditTarget) {
	if e == nil {
		return
	}
	doc := after
	if doc == nil {
		doc = before
	}
	if doc == nil {
		return
	}
	details, err := changes.Compute(documentSnapshot(before), documentSnapshot(after))
	if err != nil {
		log.Printf("audit: diff document %s: %v", doc.ID, err)
		details = changes.Diff{}
	}
	targets := append([]domain.AuditTarget{{ID: doc.ID, Type: domain.AuditTargetDocument}}, extra...)
	e.Record(ctx, repo, domain.AuditEvent{
		DocumentID: doc.ID,
		EventType:  eventType,
		ActorID:    actor.ID,
		Targets:    targets,
		Details:    details,
		Result:     domain.AuditResultSuccess,
	})
}

func (e *AuditEmitter) RecordReview(ctx context.Context, repo AuditEventRepository, eventType domain.AuditEventType, actor domain.Actor, before, after *documents.Review) {
	if e == nil {
		return
	}
	review := after
	if review == nil {
		review = before
	}
	if review == nil {
		return
	}
	details, err := changes.Compute(reviewSnapshot(before), reviewSnapshot(after))
	if err != nil {
		log.Printf("audit: diff review %s: %v", review.ID, err)
		details = changes.Diff{}
	}
	e.Record(ctx, repo, domain.AuditEvent{
		DocumentID: review.DocumentID,
		EventType:  eventType,
		ActorID:    actor.ID,
		Targets: []domain.AuditTarget{
			{ID: review.ID, Type: domain.AuditTargetReview},
			{ID: review.DocumentVersionID, Type: domain.AuditTargetVersion},
		},
		Details: details,
		Result:  domain.AuditResultSuccess,
	})
}

// RecordFailure leaves a FAILURE record for a rejected attempt. It runs
// outside the aborted transaction.
func (e *AuditEmitter) RecordFailure(ctx context.Context, repo AuditEventRepository, eventType domain.AuditEventType, actor domain.Actor, documentID string, target domain.AuditTarget, cause error) {
	if e == nil || documentID == "" || cause == nil {
		return
	}
	code := string(domain.KindOf(cause))
	if code == "" {
		return
	}
	e.Record(ctx, repo, domain.AuditEvent{
		DocumentID: documentID,
		EventType:  eventType,
		ActorID:    actor.ID,
		Targets:    []domain.AuditTarget{target},
		Result:     domain.AuditResultFailure,
		ErrorCode:  code,
	})
}

func (e *AuditEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}
