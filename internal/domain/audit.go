package domain

import (
	"time"

	"docflow/internal/domain/changes"
)

const (
	// AuditSystemActorID marks transitions performed by the engine itself
	// (expiry sweep, cycle closure after a rejection).
	AuditSystemActorID = "__system__"
	AuditChainVersion  = "audit_chain_v1"
)

type AuditEventType string

const (
	AuditEventDocumentCreated   AuditEventType = "document.created"
	AuditEventDocumentSubmitted AuditEventType = "document.submitted"
	AuditEventDocumentApproved  AuditEventType = "document.approved"
	AuditEventDocumentRejected  AuditEventType = "document.rejected"
	AuditEventDocumentExpired   AuditEventType = "document.expired"
	AuditEventDocumentReopened  AuditEventType = "document.reopened"
	AuditEventDocumentDeleted   AuditEventType = "document.deleted"
	AuditEventReviewAssigned    AuditEventType = "review.assigned"
	AuditEventReviewDecided     AuditEventType = "review.decided"
	AuditEventReviewCompleted   AuditEventType = "review.completed"
	AuditEventReviewCommented   AuditEventType = "review.comment_updated"
	AuditEventReviewSuperseded  AuditEventType = "review.superseded"
)

type AuditTargetType string

const (
	AuditTargetDocument AuditTargetType = "document"
	AuditTargetVersion  AuditTargetType = "document_version"
	AuditTargetReview   AuditTargetType = "document_review"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "SUCCESS"
	AuditResultFailure AuditResult = "FAILURE"
)

type AuditTarget struct {
	ID   string          `json:"id"`
	Type AuditTargetType `json:"type"`
}

// AuditEvent is immutable once appended. Seq is assigned inside the
// transaction that committed the transition, so ordering by (DocumentID, Seq)
// reproduces commit order for a document.
type AuditEvent struct {
	ID         string
	DocumentID string
	Seq        int64
	EventType  AuditEventType
	ActorID    string
	Targets    []AuditTarget
	Details    changes.Diff
	Result     AuditResult
	ErrorCode  string
	PrevHash   string
	Hash       string
	CreatedAt  time.Time
}
