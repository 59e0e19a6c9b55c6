package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/documents"
	"docflow/internal/usecase"
)

func TestReviewService_DecideTwiceReturnsAlreadyDecided(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDocument(t, "YEARLY")
	reviews := f.submit(t, doc, "rev-1", "rev-2")
	id := reviews["rev-1"].ID

	first, err := f.reviews.Decide(ctx, reviewer("rev-1"), id, documents.DecisionApprove, "fine")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if first.State() != documents.ReviewDecidedApprove || first.ReviewDate == nil {
		t.Fatalf("expected DECIDED_APPROVE with review date, got %+v", first)
	}

	_, err = f.reviews.Decide(ctx, reviewer("rev-1"), id, documents.DecisionReject, "changed my mind")
	if !errors.Is(err, domain.ErrAlreadyDecided) {
		t.Fatalf("expected AlreadyDecided, got %v", err)
	}
	stored, err := f.reviews.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *stored.Decision != documents.DecisionApprove || stored.Comment != "fine" {
		t.Fatalf("first decision must be preserved, got %s %q", *stored.Decision, stored.Comment)
	}
	if got := f.document(t, doc.ID).Status; got != documents.StatusInReview {
		t.Fatalf("rejected retry must not affect the document, got %s", got)
	}

	events, err := f.lifecycle.AuditTrail(ctx, doc.ID)
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	last := events[len(events)-1]
	if last.Result != domain.AuditResultFailure || last.ErrorCode != string(domain.KindAlreadyDecided) {
		t.Fatalf("expected failure record for the retry, got %s %s", last.Result, last.ErrorCode)
	}
}

func TestReviewService_DecideGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDocument(t, "YEARLY")
	reviews := f.submit(t, doc, "rev-1")
	id := reviews["rev-1"].ID

	if _, err := f.reviews.Decide(ctx, reviewer("intruder"), id, documents.DecisionApprove, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	if _, err := f.reviews.Decide(ctx, admin, id, documents.DecisionApprove, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("only the assigned reviewer may decide, got %v", err)
	}
	if _, err := f.reviews.Decide(ctx, reviewer("rev-1"), "missing", documents.DecisionApprove, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := f.reviews.Decide(ctx, reviewer("rev-1"), id, documents.Decision("MAYBE"), ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	stored, _ := f.reviews.Get(ctx, id)
	if stored.State() != documents.ReviewPending {
		t.Fatalf("failed attempts must leave the review pending, got %s", stored.State())
	}
}

func TestReviewService_CompleteWithoutDecisionAbstains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDocument(t, "YEARLY")
	reviews := f.submit(t, doc, "rev-1", "rev-2")

	if _, err := f.reviews.Decide(ctx, reviewer("rev-1"), reviews["rev-1"].ID, documents.DecisionApprove, ""); err != nil {
		t.Fatalf("decide: %v", err)
	}
	completed, err := f.reviews.Complete(ctx, owner, reviews["rev-2"].ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Decision != nil || !completed.IsCompleted || completed.CompletedByID != owner.ID || completed.CompletedAt == nil {
		t.Fatalf("unexpected completed review %+v", completed)
	}
	if got := f.document(t, doc.ID).Status; got != documents.StatusApproved {
		t.Fatalf("expected abstention to let the approval through, got %s", got)
	}
}

func TestReviewService_CompleteGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDocument(t, "YEARLY")
	reviews := f.submit(t, doc, "rev-1", "rev-2")
	id := reviews["rev-1"].ID

	if _, err := f.reviews.Complete(ctx, reviewer("rev-2"), id); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected Forbidden for another reviewer, got %v", err)
	}
	if _, err := f.reviews.Decide(ctx, reviewer("rev-1"), id, documents.DecisionApprove, ""); err != nil {
		t.Fatalf("decide: %v", err)
	}
	done, err := f.reviews.Complete(ctx, reviewer("rev-1"), id)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.State() != documents.ReviewCompleted {
		t.Fatalf("expected COMPLETED, got %s", done.State())
	}
	if _, err := f.reviews.Complete(ctx, admin, id); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected AlreadyCompleted, got %v", err)
	}
	if _, err := f.reviews.UpdateComment(ctx, reviewer("rev-1"), id, "late note"); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected AlreadyCompleted on comment, got %v", err)
	}
	if _, err := f.reviews.Complete(ctx, reviewer("rev-1"), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestReviewService_UpdateComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDocument(t, "YEARLY")
	reviews := f.submit(t, doc, "rev-1")
	id := reviews["rev-1"].ID

	updated, err := f.reviews.UpdateComment(ctx, reviewer("rev-1"), id, "reading section 2")
	if err != nil {
		t.Fatalf("update comment: %v", err)
	}
	if updated.Comment != "reading section 2" || updated.State() != documents.ReviewPending {
		t.Fatalf("comment must not change decision state, got %+v", updated)
	}
	before := countEvents(f.auditTypes(t, doc.ID), domain.AuditEventReviewCommented)
	if _, err := f.reviews.UpdateComment(ctx, reviewer("rev-1"), id, "reading section 2"); err != nil {
		t.Fatalf("repeat comment: %v", err)
	}
	if after := countEvents(f.auditTypes(t, doc.ID), domain.AuditEventReviewCommented); after != before {
		t.Fatalf("unchanged comment must not be audited")
	}
	if _, err := f.reviews.UpdateComment(ctx, owner, id, "owner note"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected Forbidden for owner, got %v", err)
	}
	if _, err := f.reviews.UpdateComment(ctx, admin, id, "admin note"); err != nil {
		t.Fatalf("admin comment: %v", err)
	}
}

func TestReviewService_AssignGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDocument(t, "YEARLY")

	review, err := f.reviews.Assign(ctx, owner, usecase.AssignInput{DocumentID: doc.ID, ReviewerID: "rev-1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if review.DocumentVersionID != doc.CurrentVersionID || review.AssignedByID != owner.ID {
		t.Fatalf("unexpected review %+v", review)
	}
	wantDue := f.clock.Now().Add(14 * 24 * time.Hour)
	if review.DueDate == nil || !review.DueDate.Equal(wantDue) {
		t.Fatalf("expected default due date %s, got %v", wantDue, review.DueDate)
	}
	if got := f.document(t, doc.ID).ReviewerIDs; len(got) != 1 || got[0] != "rev-1" {
		t.Fatalf("expected reviewer recorded on document, got %v", got)
	}

	if _, err := f.reviews.Assign(ctx, owner, usecase.AssignInput{DocumentID: doc.ID, ReviewerID: "rev-1"}); !errors.Is(err, domain.ErrAlreadyAssigned) {
		t.Fatalf("expected AlreadyAssigned, got %v", err)
	}
	if _, err := f.reviews.Assign(ctx, owner, usecase.AssignInput{DocumentID: doc.ID, ReviewerID: ""}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if _, err := f.reviews.Assign(ctx, owner, usecase.AssignInput{DocumentID: doc.ID, VersionID: "other", ReviewerID: "rev-2"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected InvalidArgument for non-current version, got %v", err)
	}

	if _, err := f.lifecycle.SubmitForReview(ctx, owner, doc.ID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.reviews.Decide(ctx, reviewer("rev-1"), review.ID, documents.DecisionApprove, ""); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if _, err := f.reviews.Assign(ctx, owner, usecase.AssignInput{DocumentID: doc.ID, ReviewerID: "rev-3"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition on approved document, got %v", err)
	}
}

func TestReviewService_ListOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDocument(t, "YEARLY")
	reviews := f.submit(t, doc, "rev-1", "rev-2")
	if _, err := f.reviews.Decide(ctx, reviewer("rev-1"), reviews["rev-1"].ID, documents.DecisionApprove, ""); err != nil {
		t.Fatalf("decide: %v", err)
	}

	overdue, err := f.reviews.ListOverdue(ctx, 10)
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 0 {
		t.Fatalf("nothing is overdue yet, got %d", len(overdue))
	}

	f.clock.Set(f.clock.Now().Add(15 * 24 * time.Hour))
	overdue, err = f.reviews.ListOverdue(ctx, 10)
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ReviewerID != "rev-2" {
		t.Fatalf("expected only the pending review overdue, got %+v", overdue)
	}
	if !overdue[0].IsExpired(f.clock.Now()) {
		t.Fatalf("expected derived expired condition")
	}
}
