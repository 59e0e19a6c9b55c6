//go:build integration
// +build integration

package db

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/changes"
	"docflow/internal/domain/documents"
	"docflow/internal/usecase"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestAuditEventRepository_Append_HashChain(t *testing.T) {
	db := setupTestDB(t)
	resetDB(t, db)

	documentID := uuid.NewString()
	repo := NewAuditEventRepository(db)
	first, err := repo.Append(context.Background(), domain.AuditEvent{
		DocumentID: documentID,
		EventType:  domain.AuditEventDocumentCreated,
		ActorID:    "owner-1",
		Targets:    []domain.AuditTarget{{ID: documentID, Type: domain.AuditTargetDocument}},
		Details: changes.Diff{
			"status": {Before: changes.Null(), After: changes.String("DRAFT")},
		},
		CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("append first audit event: %v", err)
	}
	if first.Seq != 1 || first.PrevHash != domain.AuditZeroHash || first.Hash == "" {
		t.Fatalf("unexpected first event seq=%d prev=%s", first.Seq, first.PrevHash)
	}

	second, err := repo.Append(context.Background(), domain.AuditEvent{
		DocumentID: documentID,
		EventType:  domain.AuditEventDocumentSubmitted,
		ActorID:    "owner-1",
		CreatedAt:  time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("append second audit event: %v", err)
	}
	if second.Seq != 2 || second.PrevHash != first.Hash {
		t.Fatalf("expected seq 2 chained to %s, got %d %s", first.Hash, second.Seq, second.PrevHash)
	}

	events, err := repo.ListByDocument(context.Background(), documentID)
	if err != nil {
		t.Fatalf("list audit events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if got := events[0].Details.Fields(); len(got) != 1 || got[0] != "status" {
		t.Fatalf("expected details to round trip, got %v", got)
	}
	if err := usecase.VerifyDocumentAuditChain(context.Background(), repo, documentID); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
}

func TestWorkflowStore_UpdateDocumentRevision(t *testing.T) {
	db := setupTestDB(t)
	resetDB(t, db)
	store := NewWorkflowStore(db)
	ctx := context.Background()

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	doc := documents.Document{
		ID:               uuid.NewString(),
		Title:            "Access control policy",
		Status:           documents.StatusDraft,
		ReviewFrequency:  documents.FrequencyYearly,
		OwnerID:          "owner-1",
		CurrentVersionID: uuid.NewString(),
		ReviewerIDs:      []string{"rev-1"},
		Revision:         1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}

	first := doc
	stale := doc
	first.Status = documents.StatusInReview
	if err := store.UpdateDocument(ctx, &first); err != nil {
		t.Fatalf("update document: %v", err)
	}
	if first.Revision != 2 {
		t.Fatalf("expected revision 2, got %d", first.Revision)
	}
	stale.Title = "stale write"
	if err := store.UpdateDocument(ctx, &stale); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected Conflict for stale revision, got %v", err)
	}
	missing := doc
	missing.ID = uuid.NewString()
	if err := store.UpdateDocument(ctx, &missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	stored, err := store.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if stored.Status != documents.StatusInReview || stored.Title != doc.Title || len(stored.ReviewerIDs) != 1 {
		t.Fatalf("unexpected stored document %+v", stored)
	}
}

func TestWorkflowStore_WithTxRollsBackAudit(t *testing.T) {
	db := setupTestDB(t)
	resetDB(t, db)
	store := NewWorkflowStore(db)
	ctx := context.Background()
	documentID := uuid.NewString()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx usecase.WorkflowStore) error {
		if _, err := tx.AuditEvents().Append(ctx, domain.AuditEvent{
			DocumentID: documentID,
			EventType:  domain.AuditEventDocumentCreated,
			ActorID:    "owner-1",
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	events, err := store.AuditEvents().ListByDocument(ctx, documentID)
	if err != nil {
		t.Fatalf("list audit events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("aborted transition must leave no audit, got %d", len(events))
	}
}

func TestWorkflowStore_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	resetDB(t, db)
	store := NewWorkflowStore(db)
	ctx := context.Background()

	now := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	audit := usecase.NewAuditEmitter(clock)
	lifecycle := usecase.NewLifecycleService(store, audit, usecase.DefaultPolicy{}, clock)
	reviews := usecase.NewReviewService(store, audit, usecase.DefaultPolicy{}, lifecycle, clock)

	owner := domain.Actor{ID: "owner-1"}
	doc, err := lifecycle.CreateDocument(ctx, owner, usecase.CreateDocumentInput{
		Title:           "Incident response plan",
		ReviewFrequency: "YEARLY",
		ReviewerIDs:     []string{"rev-1"},
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if _, err := lifecycle.SubmitForReview(ctx, owner, doc.ID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	open, err := reviews.ListByDocument(ctx, doc.ID)
	if err != nil || len(open) != 1 {
		t.Fatalf("expected one review, got %d (%v)", len(open), err)
	}
	if _, err := reviews.Decide(ctx, domain.Actor{ID: "rev-1"}, open[0].ID, documents.DecisionApprove, "ok"); err != nil {
		t.Fatalf("decide: %v", err)
	}

	approved, err := lifecycle.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if approved.Status != documents.StatusApproved || approved.NextReviewDate == nil {
		t.Fatalf("expected approved document with next review date, got %+v", approved)
	}
	versions, err := lifecycle.ListVersions(ctx, doc.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 2 || versions[1].Version != "1.1" || !versions[1].IsCurrent || versions[0].IsCurrent {
		t.Fatalf("unexpected versions %+v", versions)
	}
	if _, err := lifecycle.AuditTrail(ctx, doc.ID); err != nil {
		t.Fatalf("audit trail: %v", err)
	}

	due, err := store.ListDueForExpiry(ctx, now.AddDate(2, 0, 0), 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].ID != doc.ID {
		t.Fatalf("expected document due for expiry, got %+v", due)
	}
}

func TestWorkflowStore_ConcurrentAssignCreatesOneOpenReview(t *testing.T) {
	db := setupTestDB(t)
	resetDB(t, db)
	store := NewWorkflowStore(db)
	ctx := context.Background()

	clock := func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	audit := usecase.NewAuditEmitter(clock)
	lifecycle := usecase.NewLifecycleService(store, audit, usecase.DefaultPolicy{}, clock)
	reviews := usecase.NewReviewService(store, audit, usecase.DefaultPolicy{}, lifecycle, clock)

	owner := domain.Actor{ID: "owner-1"}
	doc, err := lifecycle.CreateDocument(ctx, owner, usecase.CreateDocumentInput{
		Title:       "Change management procedure",
		ReviewerIDs: []string{"rev-1"},
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reviews.Assign(ctx, owner, usecase.AssignInput{DocumentID: doc.ID, ReviewerID: "rev-1"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrAlreadyAssigned):
		default:
			t.Fatalf("unexpected assign error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one assignment to succeed, got %d", succeeded)
	}
	all, err := store.ListReviewsByVersion(ctx, doc.CurrentVersionID)
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one open review, got %d", len(all))
	}

	duplicate := all[0]
	duplicate.ID = uuid.NewString()
	duplicate.Revision = 1
	if err := store.CreateReview(ctx, duplicate); !errors.Is(err, domain.ErrAlreadyAssigned) {
		t.Fatalf("expected the open-review index to reject a duplicate, got %v", err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	lockTestDB(t, db)
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func lockTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("open db conn: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_lock(424242)"); err != nil {
		_ = conn.Close()
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(424242)")
		_ = conn.Close()
	})
}

func resetDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec(
		"TRUNCATE document_audit_events, document_audit_seq, document_reviews, document_versions, documents",
	).Error; err != nil {
		t.Fatalf("reset db: %v", err)
	}
}
