package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/documents"
	"docflow/internal/infra/memstore"
	"docflow/internal/usecase"
)

var (
	owner = domain.Actor{ID: "owner-1"}
	admin = domain.Actor{ID: "admin-1", Roles: []string{domain.RoleAdmin}}
)

func reviewer(id string) domain.Actor {
	return domain.Actor{ID: id}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store     *memstore.Store
	clock     *testClock
	lifecycle *usecase.LifecycleService
	reviews   *usecase.ReviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)}
	store := memstore.New()
	audit := usecase.NewAuditEmitter(clock.Now)
	lifecycle := usecase.NewLifecycleService(store, audit, usecase.DefaultPolicy{}, clock.Now)
	lifecycle.ReviewDueIn = 14 * 24 * time.Hour
	reviews := usecase.NewReviewService(store, audit, usecase.DefaultPolicy{}, lifecycle, clock.Now)
	reviews.DefaultDueIn = 14 * 24 * time.Hour
	return &fixture{store: store, clock: clock, lifecycle: lifecycle, reviews: reviews}
}

func (f *fixture) createDocument(t *testing.T, frequency string, reviewerIDs ...string) documents.Document {
	t.Helper()
	doc, err := f.lifecycle.CreateDocument(context.Background(), owner, usecase.CreateDocumentInput{
		Title:           "Information security policy",
		Classification:  "internal",
		ReviewFrequency: frequency,
		ReviewerIDs:     reviewerIDs,
		FileURL:         "https://files.example/isp.pdf",
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

// submit moves doc to IN_REVIEW and returns its open reviews keyed by reviewer.
func (f *fixture) submit(t *testing.T, doc documents.Document, reviewerIDs ...string) map[string]documents.Review {
	t.Helper()
	ctx := context.Background()
	if _, err := f.lifecycle.SubmitForReview(ctx, owner, doc.ID, reviewerIDs); err != nil {
		t.Fatalf("submit for review: %v", err)
	}
	return f.openReviews(t, doc.ID)
}

func (f *fixture) openReviews(t *testing.T, documentID string) map[string]documents.Review {
	t.Helper()
	all, err := f.reviews.ListByDocument(context.Background(), documentID)
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	out := map[string]documents.Review{}
	for _, review := range all {
		if !review.IsCompleted {
			out[review.ReviewerID] = review
		}
	}
	return out
}

func (f *fixture) document(t *testing.T, id string) documents.Document {
	t.Helper()
	doc, err := f.lifecycle.GetDocument(context.Background(), id)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	return doc
}

func (f *fixture) currentVersion(t *testing.T, documentID string) documents.Version {
	t.Helper()
	versions, err := f.lifecycle.ListVersions(context.Background(), documentID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	var current []documents.Version
	for _, version := range versions {
		if version.IsCurrent {
			current = append(current, version)
		}
	}
	if len(current) != 1 {
		t.Fatalf("expected exactly one current version, got %d", len(current))
	}
	return current[0]
}

func (f *fixture) auditTypes(t *testing.T, documentID string) []domain.AuditEventType {
	t.Helper()
	events, err := f.lifecycle.AuditTrail(context.Background(), documentID)
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	out := make([]domain.AuditEventType, 0, len(events))
	for _, event := range events {
		out = append(out, event.EventType)
	}
	return out
}

func countEvents(types []domain.AuditEventType, want domain.AuditEventType) int {
	n := 0
	for _, eventType := range types {
		if eventType == want {
			n++
		}
	}
	return n
}

// flakyStore injects optimistic-lock conflicts on document updates and can
// make the audit sink fail.
type flakyStore struct {
	usecase.WorkflowStore
	conflicts *int32
	failAudit bool
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(store usecase.WorkflowStore) error) error {
	return f.WorkflowStore.WithTx(ctx, func(inner usecase.WorkflowStore) error {
		return fn(&flakyStore{WorkflowStore: inner, conflicts: f.conflicts, failAudit: f.failAudit})
	})
}

func (f *flakyStore) UpdateDocument(ctx context.Context, doc *documents.Document) error {
	if f.conflicts != nil && atomic.AddInt32(f.conflicts, -1) >= 0 {
		return domain.Errorf(domain.KindConflict, "injected conflict on %s", doc.ID)
	}
	return f.WorkflowStore.UpdateDocument(ctx, doc)
}

func (f *flakyStore) AuditEvents() usecase.AuditEventRepository {
	if f.failAudit {
		return failingAudit{}
	}
	return f.WorkflowStore.AuditEvents()
}

type failingAudit struct{}

func (failingAudit) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	return domain.AuditEvent{}, errors.New("audit sink unavailable")
}

func (failingAudit) ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEvent, error) {
	return nil, errors.New("audit sink unavailable")
}
