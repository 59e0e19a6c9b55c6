// Package memstore is an in-process WorkflowStore used in no-db mode and by
// tests. Transactions are serialized by a single mutex; a transaction that
// returns an error (or panics) restores the state it started from.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/documents"
	"docflow/internal/domain/versioning"
	"docflow/internal/usecase"

	"github.com/google/uuid"
)

type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	documents map[string]documents.Document
	versions  map[string]documents.Version
	reviews   map[string]documents.Review
	audit     map[string][]domain.AuditEvent
}

func New() *Store {
	return &Store{state: &state{
		documents: make(map[string]documents.Document),
		versions:  make(map[string]documents.Version),
		reviews:   make(map[string]documents.Review),
		audit:     make(map[string][]domain.AuditEvent),
	}}
}

var _ usecase.WorkflowStore = (*Store)(nil)

func (s *Store) WithTx(ctx context.Context, fn func(store usecase.WorkflowStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	committed := false
	defer func() {
		if !committed {
			s.state = snapshot
		}
	}()
	if err := fn(&view{state: s.state}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) locked(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{state: s.state})
}

func (s *Store) CreateDocument(ctx context.Context, doc documents.Document) error {
	return s.locked(func(v *view) error { return v.CreateDocument(ctx, doc) })
}

func (s *Store) GetDocument(ctx context.Context, id string) (out documents.Document, err error) {
	err = s.locked(func(v *view) error {
		out, err = v.GetDocument(ctx, id)
		return err
	})
	return out, err
}

// LockDocument is a plain read: the store mutex already serialises transactions.
func (s *Store) LockDocument(ctx context.Context, id string) (documents.Document, error) {
	return s.GetDocument(ctx, id)
}

func (s *Store) UpdateDocument(ctx context.Context, doc *documents.Document) error {
	return s.locked(func(v *view) error { return v.UpdateDocument(ctx, doc) })
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.locked(func(v *view) error { return v.DeleteDocument(ctx, id) })
}

func (s *Store) ListDueForExpiry(ctx context.Context, now time.Time, limit int) (out []documents.Document, err error) {
	err = s.locked(func(v *view) error {
		out, err = v.ListDueForExpiry(ctx, now, limit)
		return err
	})
	return out, err
}

func (s *Store) CreateVersion(ctx context.Context, version documents.Version) error {
	return s.locked(func(v *view) error { return v.CreateVersion(ctx, version) })
}

func (s *Store) GetVersion(ctx context.Context, id string) (out documents.Version, err error) {
	err = s.locked(func(v *view) error {
		out, err = v.GetVersion(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) ListVersions(ctx context.Context, documentID string) (out []documents.Version, err error) {
	err = s.locked(func(v *view) error {
		out, err = v.ListVersions(ctx, documentID)
		return err
	})
	return out, err
}

func (s *Store) ClearCurrentVersion(ctx context.Context, documentID string) error {
	return s.locked(func(v *view) error { return v.ClearCurrentVersion(ctx, documentID) })
}

func (s *Store) CreateReview(ctx context.Context, review documents.Review) error {
	return s.locked(func(v *view) error { return v.CreateReview(ctx, review) })
}

func (s *Store) GetReview(ctx context.Context, id string) (out documents.Review, err error) {
	err = s.locked(func(v *view) error {
		out, err = v.GetReview(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) UpdateReview(ctx context.Context, review *documents.Review) error {
	return s.locked(func(v *view) error { return v.UpdateReview(ctx, review) })
}

func (s *Store) ListReviewsByVersion(ctx context.Context, versionID string) (out []documents.Review, err error) {
	err = s.locked(func(v *view) error {
		out, err = v.ListReviewsByVersion(ctx, versionID)
		return err
	})
	return out, err
}

func (s *Store) ListReviewsByDocument(ctx context.Context, documentID string) (out []documents.Review, err error) {
	err = s.locked(func(v *view) error {
		out, err = v.ListReviewsByDocument(ctx, documentID)
		return err
	})
	return out, err
}

func (s *Store) ListOverdueReviews(ctx context.Context, now time.Time, limit int) (out []documents.Review, err error) {
	err = s.locked(func(v *view) error {
		out, err = v.ListOverdueReviews(ctx, now, limit)
		return err
	})
	return out, err
}

// AuditEvents returns a repository that takes the store lock per call.
func (s *Store) AuditEvents() usecase.AuditEventRepository {
	return lockedAudit{store: s}
}

type lockedAudit struct {
	store *Store
}

func (a lockedAudit) Append(ctx context.Context, event domain.AuditEvent) (out domain.AuditEvent, err error) {
	err = a.store.locked(func(v *view) error {
		out, err = v.AuditEvents().Append(ctx, event)
		return err
	})
	return out, err
}

func (a lockedAudit) ListByDocument(ctx context.Context, documentID string) (out []domain.AuditEvent, err error) {
	err = a.store.locked(func(v *view) error {
		out, err = v.AuditEvents().ListByDocument(ctx, documentID)
		return err
	})
	return out, err
}

// view operates on the state without locking. It is handed to WithTx
// callbacks while the store lock is held.
type view struct {
	state *state
}

func (v *view) WithTx(ctx context.Context, fn func(store usecase.WorkflowStore) error) error {
	return fn(v)
}

func (v *view) CreateDocument(ctx context.Context, doc documents.Document) error {
	if _, ok := v.state.documents[doc.ID]; ok {
		return domain.Errorf(domain.KindConflict, "document %s already exists", doc.ID)
	}
	v.state.documents[doc.ID] = cloneDocument(doc)
	return nil
}

func (v *view) GetDocument(ctx context.Context, id string) (documents.Document, error) {
	doc, ok := v.state.documents[id]
	if !ok {
		return documents.Document{}, domain.Errorf(domain.KindNotFound, "document %s not found", id)
	}
	return cloneDocument(doc), nil
}

func (v *view) LockDocument(ctx context.Context, id string) (documents.Document, error) {
	return v.GetDocument(ctx, id)
}

func (v *view) UpdateDocument(ctx context.Context, doc *documents.Document) error {
	stored, ok := v.state.documents[doc.ID]
	if !ok {
		return domain.Errorf(domain.KindNotFound, "document %s not found", doc.ID)
	}
	if stored.Revision != doc.Revision {
		return domain.Errorf(domain.KindConflict, "document %s revision %d is stale (stored %d)", doc.ID, doc.Revision, stored.Revision)
	}
	doc.Revision++
	v.state.documents[doc.ID] = cloneDocument(*doc)
	return nil
}

func (v *view) DeleteDocument(ctx context.Context, id string) error {
	if _, ok := v.state.documents[id]; !ok {
		return domain.Errorf(domain.KindNotFound, "document %s not found", id)
	}
	delete(v.state.documents, id)
	for key, version := range v.state.versions {
		if version.DocumentID == id {
			delete(v.state.versions, key)
		}
	}
	for key, review := range v.state.reviews {
		if review.DocumentID == id {
			delete(v.state.reviews, key)
		}
	}
	return nil
}

func (v *view) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]documents.Document, error) {
	out := make([]documents.Document, 0)
	for _, doc := range v.state.documents {
		if documents.IsDueForExpiry(doc, now) {
			out = append(out, cloneDocument(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextReviewDate.Equal(*out[j].NextReviewDate) {
			return out[i].NextReviewDate.Before(*out[j].NextReviewDate)
		}
		return out[i].ID < out[j].ID
	})
	return truncate(out, limit), nil
}

func (v *view) CreateVersion(ctx context.Context, version documents.Version) error {
	if _, ok := v.state.versions[version.ID]; ok {
		return domain.Errorf(domain.KindConflict, "version %s already exists", version.ID)
	}
	v.state.versions[version.ID] = version
	return nil
}

func (v *view) GetVersion(ctx context.Context, id string) (documents.Version, error) {
	version, ok := v.state.versions[id]
	if !ok {
		return documents.Version{}, domain.Errorf(domain.KindNotFound, "version %s not found", id)
	}
	return version, nil
}

func (v *view) ListVersions(ctx context.Context, documentID string) ([]documents.Version, error) {
	out := make([]documents.Version, 0)
	for _, version := range v.state.versions {
		if version.DocumentID == documentID {
			out = append(out, version)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		cmp, err := versioning.Compare(out[i].Version, out[j].Version)
		if err != nil || cmp == 0 {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return cmp < 0
	})
	return out, nil
}

func (v *view) ClearCurrentVersion(ctx context.Context, documentID string) error {
	for key, version := range v.state.versions {
		if version.DocumentID == documentID && version.IsCurrent {
			version.IsCurrent = false
			v.state.versions[key] = version
		}
	}
	return nil
}

func (v *view) CreateReview(ctx context.Context, review documents.Review) error {
	if _, ok := v.state.reviews[review.ID]; ok {
		return domain.Errorf(domain.KindConflict, "review %s already exists", review.ID)
	}
	if !review.IsCompleted {
		for _, stored := range v.state.reviews {
			if stored.DocumentVersionID == review.DocumentVersionID && stored.ReviewerID == review.ReviewerID && !stored.IsCompleted {
				return domain.Errorf(domain.KindAlreadyAssigned, "reviewer %s already has an open review on version %s", review.ReviewerID, review.DocumentVersionID)
			}
		}
	}
	v.state.reviews[review.ID] = review
	return nil
}

func (v *view) GetReview(ctx context.Context, id string) (documents.Review, error) {
	review, ok := v.state.reviews[id]
	if !ok {
		return documents.Review{}, domain.Errorf(domain.KindNotFound, "review %s not found", id)
	}
	return review, nil
}

func (v *view) UpdateReview(ctx context.Context, review *documents.Review) error {
	stored, ok := v.state.reviews[review.ID]
	if !ok {
		return domain.Errorf(domain.KindNotFound, "review %s not found", review.ID)
	}
	if stored.Revision != review.Revision {
		return domain.Errorf(domain.KindConflict, "review %s revision %d is stale (stored %d)", review.ID, review.Revision, stored.Revision)
	}
	review.Revision++
	v.state.reviews[review.ID] = *review
	return nil
}

func (v *view) ListReviewsByVersion(ctx context.Context, versionID string) ([]documents.Review, error) {
	return v.filterReviews(func(r documents.Review) bool { return r.DocumentVersionID == versionID }), nil
}

func (v *view) ListReviewsByDocument(ctx context.Context, documentID string) ([]documents.Review, error) {
	return v.filterReviews(func(r documents.Review) bool { return r.DocumentID == documentID }), nil
}

func (v *view) ListOverdueReviews(ctx context.Context, now time.Time, limit int) ([]documents.Review, error) {
	out := v.filterReviews(func(r documents.Review) bool { return r.IsExpired(now) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return truncate(out, limit), nil
}

func (v *view) filterReviews(keep func(documents.Review) bool) []documents.Review {
	out := make([]documents.Review, 0)
	for _, review := range v.state.reviews {
		if keep(review) {
			out = append(out, review)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v *view) AuditEvents() usecase.AuditEventRepository {
	return viewAudit{state: v.state}
}

type viewAudit struct {
	state *state
}

func (a viewAudit) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if event.DocumentID == "" || event.EventType == "" {
		return domain.AuditEvent{}, domain.Errorf(domain.KindInvalidArgument, "audit event requires document_id and event_type")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	chain := a.state.audit[event.DocumentID]
	event.Seq = int64(len(chain)) + 1
	event.PrevHash = domain.AuditZeroHash
	if len(chain) > 0 {
		event.PrevHash = chain[len(chain)-1].Hash
	}
	hash, err := domain.ComputeAuditHash(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.Hash = hash
	a.state.audit[event.DocumentID] = append(chain, event)
	return event, nil
}

func (a viewAudit) ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEvent, error) {
	chain := a.state.audit[documentID]
	out := make([]domain.AuditEvent, len(chain))
	copy(out, chain)
	return out, nil
}

func (s *state) clone() *state {
	out := &state{
		documents: make(map[string]documents.Document, len(s.documents)),
		versions:  make(map[string]documents.Version, len(s.versions)),
		reviews:   make(map[string]documents.Review, len(s.reviews)),
		audit:     make(map[string][]domain.AuditEvent, len(s.audit)),
	}
	for k, doc := range s.documents {
		out.documents[k] = cloneDocument(doc)
	}
	for k, version := range s.versions {
		out.versions[k] = version
	}
	for k, review := range s.reviews {
		out.reviews[k] = review
	}
	for k, events := range s.audit {
		out.audit[k] = append([]domain.AuditEvent(nil), events...)
	}
	return out
}

func cloneDocument(doc documents.Document) documents.Document {
	if doc.ReviewerIDs != nil {
		doc.ReviewerIDs = append([]string(nil), doc.ReviewerIDs...)
	}
	return doc
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
