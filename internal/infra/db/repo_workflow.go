package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/documents"
	"docflow/internal/domain/versioning"
	"docflow/internal/usecase"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkflowStore implements usecase.WorkflowStore on postgres. A store
// returned to a WithTx callback wraps the transaction handle, so every
// repository call and audit append it makes commits or rolls back together.
type WorkflowStore struct {
	db *gorm.DB
}

func NewWorkflowStore(db *gorm.DB) *WorkflowStore {
	return &WorkflowStore{db: db}
}

func (s *WorkflowStore) WithTx(ctx context.Context, fn func(store usecase.WorkflowStore) error) error {
	if s.db == nil {
		return errDBUnavailable
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&WorkflowStore{db: tx})
	})
}

func (s *WorkflowStore) AuditEvents() usecase.AuditEventRepository {
	return NewAuditEventRepository(s.db)
}

func (s *WorkflowStore) CreateDocument(ctx context.Context, doc documents.Document) error {
	if s.db == nil {
		return errDBUnavailable
	}
	model, err := documentModelFromDomain(doc)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

func (s *WorkflowStore) GetDocument(ctx context.Context, id string) (documents.Document, error) {
	if s.db == nil {
		return documents.Document{}, errDBUnavailable
	}
	var model DocumentModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return documents.Document{}, notFound(err, "document", id)
	}
	return documentFromModel(model)
}

func (s *WorkflowStore) LockDocument(ctx context.Context, id string) (documents.Document, error) {
	if s.db == nil {
		return documents.Document{}, errDBUnavailable
	}
	var model DocumentModel
	if err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return documents.Document{}, notFound(err, "document", id)
	}
	return documentFromModel(model)
}

func (s *WorkflowStore) UpdateDocument(ctx context.Context, doc *documents.Document) error {
	if s.db == nil {
		return errDBUnavailable
	}
	reviewerIDs, err := encodeIDs(doc.ReviewerIDs)
	if err != nil {
		return err
	}
	updatedAt := doc.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).
		Model(&DocumentModel{}).
		Where("id = ? AND revision = ?", doc.ID, doc.Revision).
		Updates(map[string]any{
			"title":              doc.Title,
			"description":        doc.Description,
			"status":             string(doc.Status),
			"classification":     doc.Classification,
			"review_frequency":   string(doc.ReviewFrequency),
			"next_review_date":   utcPtr(doc.NextReviewDate),
			"owner_id":           doc.OwnerID,
			"type_id":            stringPtrIfNotEmpty(doc.TypeID),
			"iso_clause_id":      stringPtrIfNotEmpty(doc.ISOClauseID),
			"current_version_id": doc.CurrentVersionID,
			"reviewer_ids":       reviewerIDs,
			"review_cycle":       doc.ReviewCycle,
			"revision":           doc.Revision + 1,
			"updated_at":         updatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.staleOrMissing(ctx, &DocumentModel{}, "document", doc.ID, doc.Revision)
	}
	doc.Revision++
	doc.UpdatedAt = updatedAt
	return nil
}

func (s *WorkflowStore) DeleteDocument(ctx context.Context, id string) error {
	if s.db == nil {
		return errDBUnavailable
	}
	db := s.db.WithContext(ctx)
	if err := db.Where("document_id = ?", id).Delete(&DocumentReviewModel{}).Error; err != nil {
		return err
	}
	if err := db.Where("document_id = ?", id).Delete(&DocumentVersionModel{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&DocumentModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Errorf(domain.KindNotFound, "document %s not found", id)
	}
	return nil
}

func (s *WorkflowStore) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]documents.Document, error) {
	if s.db == nil {
		return nil, errDBUnavailable
	}
	query := s.db.WithContext(ctx).
		Where("status = ? AND next_review_date IS NOT NULL AND next_review_date < ?", string(documents.StatusApproved), now.UTC()).
		Order("next_review_date ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []DocumentModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]documents.Document, 0, len(models))
	for _, model := range models {
		doc, err := documentFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *WorkflowStore) CreateVersion(ctx context.Context, version documents.Version) error {
	if s.db == nil {
		return errDBUnavailable
	}
	model := versionModelFromDomain(version)
	return s.db.WithContext(ctx).Create(&model).Error
}

func (s *WorkflowStore) GetVersion(ctx context.Context, id string) (documents.Version, error) {
	if s.db == nil {
		return documents.Version{}, errDBUnavailable
	}
	var model DocumentVersionModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return documents.Version{}, notFound(err, "version", id)
	}
	return versionFromModel(model), nil
}

func (s *WorkflowStore) ListVersions(ctx context.Context, documentID string) ([]documents.Version, error) {
	if s.db == nil {
		return nil, errDBUnavailable
	}
	var models []DocumentVersionModel
	if err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]documents.Version, 0, len(models))
	for _, model := range models {
		out = append(out, versionFromModel(model))
	}
	sort.SliceStable(out, func(i, j int) bool {
		cmp, err := versioning.Compare(out[i].Version, out[j].Version)
		return err == nil && cmp < 0
	})
	return out, nil
}

func (s *WorkflowStore) ClearCurrentVersion(ctx context.Context, documentID string) error {
	if s.db == nil {
		return errDBUnavailable
	}
	return s.db.WithContext(ctx).
		Model(&DocumentVersionModel{}).
		Where("document_id = ? AND is_current = ?", documentID, true).
		Update("is_current", false).Error
}

func (s *WorkflowStore) CreateReview(ctx context.Context, review documents.Review) error {
	if s.db == nil {
		return errDBUnavailable
	}
	model := reviewModelFromDomain(review)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Errorf(domain.KindAlreadyAssigned, "reviewer %s already has an open review on version %s", review.ReviewerID, review.DocumentVersionID)
		}
		return err
	}
	return nil
}

func (s *WorkflowStore) GetReview(ctx context.Context, id string) (documents.Review, error) {
	if s.db == nil {
		return documents.Review{}, errDBUnavailable
	}
	var model DocumentReviewModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return documents.Review{}, notFound(err, "review", id)
	}
	return reviewFromModel(model), nil
}

func (s *WorkflowStore) UpdateReview(ctx context.Context, review *documents.Review) error {
	if s.db == nil {
		return errDBUnavailable
	}
	var decision *string
	if review.Decision != nil {
		value := string(*review.Decision)
		decision = &value
	}
	res := s.db.WithContext(ctx).
		Model(&DocumentReviewModel{}).
		Where("id = ? AND revision = ?", review.ID, review.Revision).
		Updates(map[string]any{
			"due_date":        utcPtr(review.DueDate),
			"decision":        decision,
			"comment":         review.Comment,
			"is_completed":    review.IsCompleted,
			"superseded":      review.Superseded,
			"review_date":     utcPtr(review.ReviewDate),
			"completed_at":    utcPtr(review.CompletedAt),
			"completed_by_id": stringPtrIfNotEmpty(review.CompletedByID),
			"revision":        review.Revision + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.staleOrMissing(ctx, &DocumentReviewModel{}, "review", review.ID, review.Revision)
	}
	review.Revision++
	return nil
}

func (s *WorkflowStore) ListReviewsByVersion(ctx context.Context, versionID string) ([]documents.Review, error) {
	return s.listReviews(ctx, 0, "document_version_id = ?", versionID)
}

func (s *WorkflowStore) ListReviewsByDocument(ctx context.Context, documentID string) ([]documents.Review, error) {
	return s.listReviews(ctx, 0, "document_id = ?", documentID)
}

func (s *WorkflowStore) ListOverdueReviews(ctx context.Context, now time.Time, limit int) ([]documents.Review, error) {
	return s.listReviews(ctx, limit,
		"decision IS NULL AND is_completed = ? AND superseded = ? AND due_date IS NOT NULL AND due_date < ?",
		false, false, now.UTC(),
	)
}

func (s *WorkflowStore) listReviews(ctx context.Context, limit int, cond string, args ...any) ([]documents.Review, error) {
	if s.db == nil {
		return nil, errDBUnavailable
	}
	query := s.db.WithContext(ctx).Where(cond, args...).Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []DocumentReviewModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]documents.Review, 0, len(models))
	for _, model := range models {
		out = append(out, reviewFromModel(model))
	}
	return out, nil
}

// staleOrMissing tells a lost optimistic update apart from a missing row.
func (s *WorkflowStore) staleOrMissing(ctx context.Context, model any, entity, id string, revision int64) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.Errorf(domain.KindNotFound, "%s %s not found", entity, id)
	}
	return domain.Errorf(domain.KindConflict, "%s %s changed since revision %d", entity, id, revision)
}

func documentModelFromDomain(doc documents.Document) (DocumentModel, error) {
	reviewerIDs, err := encodeIDs(doc.ReviewerIDs)
	if err != nil {
		return DocumentModel{}, fmt.Errorf("encode reviewer ids: %w", err)
	}
	return DocumentModel{
		ID:               doc.ID,
		Title:            doc.Title,
		Description:      doc.Description,
		Status:           string(doc.Status),
		Classification:   doc.Classification,
		ReviewFrequency:  string(doc.ReviewFrequency),
		NextReviewDate:   utcPtr(doc.NextReviewDate),
		OwnerID:          doc.OwnerID,
		TypeID:           stringPtrIfNotEmpty(doc.TypeID),
		ISOClauseID:      stringPtrIfNotEmpty(doc.ISOClauseID),
		CurrentVersionID: doc.CurrentVersionID,
		ReviewerIDsJSON:  reviewerIDs,
		ReviewCycle:      doc.ReviewCycle,
		Revision:         doc.Revision,
		CreatedAt:        doc.CreatedAt.UTC(),
		UpdatedAt:        doc.UpdatedAt.UTC(),
	}, nil
}

func documentFromModel(model DocumentModel) (documents.Document, error) {
	reviewerIDs, err := decodeIDs(model.ReviewerIDsJSON)
	if err != nil {
		return documents.Document{}, fmt.Errorf("decode reviewer ids for %s: %w", model.ID, err)
	}
	return documents.Document{
		ID:               model.ID,
		Title:            model.Title,
		Description:      model.Description,
		Status:           documents.Status(model.Status),
		Classification:   model.Classification,
		ReviewFrequency:  documents.Frequency(model.ReviewFrequency),
		NextReviewDate:   utcPtr(model.NextReviewDate),
		OwnerID:          model.OwnerID,
		TypeID:           stringValue(model.TypeID),
		ISOClauseID:      stringValue(model.ISOClauseID),
		CurrentVersionID: model.CurrentVersionID,
		ReviewerIDs:      reviewerIDs,
		ReviewCycle:      model.ReviewCycle,
		Revision:         model.Revision,
		CreatedAt:        model.CreatedAt.UTC(),
		UpdatedAt:        model.UpdatedAt.UTC(),
	}, nil
}

func versionModelFromDomain(version documents.Version) DocumentVersionModel {
	return DocumentVersionModel{
		ID:         version.ID,
		DocumentID: version.DocumentID,
		Version:    version.Version,
		IsCurrent:  version.IsCurrent,
		FileURL:    stringPtrIfNotEmpty(version.FileURL),
		DraftURL:   stringPtrIfNotEmpty(version.DraftURL),
		CreatedAt:  version.CreatedAt.UTC(),
	}
}

func versionFromModel(model DocumentVersionModel) documents.Version {
	return documents.Version{
		ID:         model.ID,
		DocumentID: model.DocumentID,
		Version:    model.Version,
		IsCurrent:  model.IsCurrent,
		FileURL:    stringValue(model.FileURL),
		DraftURL:   stringValue(model.DraftURL),
		CreatedAt:  model.CreatedAt.UTC(),
	}
}

func reviewModelFromDomain(review documents.Review) DocumentReviewModel {
	var decision *string
	if review.Decision != nil {
		value := string(*review.Decision)
		decision = &value
	}
	return DocumentReviewModel{
		ID:                review.ID,
		DocumentID:        review.DocumentID,
		DocumentVersionID: review.DocumentVersionID,
		ReviewerID:        review.ReviewerID,
		AssignedByID:      review.AssignedByID,
		Cycle:             review.Cycle,
		DueDate:           utcPtr(review.DueDate),
		Decision:          decision,
		Comment:           review.Comment,
		IsCompleted:       review.IsCompleted,
		Superseded:        review.Superseded,
		ReviewDate:        utcPtr(review.ReviewDate),
		CompletedAt:       utcPtr(review.CompletedAt),
		CompletedByID:     stringPtrIfNotEmpty(review.CompletedByID),
		Revision:          review.Revision,
		CreatedAt:         review.CreatedAt.UTC(),
	}
}

func reviewFromModel(model DocumentReviewModel) documents.Review {
	var decision *documents.Decision
	if model.Decision != nil {
		value := documents.Decision(*model.Decision)
		decision = &value
	}
	return documents.Review{
		ID:                model.ID,
		DocumentID:        model.DocumentID,
		DocumentVersionID: model.DocumentVersionID,
		ReviewerID:        model.ReviewerID,
		AssignedByID:      model.AssignedByID,
		Cycle:             model.Cycle,
		DueDate:           utcPtr(model.DueDate),
		Decision:          decision,
		Comment:           model.Comment,
		IsCompleted:       model.IsCompleted,
		Superseded:        model.Superseded,
		ReviewDate:        utcPtr(model.ReviewDate),
		CompletedAt:       utcPtr(model.CompletedAt),
		CompletedByID:     stringValue(model.CompletedByID),
		Revision:          model.Revision,
		CreatedAt:         model.CreatedAt.UTC(),
	}
}

var _ usecase.WorkflowStore = (*WorkflowStore)(nil)
