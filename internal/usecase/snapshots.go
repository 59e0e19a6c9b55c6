package usecase

import (
	"docflow/internal/domain/changes"
	"docflow/internal/domain/documents"
)

// Snapshots use the persisted column names so audit diffs read the same as
// the stored rows.

func documentSnapshot(doc *documents.Document) changes.Value {
	if doc == nil {
		return changes.Null()
	}
	return changes.Object(map[string]changes.Value{
		"id":                 changes.String(doc.ID),
		"title":              changes.String(doc.Title),
		"description":        changes.String(doc.Description),
		"status":             changes.String(string(doc.Status)),
		"classification":     changes.String(doc.Classification),
		"review_frequency":   changes.String(string(doc.ReviewFrequency)),
		"next_review_date":   changes.TimePtr(doc.NextReviewDate),
		"owner_id":           changes.String(doc.OwnerID),
		"type_id":            changes.String(doc.TypeID),
		"iso_clause_id":      changes.String(doc.ISOClauseID),
		"current_version_id": changes.String(doc.CurrentVersionID),
		"reviewer_ids":       changes.Strings(doc.ReviewerIDs),
		"review_cycle":       changes.Int(int64(doc.ReviewCycle)),
	})
}

func versionSnapshot(version *documents.Version) changes.Value {
	if version == nil {
		return changes.Null()
	}
	return changes.Object(map[string]changes.Value{
		"id":          changes.String(version.ID),
		"document_id": changes.String(version.DocumentID),
		"version":     changes.String(version.Version),
		"is_current":  changes.Bool(version.IsCurrent),
		"file_url":    changes.String(version.FileURL),
		"draft_url":   changes.String(version.DraftURL),
	})
}

func reviewSnapshot(review *documents.Review) changes.Value {
	if review == nil {
		return changes.Null()
	}
	decision := changes.Null()
	if review.Decision != nil {
		decision = changes.String(string(*review.Decision))
	}
	return changes.Object(map[string]changes.Value{
		"id":                  changes.String(review.ID),
		"document_id":         changes.String(review.DocumentID),
		"document_version_id": changes.String(review.DocumentVersionID),
		"reviewer_id":         changes.String(review.ReviewerID),
		"assigned_by_id":      changes.String(review.AssignedByID),
		"cycle":               changes.Int(int64(review.Cycle)),
		"due_date":            changes.TimePtr(review.DueDate),
		"decision":            decision,
		"comment":             changes.String(review.Comment),
		"is_completed":        changes.Bool(review.IsCompleted),
		"superseded":          changes.Bool(review.Superseded),
		"review_date":         changes.TimePtr(review.ReviewDate),
		"completed_at":        changes.TimePtr(review.CompletedAt),
		"completed_by_id":     changes.String(review.CompletedByID),
	})
}
