package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/changes"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

// Append runs in a nested transaction. Called on a transaction handle it
// becomes a savepoint, so a failed append leaves the outer transition intact
// while the seq row lock is held until the outer commit.
func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if r.db == nil {
		return domain.AuditEvent{}, errDBUnavailable
	}
	if event.DocumentID == "" {
		return domain.AuditEvent{}, errors.New("document_id is required")
	}
	if event.EventType == "" {
		return domain.AuditEvent{}, errors.New("event_type is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	event.CreatedAt = event.CreatedAt.Truncate(time.Microsecond)
	if event.Result == "" {
		event.Result = domain.AuditResultSuccess
	}
	if event.Details == nil {
		event.Details = changes.Diff{}
	}

	var out domain.AuditEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, prevHash, err := nextAuditSeq(ctx, tx, event.DocumentID)
		if err != nil {
			return err
		}
		event.Seq = seq
		event.PrevHash = prevHash

		hash, err := domain.ComputeAuditHash(event)
		if err != nil {
			return err
		}
		event.Hash = hash

		model, err := auditEventModelFromDomain(event)
		if err != nil {
			return err
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		out = event
		return nil
	})
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return out, nil
}

func (r *AuditEventRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, model := range models {
		event, err := auditEventFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

func auditEventModelFromDomain(event domain.AuditEvent) (AuditEventModel, error) {
	targets := event.Targets
	if targets == nil {
		targets = []domain.AuditTarget{}
	}
	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return AuditEventModel{}, fmt.Errorf("encode audit targets: %w", err)
	}
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return AuditEventModel{}, fmt.Errorf("encode audit details: %w", err)
	}
	return AuditEventModel{
		ID:          event.ID,
		DocumentID:  event.DocumentID,
		Seq:         event.Seq,
		EventType:   string(event.EventType),
		ActorID:     event.ActorID,
		TargetsJSON: targetsJSON,
		DetailsJSON: detailsJSON,
		Result:      string(event.Result),
		ErrorCode:   stringPtrIfNotEmpty(event.ErrorCode),
		PrevHash:    event.PrevHash,
		Hash:        event.Hash,
		CreatedAt:   event.CreatedAt.UTC(),
	}, nil
}

func auditEventFromModel(model AuditEventModel) (domain.AuditEvent, error) {
	var targets []domain.AuditTarget
	if len(model.TargetsJSON) > 0 {
		if err := json.Unmarshal(model.TargetsJSON, &targets); err != nil {
			return domain.AuditEvent{}, fmt.Errorf("decode audit targets for %s: %w", model.ID, err)
		}
	}
	details := changes.Diff{}
	if len(model.DetailsJSON) > 0 {
		if err := json.Unmarshal(model.DetailsJSON, &details); err != nil {
			return domain.AuditEvent{}, fmt.Errorf("decode audit details for %s: %w", model.ID, err)
		}
	}
	return domain.AuditEvent{
		ID:         model.ID,
		DocumentID: model.DocumentID,
		Seq:        model.Seq,
		EventType:  domain.AuditEventType(model.EventType),
		ActorID:    model.ActorID,
		Targets:    targets,
		Details:    details,
		Result:     domain.AuditResult(model.Result),
		ErrorCode:  stringValue(model.ErrorCode),
		PrevHash:   model.PrevHash,
		Hash:       model.Hash,
		CreatedAt:  model.CreatedAt.UTC(),
	}, nil
}

func nextAuditSeq(ctx context.Context, tx *gorm.DB, documentID string) (int64, string, error) {
	if err := tx.WithContext(ctx).Exec(
		"INSERT INTO document_audit_seq (document_id, seq) VALUES (?, 0) ON CONFLICT (document_id) DO NOTHING",
		documentID,
	).Error; err != nil {
		return 0, "", err
	}

	var currentSeq int64
	if err := tx.WithContext(ctx).Raw(
		"SELECT seq FROM document_audit_seq WHERE document_id = ? FOR UPDATE",
		documentID,
	).Scan(&currentSeq).Error; err != nil {
		return 0, "", err
	}
	nextSeq := currentSeq + 1
	if err := tx.WithContext(ctx).Exec(
		"UPDATE document_audit_seq SET seq = ? WHERE document_id = ?",
		nextSeq,
		documentID,
	).Error; err != nil {
		return 0, "", err
	}

	prevHash := domain.AuditZeroHash
	if currentSeq > 0 {
		var prev AuditEventModel
		if err := tx.WithContext(ctx).
			Where("document_id = ? AND seq = ?", documentID, currentSeq).
			Take(&prev).Error; err != nil {
			return 0, "", err
		}
		prevHash = prev.Hash
	}
	if prevHash == "" {
		return 0, "", fmt.Errorf("missing previous audit hash for document %s", documentID)
	}
	return nextSeq, prevHash, nil
}
