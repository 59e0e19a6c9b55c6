package usecase

import (
	"context"
	"errors"
	"fmt"

	"docflow/internal/domain"
)

// VerifyDocumentAuditChain checks that the audit trail of one document is
// gapless and that every hash links to its predecessor.
func VerifyDocumentAuditChain(ctx context.Context, repo AuditEventRepository, documentID string) error {
	if repo == nil {
		return errors.New("audit repository required")
	}
	if documentID == "" {
		return domain.Errorf(domain.KindInvalidArgument, "document id is required")
	}
	events, err := repo.ListByDocument(ctx, documentID)
	if err != nil {
		return err
	}

	expectedSeq := int64(1)
	prevHash := domain.AuditZeroHash
	for _, event := range events {
		if event.DocumentID != documentID {
			return fmt.Errorf("audit chain document mismatch at seq %d", event.Seq)
		}
		if event.Seq != expectedSeq {
			return fmt.Errorf("audit chain seq mismatch: expected %d got %d", expectedSeq, event.Seq)
		}
		if event.PrevHash != prevHash {
			return fmt.Errorf("audit chain prev hash mismatch at seq %d", event.Seq)
		}
		if event.CreatedAt.IsZero() {
			return fmt.Errorf("audit chain missing created_at at seq %d", event.Seq)
		}
		expectedHash, err := domain.ComputeAuditHash(event)
		if err != nil {
			return fmt.Errorf("audit chain hash compute failed at seq %d: %w", event.Seq, err)
		}
		if expectedHash != event.Hash {
			return fmt.Errorf("audit chain hash mismatch at seq %d", event.Seq)
		}
		prevHash = event.Hash
		expectedSeq++
	}
	return nil
}
