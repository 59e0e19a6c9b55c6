package db

import "time"

type DocumentModel struct {
	ID               string     `gorm:"type:uuid;primaryKey"`
	Title            string     `gorm:"not null"`
	Description      string     `gorm:"not null;default:''"`
	Status           string     `gorm:"index:idx_documents_status_next_review;not null"`
	Classification   string     `gorm:"not null;default:''"`
	ReviewFrequency  string     `gorm:"not null"`
	NextReviewDate   *time.Time `gorm:"index:idx_documents_status_next_review"`
	OwnerID          string     `gorm:"index;not null"`
	TypeID           *string
	ISOClauseID      *string `gorm:"column:iso_clause_id"`
	CurrentVersionID string  `gorm:"type:uuid;not null"`
	ReviewerIDsJSON  []byte  `gorm:"column:reviewer_ids;type:jsonb;not null"`
	ReviewCycle      int     `gorm:"not null;default:1"`
	Revision         int64   `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (DocumentModel) TableName() string { return "documents" }

type DocumentVersionModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	DocumentID string    `gorm:"type:uuid;not null;index:idx_document_versions_document;index:idx_document_versions_one_current,unique,where:is_current = true"`
	Version    string    `gorm:"not null"`
	IsCurrent  bool      `gorm:"not null"`
	FileURL    *string   `gorm:"column:file_url"`
	DraftURL   *string   `gorm:"column:draft_url"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (DocumentVersionModel) TableName() string { return "document_versions" }

type DocumentReviewModel struct {
	ID                string     `gorm:"type:uuid;primaryKey"`
	DocumentID        string     `gorm:"type:uuid;index;not null"`
	DocumentVersionID string     `gorm:"type:uuid;index;not null;index:idx_document_reviews_one_open,unique,where:is_completed = false"`
	ReviewerID        string     `gorm:"index;not null;index:idx_document_reviews_one_open,unique,where:is_completed = false"`
	Cycle             int        `gorm:"not null;default:1"`
	AssignedByID      string     `gorm:"not null"`
	DueDate           *time.Time `gorm:"index"`
	Decision          *string
	Comment           string `gorm:"not null;default:''"`
	IsCompleted       bool   `gorm:"not null"`
	Superseded        bool   `gorm:"not null"`
	ReviewDate        *time.Time
	CompletedAt       *time.Time
	CompletedByID     *string
	Revision          int64     `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (DocumentReviewModel) TableName() string { return "document_reviews" }

// AuditEventModel rows are never updated or deleted; they outlive the
// document they describe.
type AuditEventModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	DocumentID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_document_audit_seq"`
	Seq         int64     `gorm:"not null;uniqueIndex:idx_document_audit_seq"`
	EventType   string    `gorm:"index;not null"`
	ActorID     string    `gorm:"not null"`
	TargetsJSON []byte    `gorm:"column:targets;type:jsonb;not null"`
	DetailsJSON []byte    `gorm:"column:details;type:jsonb;not null"`
	Result      string    `gorm:"not null"`
	ErrorCode   *string
	PrevHash    string    `gorm:"not null"`
	Hash        string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (AuditEventModel) TableName() string { return "document_audit_events" }

type AuditSeqModel struct {
	DocumentID string `gorm:"type:uuid;primaryKey"`
	Seq        int64  `gorm:"not null"`
}

func (AuditSeqModel) TableName() string { return "document_audit_seq" }

func allModels() []any {
	return []any{
		&DocumentModel{},
		&DocumentVersionModel{},
		&DocumentReviewModel{},
		&AuditEventModel{},
		&AuditSeqModel{},
	}
}
