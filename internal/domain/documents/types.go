package documents

import (
	"strings"
	"time"

	"docflow/internal/domain"
)

type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusInReview Status = "IN_REVIEW"
	StatusApproved Status = "APPROVED"
	StatusExpired  Status = "EXPIRED"
)

type Frequency string

const (
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencySemiAnnual Frequency = "SEMI_ANNUAL"
	FrequencyYearly     Frequency = "YEARLY"
	FrequencyBiennial   Frequency = "BIENNIAL"
	FrequencyAsNeeded   Frequency = "AS_NEEDED"
)

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// ReviewState is derived from the stored review fields, never persisted.
type ReviewState string

const (
	ReviewPending        ReviewState = "PENDING"
	ReviewDecidedApprove ReviewState = "DECIDED_APPROVE"
	ReviewDecidedReject  ReviewState = "DECIDED_REJECT"
	ReviewCompleted      ReviewState = "COMPLETED"
)

// Document is the aggregate that owns its versions and reviews. ReviewCycle
// numbers the review round on the current version: a rejection closes the
// round and the next submission collects decisions under a new number.
type Document struct {
	ID               string
	Title            string
	Description      string
	Status           Status
	Classification   string
	ReviewFrequency  Frequency
	NextReviewDate   *time.Time
	OwnerID          string
	TypeID           string
	ISOClauseID      string
	CurrentVersionID string
	ReviewerIDs      []string
	ReviewCycle      int
	Revision         int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Version struct {
	ID         string
	DocumentID string
	Version    string
	IsCurrent  bool
	FileURL    string
	DraftURL   string
	CreatedAt  time.Time
}

// Review is one reviewer's assignment against a pinned document version.
type Review struct {
	ID                string
	DocumentID        string
	DocumentVersionID string
	ReviewerID        string
	AssignedByID      string
	Cycle             int
	DueDate           *time.Time
	Decision          *Decision
	Comment           string
	IsCompleted       bool
	Superseded        bool
	ReviewDate        *time.Time
	CompletedAt       *time.Time
	CompletedByID     string
	Revision          int64
	CreatedAt         time.Time
}

func (r Review) State() ReviewState {
	switch {
	case r.IsCompleted:
		return ReviewCompleted
	case r.Decision == nil:
		return ReviewPending
	case *r.Decision == DecisionApprove:
		return ReviewDecidedApprove
	default:
		return ReviewDecidedReject
	}
}

// IsExpired reports the derived overdue condition: still pending past its due date.
func (r Review) IsExpired(now time.Time) bool {
	return r.State() == ReviewPending && r.DueDate != nil && now.After(*r.DueDate)
}

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusDraft, StatusInReview, StatusApproved, StatusExpired:
		return s, nil
	default:
		return "", domain.Errorf(domain.KindInvalidArgument, "unknown document status %q", raw)
	}
}

func ParseFrequency(raw string) (Frequency, error) {
	switch f := Frequency(strings.ToUpper(strings.TrimSpace(raw))); f {
	case FrequencyQuarterly, FrequencySemiAnnual, FrequencyYearly, FrequencyBiennial, FrequencyAsNeeded:
		return f, nil
	default:
		return "", domain.Errorf(domain.KindInvalidArgument, "unknown review frequency %q", raw)
	}
}

func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(strings.ToUpper(strings.TrimSpace(raw))); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	default:
		return "", domain.Errorf(domain.KindInvalidArgument, "unknown decision %q", raw)
	}
}

// IsDueForExpiry is the predicate driving the APPROVED -> EXPIRED transition.
func IsDueForExpiry(doc Document, now time.Time) bool {
	return doc.Status == StatusApproved && doc.NextReviewDate != nil && now.After(*doc.NextReviewDate)
}
