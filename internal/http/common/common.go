package common

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/changes"
	"docflow/internal/domain/documents"
	"docflow/internal/http/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const actorKey = "actor"

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type DocumentResponse struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Status           string   `json:"status"`
	Classification   string   `json:"classification,omitempty"`
	ReviewFrequency  string   `json:"review_frequency"`
	NextReviewDate   *string  `json:"next_review_date,omitempty"`
	OwnerID          string   `json:"owner_id"`
	TypeID           string   `json:"type_id,omitempty"`
	ISOClauseID      string   `json:"iso_clause_id,omitempty"`
	CurrentVersionID string   `json:"current_version_id"`
	ReviewerIDs      []string `json:"reviewer_ids"`
	ReviewCycle      int      `json:"review_cycle"`
	Revision         int64    `json:"revision"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

type VersionResponse struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Version    string `json:"version"`
	IsCurrent  bool   `json:"is_current"`
	FileURL    string `json:"file_url,omitempty"`
	DraftURL   string `json:"draft_url,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type ReviewResponse struct {
	ID                string  `json:"id"`
	DocumentID        string  `json:"document_id"`
	DocumentVersionID string  `json:"document_version_id"`
	ReviewerID        string  `json:"reviewer_id"`
	AssignedByID      string  `json:"assigned_by_id"`
	Cycle             int     `json:"cycle"`
	State             string  `json:"state"`
	Decision          *string `json:"decision,omitempty"`
	Comment           string  `json:"comment,omitempty"`
	DueDate           *string `json:"due_date,omitempty"`
	Expired           bool    `json:"expired"`
	Superseded        bool    `json:"superseded"`
	ReviewDate        *string `json:"review_date,omitempty"`
	CompletedAt       *string `json:"completed_at,omitempty"`
	CompletedByID     string  `json:"completed_by_id,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

type AuditEventResponse struct {
	ID        string               `json:"id"`
	Seq       int64                `json:"seq"`
	EventType string               `json:"event_type"`
	ActorID   string               `json:"actor_id"`
	Targets   []domain.AuditTarget `json:"targets"`
	Details   changes.Diff         `json:"details"`
	Result    string               `json:"result"`
	ErrorCode string               `json:"error_code,omitempty"`
	PrevHash  string               `json:"prev_hash"`
	Hash      string               `json:"hash"`
	CreatedAt string               `json:"created_at"`
}

type Authenticator interface {
	Authenticate(*gin.Context) (domain.Actor, error)
}

type Authorizer interface {
	Require(actor domain.Actor, permission string) error
}

func AuthMiddleware(authenticator Authenticator, authorizer Authorizer, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticator == nil || authorizer == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: "auth misconfigured"})
			return
		}
		actor, err := authenticator.Authenticate(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication failed"})
			return
		}
		if err := authorizer.Require(actor, permission); err != nil {
			if authz, ok := auth.IsAuthzError(err); ok {
				c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Code: authz.Code, Message: "forbidden"})
				return
			}
			WriteError(c, err)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func ActorFromContext(c *gin.Context) (domain.Actor, bool) {
	value, ok := c.Get(actorKey)
	if !ok {
		WriteErrorCode(c, http.StatusInternalServerError, "INTERNAL", "actor missing")
		return domain.Actor{}, false
	}
	actor, ok := value.(domain.Actor)
	if !ok {
		WriteErrorCode(c, http.StatusInternalServerError, "INTERNAL", "actor invalid")
		return domain.Actor{}, false
	}
	return actor, true
}

func ParseUUIDParam(c *gin.Context, name string) (string, bool) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		WriteErrorCode(c, http.StatusBadRequest, string(domain.KindInvalidArgument), name+" is required")
		return "", false
	}
	if _, err := uuid.Parse(value); err != nil {
		WriteErrorCode(c, http.StatusBadRequest, string(domain.KindInvalidArgument), name+" must be a UUID")
		return "", false
	}
	return value, true
}

// ParseTimeField accepts RFC 3339 timestamps or plain dates.
func ParseTimeField(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, domain.Errorf(domain.KindInvalidArgument, "invalid timestamp %q", raw)
	}
	return &parsed, nil
}

func WriteError(c *gin.Context, err error) {
	status, resp := ErrorFor(c, err)
	c.AbortWithStatusJSON(status, resp)
}

// ErrorFor maps err to its HTTP status and body. Internal errors are logged
// and reported without their message.
func ErrorFor(c *gin.Context, err error) (int, ErrorResponse) {
	kind := domain.KindOf(err)
	status := StatusForKind(kind)
	if status == http.StatusInternalServerError {
		log.Printf("http: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		return status, ErrorResponse{Code: "INTERNAL", Message: "internal error"}
	}
	resp := ErrorResponse{Code: string(kind), Message: err.Error()}
	var transition *domain.TransitionError
	if errors.As(err, &transition) {
		resp.Details = map[string]any{"from": transition.From, "attempted": transition.Attempted}
	}
	return status, resp
}

func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidArgument, domain.KindMalformedVersion, domain.KindVersionUnderflow:
		return http.StatusBadRequest
	case domain.KindInvalidTransition, domain.KindAlreadyDecided, domain.KindAlreadyCompleted,
		domain.KindAlreadyAssigned, domain.KindNoReviewersAssigned:
		return http.StatusConflict
	case domain.KindConflict, domain.KindConcurrentModification:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func WriteErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message})
}

func ToDocumentResponse(doc documents.Document) DocumentResponse {
	reviewerIDs := doc.ReviewerIDs
	if reviewerIDs == nil {
		reviewerIDs = []string{}
	}
	return DocumentResponse{
		ID:               doc.ID,
		Title:            doc.Title,
		Description:      doc.Description,
		Status:           string(doc.Status),
		Classification:   doc.Classification,
		ReviewFrequency:  string(doc.ReviewFrequency),
		NextReviewDate:   formatTimePtr(doc.NextReviewDate),
		OwnerID:          doc.OwnerID,
		TypeID:           doc.TypeID,
		ISOClauseID:      doc.ISOClauseID,
		CurrentVersionID: doc.CurrentVersionID,
		ReviewerIDs:      reviewerIDs,
		ReviewCycle:      doc.ReviewCycle,
		Revision:         doc.Revision,
		CreatedAt:        formatTime(doc.CreatedAt),
		UpdatedAt:        formatTime(doc.UpdatedAt),
	}
}

func ToVersionResponse(version documents.Version) VersionResponse {
	return VersionResponse{
		ID:         version.ID,
		DocumentID: version.DocumentID,
		Version:    version.Version,
		IsCurrent:  version.IsCurrent,
		FileURL:    version.FileURL,
		DraftURL:   version.DraftURL,
		CreatedAt:  formatTime(version.CreatedAt),
	}
}

func ToReviewResponse(review documents.Review, now time.Time) ReviewResponse {
	resp := ReviewResponse{
		ID:                review.ID,
		DocumentID:        review.DocumentID,
		DocumentVersionID: review.DocumentVersionID,
		ReviewerID:        review.ReviewerID,
		AssignedByID:      review.AssignedByID,
		Cycle:             review.Cycle,
		State:             string(review.State()),
		Comment:           review.Comment,
		DueDate:           formatTimePtr(review.DueDate),
		Expired:           review.IsExpired(now),
		Superseded:        review.Superseded,
		ReviewDate:        formatTimePtr(review.ReviewDate),
		CompletedAt:       formatTimePtr(review.CompletedAt),
		CompletedByID:     review.CompletedByID,
		CreatedAt:         formatTime(review.CreatedAt),
	}
	if review.Decision != nil {
		decision := string(*review.Decision)
		resp.Decision = &decision
	}
	return resp
}

func ToAuditEventResponse(event domain.AuditEvent) AuditEventResponse {
	targets := event.Targets
	if targets == nil {
		targets = []domain.AuditTarget{}
	}
	details := event.Details
	if details == nil {
		details = changes.Diff{}
	}
	return AuditEventResponse{
		ID:        event.ID,
		Seq:       event.Seq,
		EventType: string(event.EventType),
		ActorID:   event.ActorID,
		Targets:   targets,
		Details:   details,
		Result:    string(event.Result),
		ErrorCode: event.ErrorCode,
		PrevHash:  event.PrevHash,
		Hash:      event.Hash,
		CreatedAt: formatTime(event.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}
