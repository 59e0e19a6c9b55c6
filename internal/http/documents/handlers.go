package documents

import (
	"net/http"
	"time"

	"docflow/internal/http/common"
	"docflow/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Lifecycle *usecase.LifecycleService
	Reviews   *usecase.ReviewService
	Clock     func() time.Time
}

func NewHandler(lifecycle *usecase.LifecycleService, reviews *usecase.ReviewService, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{Lifecycle: lifecycle, Reviews: reviews, Clock: clock}
}

func (h *Handler) HandleCreate(c *gin.Context) {
	actor, ok := common.ActorFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Title           string   `json:"title"`
		Description     string   `json:"description"`
		Classification  string   `json:"classification"`
		ReviewFrequency string   `json:"review_frequency"`
		OwnerID         string   `json:"owner_id"`
		TypeID          string   `json:"type_id"`
		ISOClauseID     string   `json:"iso_clause_id"`
		ReviewerIDs     []string `json:"reviewer_ids"`
		FileURL         string   `json:"file_url"`
		DraftURL        string   `json:"draft_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	doc, err := h.Lifecycle.CreateDocument(c.Request.Context(), actor, usecase.CreateDocumentInput{
		Title:           req.Title,
		Description:     req.Description,
		Classification:  req.Classification,
		ReviewFrequency: req.ReviewFrequency,
		OwnerID:         req.OwnerID,
		TypeID:          req.TypeID,
		ISOClauseID:     req.ISOClauseID,
		ReviewerIDs:     req.ReviewerIDs,
		FileURL:         req.FileURL,
		DraftURL:        req.DraftURL,
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": common.ToDocumentResponse(doc)})
}

func (h *Handler) HandleGet(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.Lifecycle.GetDocument(c.Request.Context(), documentID)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": common.ToDocumentResponse(doc)})
}

func (h *Handler) HandleDelete(c *gin.Context) {
	actor, ok := common.ActorFromContext(c)
	if !ok {
		return
	}
	documentID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.Lifecycle.DeleteDocument(c.Request.Context(), actor, documentID); err != nil {
		common.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) HandleSubmit(c *gin.Context) {
	actor, ok := common.ActorFromContext(c)
	if !ok {
		return
	}
	documentID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		ReviewerIDs []string `json:"reviewer_ids"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
			return
		}
	}
	doc, err := h.Lifecycle.SubmitForReview(c.Request.Context(), actor, documentID, req.ReviewerIDs)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": common.ToDocumentResponse(doc)})
}

func (h *Handler) HandleReopen(c *gin.Context) {
	actor, ok := common.ActorFromContext(c)
	if !ok {
		return
	}
	documentID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.Lifecycle.ReopenForReview(c.Request.Context(), actor, documentID)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": common.ToDocumentResponse(doc)})
}

// HandleCheckExpiry runs the expiry check for one document at the current time.
func (h *Handler) HandleCheckExpiry(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.Lifecycle.CheckExpiry(c.Request.Context(), documentID, h.Clock().UTC())
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": common.ToDocumentResponse(doc)})
}

func (h *Handler) HandleListVersions(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	versions, err := h.Lifecycle.ListVersions(c.Request.Context(), documentID)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	items := make([]common.VersionResponse, 0, len(versions))
	for _, version := range versions {
		items = append(items, common.ToVersionResponse(version))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) HandleListReviews(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	reviews, err := h.Reviews.ListByDocument(c.Request.Context(), documentID)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	now := h.Clock().UTC()
	items := make([]common.ReviewResponse, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, common.ToReviewResponse(review, now))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) HandleAssignReviewer(c *gin.Context) {
	actor, ok := common.ActorFromContext(c)
	if !ok {
		return
	}
	documentID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		ReviewerID string `json:"reviewer_id"`
		VersionID  string `json:"version_id"`
		DueDate    string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	due, err := common.ParseTimeField(req.DueDate)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	review, err := h.Reviews.Assign(c.Request.Context(), actor, usecase.AssignInput{
		DocumentID: documentID,
		VersionID:  req.VersionID,
		ReviewerID: req.ReviewerID,
		DueDate:    due,
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"review": common.ToReviewResponse(review, h.Clock().UTC())})
}

func (h *Handler) HandleAuditTrail(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	events, err := h.Lifecycle.AuditTrail(c.Request.Context(), documentID)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	items := make([]common.AuditEventResponse, 0, len(events))
	for _, event := range events {
		items = append(items, common.ToAuditEventResponse(event))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
