package reviews

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"docflow/internal/domain/documents"
	"docflow/internal/http/common"
	"docflow/internal/usecase"

	"github.com/gin-gonic/gin"
)

const defaultOverdueLimit = 100

type Handler struct {
	Reviews *usecase.ReviewService
	Clock   func() time.Time
}

func NewHandler(reviews *usecase.ReviewService, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{Reviews: reviews, Clock: clock}
}

func (h *Handler) HandleGet(c *gin.Context) {
	reviewID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	review, err := h.Reviews.Get(c.Request.Context(), reviewID)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": common.ToReviewResponse(review, h.Clock().UTC())})
}

func (h *Handler) HandleDecide(c *gin.Context) {
	actor, ok := common.ActorFromContext(c)
	if !ok {
		return
	}
	reviewID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Decision string `json:"decision"`
		Comment  string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	decision, err := documents.ParseDecision(req.Decision)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	review, err := h.Reviews.Decide(c.Request.Context(), actor, reviewID, decision, req.Comment)
	h.writeCommitted(c, review, err)
}

func (h *Handler) HandleComplete(c *gin.Context) {
	actor, ok := common.ActorFromContext(c)
	if !ok {
		return
	}
	reviewID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	review, err := h.Reviews.Complete(c.Request.Context(), actor, reviewID)
	h.writeCommitted(c, review, err)
}

// writeCommitted answers a decide or complete call. Once the review change
// has committed the call succeeded, so a failed aggregation is reported in
// the body next to the review rather than as an error status.
func (h *Handler) writeCommitted(c *gin.Context, review documents.Review, err error) {
	var aggregation *usecase.AggregationError
	if err != nil && !errors.As(err, &aggregation) {
		common.WriteError(c, err)
		return
	}
	body := gin.H{"review": common.ToReviewResponse(review, h.Clock().UTC())}
	if aggregation != nil {
		_, resp := common.ErrorFor(c, aggregation.Err)
		body["aggregation_error"] = resp
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) HandleUpdateComment(c *gin.Context) {
	actor, ok := common.ActorFromContext(c)
	if !ok {
		return
	}
	reviewID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	review, err := h.Reviews.UpdateComment(c.Request.Context(), actor, reviewID, req.Comment)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": common.ToReviewResponse(review, h.Clock().UTC())})
}

func (h *Handler) HandleListOverdue(c *gin.Context) {
	limit := defaultOverdueLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	overdue, err := h.Reviews.ListOverdue(c.Request.Context(), limit)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	now := h.Clock().UTC()
	items := make([]common.ReviewResponse, 0, len(overdue))
	for _, review := range overdue {
		items = append(items, common.ToReviewResponse(review, now))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
