package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinic-backend-go/internal/core"
	"clinic-backend-go/internal/models"
)

const defaultFeedbackLimit = 20

// ContactHandler handles the public contact form and patient feedback.
type ContactHandler struct {
	contact core.ContactService
	logger  *zap.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(cs core.ContactService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{contact: cs, logger: logger}
}

// Submit handles POST /contact
func (h *ContactHandler) Submit(c *gin.Context) {
	var sub models.ContactSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.contact.Submit(c.Request.Context(), &sub)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{Message: "Thank you for your message. We will get back to you soon.", ID: id})
}

// ListSubmissions handles GET /contact
func (h *ContactHandler) ListSubmissions(c *gin.Context) {
	subs, err := h.contact.ListSubmissions(c.Request.Context())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// DeleteSubmission handles DELETE /contact/:id
func (h *ContactHandler) DeleteSubmission(c *gin.Context) {
	if err := h.contact.DeleteSubmission(c.Request.Context(), c.Param("id")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Submission deleted."})
}

// SubmitFeedback handles POST /feedback
func (h *ContactHandler) SubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.contact.SubmitFeedback(c.Request.Context(), req.toModel())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{Message: "Thank you for your feedback!", ID: id})
}

// ListFeedback handles GET /feedback?limit=
func (h *ContactHandler) ListFeedback(c *gin.Context) {
	limit := defaultFeedbackLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	items, err := h.contact.ListFeedback(c.Request.Context(), limit)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// DeleteFeedback handles DELETE /feedback/:id
func (h *ContactHandler) DeleteFeedback(c *gin.Context) {
	if err := h.contact.DeleteFeedback(c.Request.Context(), c.Param("id")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Feedback deleted."})
}
