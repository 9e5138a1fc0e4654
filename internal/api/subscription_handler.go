package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinic-backend-go/internal/core"
)

// SubscriptionHandler serves a patient's own subscriptions and the admin overview.
type SubscriptionHandler struct {
	subscriptions core.SubscriptionService
	logger        *zap.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(ss core.SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: ss, logger: logger}
}

// ListMine handles GET /me/subscriptions
func (h *SubscriptionHandler) ListMine(c *gin.Context) {
	subs, err := h.subscriptions.ListMine(c.Request.Context())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// Subscribe handles POST /me/subscriptions
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := h.subscriptions.Subscribe(c.Request.Context(), req.PlanID)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Subscribed to " + view.PlanName + ".", Data: view})
}

// Cancel handles POST /me/subscriptions/:id/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	if err := h.subscriptions.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Subscription cancelled."})
}

// ListAll handles GET /admin/subscriptions
func (h *SubscriptionHandler) ListAll(c *gin.Context) {
	subs, err := h.subscriptions.ListAll(c.Request.Context())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// SetStatus handles PATCH /admin/users/:uid/subscriptions/:id
func (h *SubscriptionHandler) SetStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.subscriptions.SetStatus(c.Request.Context(), c.Param("uid"), c.Param("id"), req.Status); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Subscription status updated."})
}

// Assign handles POST /admin/users/:uid/subscriptions
func (h *SubscriptionHandler) Assign(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := h.subscriptions.Assign(c.Request.Context(), c.Param("uid"), req.PlanID)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Plan assigned.", Data: view})
}
