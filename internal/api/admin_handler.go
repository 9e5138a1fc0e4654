package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinic-backend-go/internal/core"
	"clinic-backend-go/internal/diag"
	"clinic-backend-go/internal/middleware"
)

const (
	defaultDiagnosticsLimit = 50
	maxDiagnosticsLimit     = 500
)

// DiagnosticsStore lists recently persisted diagnostics. *diag.RedisSink satisfies it.
type DiagnosticsStore interface {
	Recent(ctx context.Context, n int64) ([]diag.Record, error)
}

// AdminHandler handles the admin back-office endpoints that are not plain catalog CRUD.
type AdminHandler struct {
	admins      core.AdminService
	bus         *diag.Bus
	diagnostics DiagnosticsStore
	logger      *zap.Logger
}

// NewAdminHandler creates a new AdminHandler. diagnostics may be nil when Redis is not configured.
func NewAdminHandler(as core.AdminService, bus *diag.Bus, diagnostics DiagnosticsStore, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admins: as, bus: bus, diagnostics: diagnostics, logger: logger}
}

// Me handles GET /admin/me. It is open to any signed-in user so the client
// can decide whether to show the back-office.
func (h *AdminHandler) Me(c *gin.Context) {
	ok, err := h.admins.IsAdmin(c.Request.Context())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, AdminStatusResponse{UID: c.GetString(middleware.ContextUserID), IsAdmin: ok})
}

// ListAdmins handles GET /admin/admins
func (h *AdminHandler) ListAdmins(c *gin.Context) {
	admins, err := h.admins.ListAdmins(c.Request.Context())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, admins)
}

// AddAdmin handles POST /admin/admins
func (h *AdminHandler) AddAdmin(c *gin.Context) {
	var req AddAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	admin, err := h.admins.AddAdmin(c.Request.Context(), req.UID, req.Email)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Admin added.", Data: admin})
}

// RemoveAdmin handles DELETE /admin/admins/:uid
func (h *AdminHandler) RemoveAdmin(c *gin.Context) {
	if err := h.admins.RemoveAdmin(c.Request.Context(), c.Param("uid")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Admin removed."})
}

// RecentDiagnostics handles GET /admin/diagnostics?limit=
func (h *AdminHandler) RecentDiagnostics(c *gin.Context) {
	if h.diagnostics == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Diagnostics storage is not configured"})
		return
	}
	limit := int64(defaultDiagnosticsLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 || n > maxDiagnosticsLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	records, err := h.diagnostics.Recent(c.Request.Context(), limit)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// StreamDiagnostics handles GET /admin/diagnostics/stream. Every PermissionError
// published while the client is connected is forwarded as an SSE event.
// Events are dropped for a client that does not keep up.
func (h *AdminHandler) StreamDiagnostics(c *gin.Context) {
	events := make(chan diag.Record, 16)
	unsubscribe := h.bus.Subscribe(diag.TopicPermissionError, func(ctx context.Context, event diag.Event) error {
		perr, ok := event.(*diag.PermissionError)
		if !ok {
			return nil
		}
		select {
		case events <- perr.Record():
		default:
			h.logger.Debug("Diagnostics stream client is slow, event dropped", zap.String("path", perr.Path))
		}
		return nil
	})
	defer unsubscribe()

	startStream(c)
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-events:
			c.SSEvent("permission-error", rec)
			c.Writer.Flush()
		}
	}
}
