package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinic-backend-go/internal/ai"
	"clinic-backend-go/internal/core"
	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/diag"
	"clinic-backend-go/internal/models"
)

// Generic messages shown for failures; the structured diagnostic only goes to the bus.
const (
	msgPermission = "You do not have permission to perform this action."
	msgInternal   = "An unexpected internal server error occurred."
)

// mapErrorToStatus maps service errors to HTTP status codes and an ErrorResponse.
func mapErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var errResponse ErrorResponse

	var permErr *diag.PermissionError
	var validationErr *models.ValidationError

	switch {
	case errors.As(err, &permErr):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: msgPermission}
	case errors.As(err, &validationErr):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Validation failed", Details: validationErr.Error()}
	case errors.Is(err, core.ErrUnauthenticated):
		statusCode = http.StatusUnauthorized
		errResponse = ErrorResponse{Error: core.ErrUnauthenticated.Error()}
	case errors.Is(err, ai.ErrAIUnavailable):
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: ai.UnavailableMessage}
	case errors.Is(err, core.ErrRecordNotFound),
		errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrTherapistNotFound),
		errors.Is(err, core.ErrAppointmentMissing),
		errors.Is(err, core.ErrPlanNotFound),
		errors.Is(err, core.ErrSubscriptionNotFound),
		errors.Is(err, core.ErrUnknownCollection),
		errors.Is(err, db.ErrNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: rootMessage(err)}
	case errors.Is(err, core.ErrDuplicatePlatform),
		errors.Is(err, core.ErrSlotUnavailable):
		statusCode = http.StatusConflict
		errResponse = ErrorResponse{Error: rootMessage(err)}
	case errors.Is(err, core.ErrInvalidSlot),
		errors.Is(err, core.ErrInvalidPatch),
		errors.Is(err, core.ErrKindMismatch),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, core.ErrInvalidUserID),
		errors.Is(err, db.ErrInvalidPath):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: rootMessage(err), Details: err.Error()}
	default:
		logger.Error("Internal Server Error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: msgInternal}
	}
	c.JSON(statusCode, errResponse)
}

var publicErrors = []error{
	core.ErrRecordNotFound, core.ErrUserNotFound, core.ErrTherapistNotFound,
	core.ErrAppointmentMissing, core.ErrPlanNotFound, core.ErrSubscriptionNotFound,
	core.ErrUnknownCollection, db.ErrNotFound, core.ErrDuplicatePlatform,
	core.ErrSlotUnavailable, core.ErrInvalidSlot, core.ErrInvalidPatch,
	core.ErrKindMismatch, core.ErrInvalidStatus, core.ErrInvalidUserID, db.ErrInvalidPath,
}

// rootMessage returns the sentinel's own text so wrapped context such as
// document paths does not leak into the headline.
func rootMessage(err error) string {
	for _, sentinel := range publicErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
}
