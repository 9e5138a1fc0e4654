package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinic-backend-go/internal/authz"
	"clinic-backend-go/internal/core"
	"clinic-backend-go/internal/models"
)

// BookingHandler handles appointment booking and therapist availability.
type BookingHandler struct {
	booking core.BookingService
	logger  *zap.Logger
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bs core.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{booking: bs, logger: logger}
}

// Book handles POST /therapists/:id/appointments. Patient name and email
// default to the signed-in profile.
func (h *BookingHandler) Book(c *gin.Context) {
	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if p := authz.PrincipalFrom(c.Request.Context()); p != nil {
		if req.PatientName == "" {
			req.PatientName = p.DisplayName
		}
		if req.PatientEmail == "" {
			req.PatientEmail = p.Email
		}
	}

	appt, err := h.booking.Book(c.Request.Context(), core.BookingRequest{
		TherapistID:  c.Param("id"),
		Date:         req.Date,
		Time:         req.Time,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		Notes:        req.Notes,
	})
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Appointment requested. We will confirm it shortly.", Data: appt})
}

// ListAppointments handles GET /therapists/:id/appointments
func (h *BookingHandler) ListAppointments(c *gin.Context) {
	appts, err := h.booking.ListAppointments(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, appts)
}

// SetAppointmentStatus handles PATCH /therapists/:id/appointments/:appointmentId
func (h *BookingHandler) SetAppointmentStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.booking.SetAppointmentStatus(c.Request.Context(), c.Param("id"), c.Param("appointmentId"), req.Status); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Appointment updated."})
}

// GetAvailability handles GET /therapists/:id/availability/:date
func (h *BookingHandler) GetAvailability(c *gin.Context) {
	date := c.Param("date")
	availability, err := h.booking.GetAvailability(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	if availability == nil {
		c.JSON(http.StatusOK, AvailabilityResponse{Date: date, Slots: []string{}})
		return
	}
	slots := availability.Slots
	if slots == nil {
		slots = []string{}
	}
	c.JSON(http.StatusOK, AvailabilityResponse{Date: availability.Date, Slots: slots, Published: true})
}

// SetAvailability handles PUT /therapists/:id/availability/:date
func (h *BookingHandler) SetAvailability(c *gin.Context) {
	var availability models.Availability
	if err := c.ShouldBindJSON(&availability); err != nil {
		badRequest(c, err)
		return
	}
	availability.Date = c.Param("date")
	if err := h.booking.SetAvailability(c.Request.Context(), c.Param("id"), &availability); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Availability saved.", Data: availability})
}
