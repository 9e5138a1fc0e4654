package api

import "clinic-backend-go/internal/models"

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse carries the short confirmation shown to the user and, optionally, the result.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CreatedResponse is returned for writes that produce a new document.
type CreatedResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// BookAppointmentRequest is the body of POST /therapists/:id/appointments.
type BookAppointmentRequest struct {
	Date         string `json:"date" binding:"required"`
	Time         string `json:"time" binding:"required"`
	PatientName  string `json:"patientName"`
	PatientEmail string `json:"patientEmail"`
	Notes        string `json:"notes"`
}

// StatusRequest changes the status of an appointment or subscription.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PlanRequest selects a subscription plan.
type PlanRequest struct {
	PlanID string `json:"planId" binding:"required"`
}

// AddAdminRequest grants admin access to a user.
type AddAdminRequest struct {
	UID   string `json:"uid" binding:"required"`
	Email string `json:"email"`
}

// AdminStatusResponse answers GET /admin/me.
type AdminStatusResponse struct {
	UID     string `json:"uid"`
	IsAdmin bool   `json:"isAdmin"`
}

// AuthErrorResponse describes a sign-in provider error code.
type AuthErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Known   bool   `json:"known"`
}

// FeedbackRequest is the body of POST /feedback; the author comes from the token.
type FeedbackRequest struct {
	Message string `json:"message"`
	Rating  int    `json:"rating"`
}

func (r FeedbackRequest) toModel() *models.Feedback {
	return &models.Feedback{Message: r.Message, Rating: r.Rating}
}

// AvailabilityResponse answers GET /therapists/:id/availability/:date. An
// unpublished date has Published=false and accepts any slot.
type AvailabilityResponse struct {
	Date      string   `json:"date"`
	Slots     []string `json:"slots"`
	Published bool     `json:"published"`
}
