package core

import (
	"context"

	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/diag"
	"clinic-backend-go/internal/models"
)

// Authorizer decides whether the caller in a context may touch a path.
// *authz.Policy is the production implementation.
type Authorizer interface {
	Authorize(ctx context.Context, op diag.Operation, path string) error
	AuthorizeUpdate(ctx context.Context, docPath string, fields map[string]interface{}) error
	AuthorizeQuery(ctx context.Context, q db.Query) error
	IsAdmin(ctx context.Context) (bool, error)
}

// Notifier delivers out-of-band notifications, e.g. email to the clinic inbox.
type Notifier interface {
	NotifyContactSubmission(ctx context.Context, sub *models.ContactSubmission) error
}

// CatalogService manages the admin-curated collections shown on the public site.
type CatalogService interface {
	List(ctx context.Context, collection string) ([]models.Record, error)
	Get(ctx context.Context, collection, id string) (models.Record, error)
	// FindBySlug returns the first document with the given slug. Slugs are not unique.
	FindBySlug(ctx context.Context, collection, slug string) (models.Record, error)
	Create(ctx context.Context, collection string, rec models.Record) (models.Record, error)
	// Replace overwrites the whole document.
	Replace(ctx context.Context, collection, id string, rec models.Record) (models.Record, error)
	// Patch applies a partial JSON document on top of the stored one and merges the result.
	Patch(ctx context.Context, collection, id string, patch []byte) (models.Record, error)
	Delete(ctx context.Context, collection, id string) error
	GetContactInformation(ctx context.Context) (*models.ContactInformation, error)
	SetContactInformation(ctx context.Context, info *models.ContactInformation) error
}

// AdminService manages the admins collection.
type AdminService interface {
	IsAdmin(ctx context.Context) (bool, error)
	ListAdmins(ctx context.Context) ([]*models.Admin, error)
	AddAdmin(ctx context.Context, uid, email string) (*models.Admin, error)
	RemoveAdmin(ctx context.Context, uid string) error
}

// BookingService turns booking requests into appointment documents.
type BookingService interface {
	Book(ctx context.Context, req BookingRequest) (*models.Appointment, error)
	ListAppointments(ctx context.Context, therapistID string) ([]*models.Appointment, error)
	SetAppointmentStatus(ctx context.Context, therapistID, appointmentID, status string) error
	GetAvailability(ctx context.Context, therapistID, date string) (*models.Availability, error)
	SetAvailability(ctx context.Context, therapistID string, availability *models.Availability) error
}

// SubscriptionService manages user subscriptions. Every read carries the derived status.
type SubscriptionService interface {
	Subscribe(ctx context.Context, planID string) (*SubscriptionView, error)
	ListMine(ctx context.Context) ([]SubscriptionView, error)
	Cancel(ctx context.Context, subscriptionID string) error
	ListAll(ctx context.Context) ([]SubscriptionView, error)
	SetStatus(ctx context.Context, userID, subscriptionID, status string) error
	// Assign grants a plan without an end date.
	Assign(ctx context.Context, userID, planID string) (*SubscriptionView, error)
}

// ContactService stores contact form submissions and feedback.
type ContactService interface {
	Submit(ctx context.Context, sub *models.ContactSubmission) (string, error)
	ListSubmissions(ctx context.Context) ([]*models.ContactSubmission, error)
	DeleteSubmission(ctx context.Context, id string) error
	SubmitFeedback(ctx context.Context, fb *models.Feedback) (string, error)
	ListFeedback(ctx context.Context, limit int) ([]*models.Feedback, error)
	DeleteFeedback(ctx context.Context, id string) error
}

// UserService defines the interface for user-related operations.
type UserService interface {
	// GetOrCreate retrieves a user by ID. If the user doesn't exist, it creates a new one.
	GetOrCreate(ctx context.Context, userID, email, displayName, photoURL string) (*models.User, bool, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
}
