package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clinic-backend-go/internal/authz"
	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/models"
)

var (
	ErrUnauthenticated    = errors.New("sign in required")
	ErrTherapistNotFound  = errors.New("therapist not found")
	ErrInvalidSlot        = errors.New("invalid appointment date or time")
	ErrSlotUnavailable    = errors.New("the selected time is not available")
	ErrAppointmentMissing = errors.New("appointment not found")
)

// isoMillis is the layout of appointmentDateTime, matching JavaScript's toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z"

// BookingRequest is a patient's request for a slot with a therapist.
type BookingRequest struct {
	TherapistID  string
	Date         string // 2006-01-02
	Time         string // 15:04
	PatientName  string
	PatientEmail string
	Notes        string
}

type bookingService struct {
	writer *Writer
	loc    *time.Location
	logger *zap.Logger
}

// NewBookingService creates a BookingService interpreting dates in loc.
func NewBookingService(w *Writer, loc *time.Location, logger *zap.Logger) BookingService {
	if loc == nil {
		loc = time.Local
	}
	return &bookingService{writer: w, loc: loc, logger: logger}
}

// AppointmentInstant combines a local date and time into the stored ISO string.
func AppointmentInstant(date, clock string, loc *time.Location) (string, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return "", fmt.Errorf("%w: %s %s", ErrInvalidSlot, date, clock)
	}
	return t.UTC().Format(isoMillis), nil
}

func (s *bookingService) Book(ctx context.Context, req BookingRequest) (*models.Appointment, error) {
	principal := authz.PrincipalFrom(ctx)
	if principal == nil {
		return nil, ErrUnauthenticated
	}
	when, err := AppointmentInstant(req.Date, req.Time, s.loc)
	if err != nil {
		return nil, err
	}
	if _, err := s.writer.Get(ctx, db.Join(models.TherapistsCollection, req.TherapistID)); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTherapistNotFound, req.TherapistID)
		}
		return nil, err
	}

	availability, err := s.GetAvailability(ctx, req.TherapistID, req.Date)
	if err != nil {
		return nil, err
	}
	if availability != nil && !availability.HasSlot(req.Time) {
		return nil, fmt.Errorf("%w: %s %s", ErrSlotUnavailable, req.Date, req.Time)
	}

	appt := &models.Appointment{
		TherapistID:         req.TherapistID,
		UserID:              principal.UID,
		PatientName:         req.PatientName,
		PatientEmail:        req.PatientEmail,
		Notes:               req.Notes,
		AppointmentDateTime: when,
		Status:              models.AppointmentPending,
		CreatedAt:           time.Now().UTC(),
	}
	id, err := s.writer.Create(ctx, appointmentsPath(req.TherapistID), appt)
	if err != nil {
		return nil, err
	}
	appt.ID = id
	s.logger.Info("Appointment booked",
		zap.String("therapistId", req.TherapistID),
		zap.String("appointmentId", id),
		zap.String("appointmentDateTime", when),
	)
	return appt, nil
}

func (s *bookingService) ListAppointments(ctx context.Context, therapistID string) ([]*models.Appointment, error) {
	q := db.Collection(appointmentsPath(therapistID)).OrderBy("appointmentDateTime", false)
	docs, err := s.writer.List(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Appointment, 0, len(docs))
	for _, d := range docs {
		rec, err := models.Decode(models.KindAppointment, d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.(*models.Appointment))
	}
	return out, nil
}

func (s *bookingService) SetAppointmentStatus(ctx context.Context, therapistID, appointmentID, status string) error {
	switch status {
	case models.AppointmentPending, models.AppointmentConfirmed, models.AppointmentCancelled:
	default:
		return &models.ValidationError{Kind: models.KindAppointment, Fields: map[string]string{"status": "oneof=pending confirmed cancelled"}}
	}
	path := db.Join(appointmentsPath(therapistID), appointmentID)
	if err := s.writer.Update(ctx, path, map[string]interface{}{"status": status}); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrAppointmentMissing, path)
		}
		return err
	}
	return nil
}

// GetAvailability returns nil without error when the therapist has not
// published availability for date.
func (s *bookingService) GetAvailability(ctx context.Context, therapistID, date string) (*models.Availability, error) {
	doc, err := s.writer.Get(ctx, availabilityPath(therapistID, date))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rec, err := models.Decode(models.KindAvailability, doc.ID, doc.Data)
	if err != nil {
		return nil, err
	}
	return rec.(*models.Availability), nil
}

func (s *bookingService) SetAvailability(ctx context.Context, therapistID string, availability *models.Availability) error {
	return s.writer.Set(ctx, availabilityPath(therapistID, availability.Date), availability, false)
}

func appointmentsPath(therapistID string) string {
	return db.Join(models.TherapistsCollection, therapistID, models.AppointmentsSubcollection)
}

func availabilityPath(therapistID, date string) string {
	return db.Join(models.TherapistsCollection, therapistID, models.AvailabilitySubcollection, date)
}
