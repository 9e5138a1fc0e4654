package models

import "time"

// Appointment statuses. New bookings always start as pending.
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)

// Appointment is a booking request stored under therapists/{id}/appointments.
// AppointmentDateTime is the ISO-8601 instant of the chosen local date and time.
type Appointment struct {
	ID                  string    `json:"id" firestore:"-"`
	TherapistID         string    `json:"therapistId" validate:"required"`
	UserID              string    `json:"userId" validate:"required"`
	PatientName         string    `json:"patientName" validate:"required"`
	PatientEmail        string    `json:"patientEmail" validate:"required,email"`
	Notes               string    `json:"notes,omitempty"`
	AppointmentDateTime string    `json:"appointmentDateTime" validate:"required"`
	Status              string    `json:"status" validate:"oneof=pending confirmed cancelled"`
	CreatedAt           time.Time `json:"createdAt"`
}

func (a *Appointment) Kind() Kind      { return KindAppointment }
func (a *Appointment) Validate() error { return validateRecord(KindAppointment, a) }

func (a *Appointment) ToData() map[string]interface{} {
	m := map[string]interface{}{
		"therapistId":         a.TherapistID,
		"userId":              a.UserID,
		"patientName":         a.PatientName,
		"patientEmail":        a.PatientEmail,
		"appointmentDateTime": a.AppointmentDateTime,
		"status":              a.Status,
		"createdAt":           a.CreatedAt,
	}
	putString(m, "notes", a.Notes)
	return m
}

func appointmentFromData(id string, f fields) *Appointment {
	return &Appointment{
		ID:                  id,
		TherapistID:         f.getString("therapistId"),
		UserID:              f.getString("userId"),
		PatientName:         f.getString("patientName"),
		PatientEmail:        f.getString("patientEmail"),
		Notes:               f.getString("notes"),
		AppointmentDateTime: f.getString("appointmentDateTime"),
		Status:              f.getString("status"),
		CreatedAt:           f.getTime("createdAt"),
	}
}

// Availability lists the bookable "HH:MM" slots of a therapist on one date.
// It is stored at therapists/{id}/availability/{date}.
type Availability struct {
	Date  string   `json:"date" validate:"required,datetime=2006-01-02"`
	Slots []string `json:"slots" validate:"dive,datetime=15:04"`
}

func (a *Availability) Kind() Kind      { return KindAvailability }
func (a *Availability) Validate() error { return validateRecord(KindAvailability, a) }

func (a *Availability) ToData() map[string]interface{} {
	return map[string]interface{}{
		"date":  a.Date,
		"slots": stringsOrEmpty(a.Slots),
	}
}

// HasSlot reports whether the given "HH:MM" slot is offered.
func (a *Availability) HasSlot(slot string) bool {
	for _, s := range a.Slots {
		if s == slot {
			return true
		}
	}
	return false
}

func availabilityFromData(id string, f fields) *Availability {
	date := f.getString("date")
	if date == "" {
		date = id
	}
	return &Availability{Date: date, Slots: f.getStrings("slots")}
}
