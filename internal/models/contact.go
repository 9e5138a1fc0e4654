package models

import "time"

// ContactSubmission is a message sent through the public contact form.
type ContactSubmission struct {
	ID          string    `json:"id" firestore:"-"`
	Name        string    `json:"name" validate:"required,min=2"`
	Email       string    `json:"email" validate:"required,email"`
	Phone       string    `json:"phone,omitempty"`
	Message     string    `json:"message" validate:"required,min=10"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func (c *ContactSubmission) Kind() Kind      { return KindContactSubmission }
func (c *ContactSubmission) Validate() error { return validateRecord(KindContactSubmission, c) }

func (c *ContactSubmission) ToData() map[string]interface{} {
	m := map[string]interface{}{
		"name":        c.Name,
		"email":       c.Email,
		"message":     c.Message,
		"submittedAt": c.SubmittedAt,
	}
	putString(m, "phone", c.Phone)
	return m
}

func contactSubmissionFromData(id string, f fields) *ContactSubmission {
	return &ContactSubmission{
		ID:          id,
		Name:        f.getString("name"),
		Email:       f.getString("email"),
		Phone:       f.getString("phone"),
		Message:     f.getString("message"),
		SubmittedAt: f.getTime("submittedAt"),
	}
}

// Feedback is a short rating left by a signed-in patient. UserName is copied
// from the profile when the feedback is written.
type Feedback struct {
	ID          string    `json:"id" firestore:"-"`
	Message     string    `json:"message" validate:"required,min=3"`
	Rating      int       `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	UserID      string    `json:"userId,omitempty"`
	UserName    string    `json:"userName,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func (f *Feedback) Kind() Kind      { return KindFeedback }
func (f *Feedback) Validate() error { return validateRecord(KindFeedback, f) }

func (f *Feedback) ToData() map[string]interface{} {
	m := map[string]interface{}{
		"message":     f.Message,
		"submittedAt": f.SubmittedAt,
	}
	if f.Rating > 0 {
		m["rating"] = f.Rating
	}
	putString(m, "userId", f.UserID)
	putString(m, "userName", f.UserName)
	return m
}

func feedbackFromData(id string, f fields) *Feedback {
	return &Feedback{
		ID:          id,
		Message:     f.getString("message"),
		Rating:      f.getInt("rating"),
		UserID:      f.getString("userId"),
		UserName:    f.getString("userName"),
		SubmittedAt: f.getTime("submittedAt"),
	}
}
