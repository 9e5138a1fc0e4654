package models

import "time"

// SubscriptionPlan is a purchasable plan.
type SubscriptionPlan struct {
	ID             string   `json:"id" firestore:"-"`
	Name           string   `json:"name" validate:"required"`
	Description    string   `json:"description,omitempty"`
	Price          float64  `json:"price" validate:"gte=0"`
	DurationInDays int      `json:"durationInDays" validate:"gt=0"`
	Features       []string `json:"features"`
	IsFeatured     bool     `json:"isFeatured"`
	ImageURL       string   `json:"imageUrl,omitempty" validate:"omitempty,url"`
	VideoURL       string   `json:"videoUrl,omitempty" validate:"omitempty,url"`
	Content        string   `json:"content,omitempty"`
}

func (p *SubscriptionPlan) Kind() Kind      { return KindSubscriptionPlan }
func (p *SubscriptionPlan) Validate() error { return validateRecord(KindSubscriptionPlan, p) }

func (p *SubscriptionPlan) ToData() map[string]interface{} {
	m := map[string]interface{}{
		"name":           p.Name,
		"price":          p.Price,
		"durationInDays": p.DurationInDays,
		"features":       stringsOrEmpty(p.Features),
		"isFeatured":     p.IsFeatured,
	}
	putString(m, "description", p.Description)
	putString(m, "imageUrl", p.ImageURL)
	putString(m, "videoUrl", p.VideoURL)
	putString(m, "content", p.Content)
	return m
}

func subscriptionPlanFromData(id string, f fields) *SubscriptionPlan {
	return &SubscriptionPlan{
		ID:             id,
		Name:           f.getString("name"),
		Description:    f.getString("description"),
		Price:          f.getFloat("price"),
		DurationInDays: f.getInt("durationInDays"),
		Features:       f.getStrings("features"),
		IsFeatured:     f.getBool("isFeatured"),
		ImageURL:       f.getString("imageUrl"),
		VideoURL:       f.getString("videoUrl"),
		Content:        f.getString("content"),
	}
}

// Persisted subscription statuses. "expired" is never stored; it is derived on read.
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// UserSubscription lives at users/{uid}/subscriptions/{id}. PlanName and Price
// are copied from the plan at purchase time.
type UserSubscription struct {
	ID        string     `json:"id" firestore:"-"`
	UserID    string     `json:"userId" validate:"required"`
	PlanID    string     `json:"planId" validate:"required"`
	PlanName  string     `json:"planName"`
	Price     float64    `json:"price" validate:"gte=0"`
	Status    string     `json:"status" validate:"oneof=active cancelled"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

func (s *UserSubscription) Kind() Kind      { return KindUserSubscription }
func (s *UserSubscription) Validate() error { return validateRecord(KindUserSubscription, s) }

func (s *UserSubscription) ToData() map[string]interface{} {
	m := map[string]interface{}{
		"userId":    s.UserID,
		"planId":    s.PlanID,
		"planName":  s.PlanName,
		"price":     s.Price,
		"status":    s.Status,
		"startDate": s.StartDate,
	}
	if s.EndDate != nil {
		m["endDate"] = *s.EndDate
	}
	return m
}

func userSubscriptionFromData(id string, f fields) *UserSubscription {
	return &UserSubscription{
		ID:        id,
		UserID:    f.getString("userId"),
		PlanID:    f.getString("planId"),
		PlanName:  f.getString("planName"),
		Price:     f.getFloat("price"),
		Status:    f.getString("status"),
		StartDate: f.getTime("startDate"),
		EndDate:   f.getTimePtr("endDate"),
	}
}
