package core

import (
	"time"

	"clinic-backend-go/internal/models"
)

// NeverLabel is shown for subscriptions without an end date.
const NeverLabel = "Never"

// DeriveStatus computes the status a subscription is displayed with. Cancelled
// wins over expiry; a missing end date never expires. The result is never stored.
func DeriveStatus(status string, endDate *time.Time, now time.Time) string {
	if status == models.SubscriptionCancelled {
		return models.SubscriptionCancelled
	}
	if endDate != nil && endDate.Before(now) {
		return models.SubscriptionExpired
	}
	return models.SubscriptionActive
}

// EndDateLabel renders an end date for display.
func EndDateLabel(endDate *time.Time) string {
	if endDate == nil {
		return NeverLabel
	}
	return endDate.Format("Jan 2, 2006")
}

// SubscriptionView is a stored subscription plus its derived status.
type SubscriptionView struct {
	models.UserSubscription
	DerivedStatus string `json:"derivedStatus"`
	EndDateLabel  string `json:"endDateLabel"`
}

// NewSubscriptionView derives the display fields of sub at now.
func NewSubscriptionView(sub *models.UserSubscription, now time.Time) SubscriptionView {
	return SubscriptionView{
		UserSubscription: *sub,
		DerivedStatus:    DeriveStatus(sub.Status, sub.EndDate, now),
		EndDateLabel:     EndDateLabel(sub.EndDate),
	}
}

// WithDerivedStatus returns a copy of raw subscription document data with
// derivedStatus and endDateLabel added, for live feeds.
func WithDerivedStatus(data map[string]interface{}, now time.Time) map[string]interface{} {
	sub, _ := models.Decode(models.KindUserSubscription, "", data)
	view := NewSubscriptionView(sub.(*models.UserSubscription), now)

	out := make(map[string]interface{}, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	out["derivedStatus"] = view.DerivedStatus
	out["endDateLabel"] = view.EndDateLabel
	return out
}
