package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"clinic-backend-go/internal/models"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name    string
		status  string
		endDate *time.Time
		want    string
	}{
		{"active without end date", models.SubscriptionActive, nil, models.SubscriptionActive},
		{"active with future end date", models.SubscriptionActive, &future, models.SubscriptionActive},
		{"active past end date", models.SubscriptionActive, &past, models.SubscriptionExpired},
		{"cancelled with future end date", models.SubscriptionCancelled, &future, models.SubscriptionCancelled},
		{"cancelled past end date", models.SubscriptionCancelled, &past, models.SubscriptionCancelled},
		{"cancelled without end date", models.SubscriptionCancelled, nil, models.SubscriptionCancelled},
		{"end date equal to now", models.SubscriptionActive, &now, models.SubscriptionActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.status, tt.endDate, now))
		})
	}
}

func TestEndDateLabel(t *testing.T) {
	assert.Equal(t, "Never", EndDateLabel(nil))
	end := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Jul 1, 2024", EndDateLabel(&end))
}

func TestWithDerivedStatus(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	data := map[string]interface{}{
		"id":      "s1",
		"status":  models.SubscriptionActive,
		"endDate": now.Add(-time.Minute),
	}

	out := WithDerivedStatus(data, now)
	assert.Equal(t, models.SubscriptionExpired, out["derivedStatus"])
	assert.Equal(t, "Jun 1, 2024", out["endDateLabel"])
	assert.Equal(t, "s1", out["id"])
	assert.NotContains(t, data, "derivedStatus")
}
