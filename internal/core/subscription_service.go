package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"clinic-backend-go/internal/authz"
	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/models"
)

var (
	ErrPlanNotFound         = errors.New("subscription plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidStatus        = errors.New("invalid subscription status")
)

type subscriptionService struct {
	writer *Writer
	logger *zap.Logger
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(w *Writer, logger *zap.Logger) SubscriptionService {
	return &subscriptionService{writer: w, logger: logger}
}

func subscriptionsPath(userID string) string {
	return db.Join(models.UsersCollection, userID, models.SubscriptionsSubcollection)
}

func (s *subscriptionService) plan(ctx context.Context, planID string) (*models.SubscriptionPlan, error) {
	doc, err := s.writer.Get(ctx, db.Join(models.SubscriptionPlansCollection, planID))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
		}
		return nil, err
	}
	rec, err := models.Decode(models.KindSubscriptionPlan, doc.ID, doc.Data)
	if err != nil {
		return nil, err
	}
	return rec.(*models.SubscriptionPlan), nil
}

// Subscribe starts the caller on planID. Plan name and price are copied so
// later plan edits do not change existing subscriptions.
func (s *subscriptionService) Subscribe(ctx context.Context, planID string) (*SubscriptionView, error) {
	principal := authz.PrincipalFrom(ctx)
	if principal == nil {
		return nil, ErrUnauthenticated
	}
	plan, err := s.plan(ctx, planID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	end := now.AddDate(0, 0, plan.DurationInDays)
	sub := &models.UserSubscription{
		UserID:    principal.UID,
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		Price:     plan.Price,
		Status:    models.SubscriptionActive,
		StartDate: now,
		EndDate:   &end,
	}
	return s.create(ctx, sub, now)
}

// Assign grants planID to userID on behalf of an admin. Assigned
// subscriptions have no end date and never expire.
func (s *subscriptionService) Assign(ctx context.Context, userID, planID string) (*SubscriptionView, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	plan, err := s.plan(ctx, planID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sub := &models.UserSubscription{
		UserID:    userID,
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		Price:     plan.Price,
		Status:    models.SubscriptionActive,
		StartDate: now,
	}
	return s.create(ctx, sub, now)
}

func (s *subscriptionService) create(ctx context.Context, sub *models.UserSubscription, now time.Time) (*SubscriptionView, error) {
	id, err := s.writer.Create(ctx, subscriptionsPath(sub.UserID), sub)
	if err != nil {
		return nil, err
	}
	sub.ID = id
	s.logger.Info("Subscription created",
		zap.String("userId", sub.UserID),
		zap.String("planId", sub.PlanID),
		zap.String("subscriptionId", id),
	)
	view := NewSubscriptionView(sub, now)
	return &view, nil
}

func (s *subscriptionService) ListMine(ctx context.Context) ([]SubscriptionView, error) {
	principal := authz.PrincipalFrom(ctx)
	if principal == nil {
		return nil, ErrUnauthenticated
	}
	q := db.Collection(subscriptionsPath(principal.UID)).OrderBy("startDate", true)
	return s.list(ctx, q)
}

// ListAll returns every subscription of every user, newest first.
func (s *subscriptionService) ListAll(ctx context.Context) ([]SubscriptionView, error) {
	return s.list(ctx, db.CollectionGroup(models.SubscriptionsSubcollection).OrderBy("startDate", true))
}

func (s *subscriptionService) list(ctx context.Context, q db.Query) ([]SubscriptionView, error) {
	docs, err := s.writer.List(ctx, q)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]SubscriptionView, 0, len(docs))
	for _, d := range docs {
		rec, err := models.Decode(models.KindUserSubscription, d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, NewSubscriptionView(rec.(*models.UserSubscription), now))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

// Cancel cancels one of the caller's own subscriptions.
func (s *subscriptionService) Cancel(ctx context.Context, subscriptionID string) error {
	principal := authz.PrincipalFrom(ctx)
	if principal == nil {
		return ErrUnauthenticated
	}
	return s.setStatus(ctx, principal.UID, subscriptionID, models.SubscriptionCancelled)
}

// SetStatus changes the stored status of any user's subscription.
func (s *subscriptionService) SetStatus(ctx context.Context, userID, subscriptionID, status string) error {
	if status != models.SubscriptionActive && status != models.SubscriptionCancelled {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.setStatus(ctx, userID, subscriptionID, status)
}

func (s *subscriptionService) setStatus(ctx context.Context, userID, subscriptionID, status string) error {
	path := db.Join(subscriptionsPath(userID), subscriptionID)
	if err := s.writer.Update(ctx, path, map[string]interface{}{"status": status}); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSubscriptionNotFound, path)
		}
		return err
	}
	s.logger.Info("Subscription status changed", zap.String("path", path), zap.String("status", status))
	return nil
}
