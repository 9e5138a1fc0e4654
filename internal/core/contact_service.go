package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"clinic-backend-go/internal/authz"
	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/models"
)

type contactService struct {
	writer   *Writer
	notifier Notifier
	logger   *zap.Logger
}

// NewContactService creates a ContactService. notifier may be nil.
func NewContactService(w *Writer, notifier Notifier, logger *zap.Logger) ContactService {
	return &contactService{writer: w, notifier: notifier, logger: logger}
}

// Submit stores a contact form message and then notifies the clinic. A failed
// notification is logged and does not fail the submission.
func (s *contactService) Submit(ctx context.Context, sub *models.ContactSubmission) (string, error) {
	sub.SubmittedAt = time.Now().UTC()
	id, err := s.writer.Create(ctx, models.ContactSubmissionsCollection, sub)
	if err != nil {
		return "", err
	}
	sub.ID = id
	if s.notifier != nil {
		if err := s.notifier.NotifyContactSubmission(ctx, sub); err != nil {
			s.logger.Warn("Failed to send contact notification", zap.String("submissionId", id), zap.Error(err))
		}
	}
	return id, nil
}

func (s *contactService) ListSubmissions(ctx context.Context) ([]*models.ContactSubmission, error) {
	q := db.Collection(models.ContactSubmissionsCollection).OrderBy("submittedAt", true)
	docs, err := s.writer.List(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ContactSubmission, 0, len(docs))
	for _, d := range docs {
		rec, err := models.Decode(models.KindContactSubmission, d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.(*models.ContactSubmission))
	}
	return out, nil
}

func (s *contactService) DeleteSubmission(ctx context.Context, id string) error {
	return s.writer.Delete(ctx, db.Join(models.ContactSubmissionsCollection, id))
}

// SubmitFeedback stores feedback with the author's name copied from the caller.
func (s *contactService) SubmitFeedback(ctx context.Context, fb *models.Feedback) (string, error) {
	if p := authz.PrincipalFrom(ctx); p != nil {
		fb.UserID = p.UID
		fb.UserName = p.DisplayName
		if fb.UserName == "" {
			fb.UserName = p.Email
		}
	}
	fb.SubmittedAt = time.Now().UTC()
	id, err := s.writer.Create(ctx, models.FeedbackCollection, fb)
	if err != nil {
		return "", err
	}
	fb.ID = id
	return id, nil
}

func (s *contactService) ListFeedback(ctx context.Context, limit int) ([]*models.Feedback, error) {
	q := db.Collection(models.FeedbackCollection).OrderBy("submittedAt", true)
	if limit > 0 {
		q = q.LimitTo(limit)
	}
	docs, err := s.writer.List(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Feedback, 0, len(docs))
	for _, d := range docs {
		rec, err := models.Decode(models.KindFeedback, d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.(*models.Feedback))
	}
	return out, nil
}

func (s *contactService) DeleteFeedback(ctx context.Context, id string) error {
	return s.writer.Delete(ctx, db.Join(models.FeedbackCollection, id))
}
