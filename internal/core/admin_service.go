package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/models"
)

// ErrInvalidUserID is returned for empty or malformed user ids.
var ErrInvalidUserID = errors.New("invalid user id")

type adminService struct {
	writer *Writer
	policy Authorizer
	logger *zap.Logger
}

// NewAdminService creates an AdminService. policy answers IsAdmin.
func NewAdminService(w *Writer, policy Authorizer, logger *zap.Logger) AdminService {
	return &adminService{writer: w, policy: policy, logger: logger}
}

func (s *adminService) IsAdmin(ctx context.Context) (bool, error) {
	return s.policy.IsAdmin(ctx)
}

func (s *adminService) ListAdmins(ctx context.Context) ([]*models.Admin, error) {
	docs, err := s.writer.List(ctx, db.Collection(models.AdminsCollection))
	if err != nil {
		return nil, err
	}
	out := make([]*models.Admin, 0, len(docs))
	for _, d := range docs {
		rec, err := models.Decode(models.KindAdmin, d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.(*models.Admin))
	}
	return out, nil
}

func (s *adminService) AddAdmin(ctx context.Context, uid, email string) (*models.Admin, error) {
	if uid == "" || strings.Contains(uid, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUserID, uid)
	}
	admin := &models.Admin{ID: uid, Email: email, AddedAt: time.Now().UTC()}
	if err := s.writer.CreateAt(ctx, db.Join(models.AdminsCollection, uid), admin); err != nil {
		return nil, err
	}
	s.logger.Info("Admin added", zap.String("uid", uid))
	return admin, nil
}

func (s *adminService) RemoveAdmin(ctx context.Context, uid string) error {
	if uid == "" || strings.Contains(uid, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, uid)
	}
	if err := s.writer.Delete(ctx, db.Join(models.AdminsCollection, uid)); err != nil {
		return err
	}
	s.logger.Info("Admin removed", zap.String("uid", uid))
	return nil
}
