package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/models"
)

// ErrUserNotFound is returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// userService implements the UserService interface on the users collection.
type userService struct {
	writer *Writer
}

// NewUserService creates a new UserService instance.
func NewUserService(w *Writer) UserService {
	return &userService{writer: w}
}

// GetOrCreate retrieves a user by ID. If the user doesn't exist, it creates a new one.
// Returns the user, a boolean indicating if the user was created, and an error if any.
func (s *userService) GetOrCreate(ctx context.Context, userID, email, displayName, photoURL string) (*models.User, bool, error) {
	user, err := s.GetByID(ctx, userID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	newUser := &models.User{
		ID:          userID, // User ID from Firebase Auth is the document ID
		Email:       email,
		DisplayName: displayName,
		PhotoURL:    photoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.writer.CreateAt(ctx, db.Join(models.UsersCollection, userID), newUser); err != nil {
		return nil, false, fmt.Errorf("failed to create user (id: %s) after not found: %w", userID, err)
	}
	return newUser, true, nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	doc, err := s.writer.Get(ctx, db.Join(models.UsersCollection, userID))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get user by ID '%s': %w", userID, err)
	}
	rec, err := models.Decode(models.KindUser, doc.ID, doc.Data)
	if err != nil {
		return nil, err
	}
	return rec.(*models.User), nil
}
