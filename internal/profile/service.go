package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"looped/infrastructure"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// CreateProfile stores the profile a user fills in right after their first
// sign-in.
func (s *Service) CreateProfile(ctx context.Context, userID string, in CreateInput) (*User, error) {
	if userID == "" {
		return nil, infrastructure.ErrUnauthorized
	}
	if errs := ValidateCreate(in); errs != nil {
		return nil, fmt.Errorf("%w: %w", infrastructure.ErrInvalidInput, errs)
	}

	existing, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, infrastructure.ErrProfileExists
	}

	now := s.now().UTC()
	user := &User{
		ID:          userID,
		Username:    in.Username,
		DisplayName: in.DisplayName,
		Bio:         in.Bio,
		AvatarRef:   in.AvatarRef,
		IsPublic:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if user.AvatarRef == "" {
		user.AvatarRef = DefaultAvatar
	}
	if in.IsPublic != nil {
		user.IsPublic = *in.IsPublic
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, infrastructure.ErrConflict) {
			return nil, infrastructure.ErrUsernameTaken
		}
		s.logger.ErrorContext(ctx, "failed to create profile", "user_id", userID, "error", err)
		return nil, err
	}
	return user, nil
}

// GetProfile returns nil, nil when the profile has not been created yet.
func (s *Service) GetProfile(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) GetProfiles(ctx context.Context, ids []string) (map[string]*User, error) {
	return s.repo.GetByIDs(ctx, ids)
}

func (s *Service) ListProfiles(ctx context.Context, limit int) ([]*User, error) {
	return s.repo.List(ctx, limit)
}

func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	if msg := ValidateUsername(username); msg != "" {
		return false, fmt.Errorf("%w: %w", infrastructure.ErrInvalidInput, FieldErrors{"username": msg})
	}
	existing, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return existing == nil, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, patch Patch) (*User, error) {
	if errs := ValidatePatch(patch); errs != nil {
		return nil, fmt.Errorf("%w: %w", infrastructure.ErrInvalidInput, errs)
	}
	if patch.Empty() {
		user, err := s.repo.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, infrastructure.ErrUserNotFound
		}
		return user, nil
	}

	n, err := s.repo.Update(ctx, userID, patch, s.now().UTC())
	if err != nil {
		if errors.Is(err, infrastructure.ErrConflict) {
			return nil, infrastructure.ErrUsernameTaken
		}
		s.logger.ErrorContext(ctx, "failed to update profile", "user_id", userID, "error", err)
		return nil, err
	}
	if n == 0 {
		return nil, infrastructure.ErrUserNotFound
	}
	return s.repo.GetByID(ctx, userID)
}

// DeleteAccount is not supported yet.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	return infrastructure.ErrNotImplemented
}
