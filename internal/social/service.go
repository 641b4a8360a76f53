package social

import (
	"context"
	"log/slog"

	"looped/infrastructure"
	"looped/internal/profile"
)

// Service answers questions about users other than the session owner. Their
// relations are read on demand and never kept.
type Service struct {
	repo     Repository
	profiles *profile.Service
	logger   *slog.Logger
}

func NewService(repo Repository, profiles *profile.Service, logger *slog.Logger) *Service {
	return &Service{repo: repo, profiles: profiles, logger: logger}
}

// NewStore builds an unstarted store for userID.
func (s *Service) NewStore(userID string) *Store {
	return NewStore(userID, s.repo, s.profiles, s.logger)
}

func (s *Service) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	return s.repo.EdgeExists(ctx, followerID, followingID)
}

func (s *Service) FollowersOf(ctx context.Context, userID string) ([]*profile.User, error) {
	edges, err := s.repo.Followers(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowerID
	}
	return s.Profiles(ctx, ids)
}

func (s *Service) FollowingOf(ctx context.Context, userID string) ([]*profile.User, error) {
	edges, err := s.repo.Following(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowingID
	}
	return s.Profiles(ctx, ids)
}

// Profiles resolves ids in order, skipping users without a profile.
func (s *Service) Profiles(ctx context.Context, ids []string) ([]*profile.User, error) {
	byID, err := s.profiles.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	users := make([]*profile.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// CheckVisible fails with ErrUserNotFound for unknown users.
func (s *Service) CheckVisible(ctx context.Context, userID string) error {
	u, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return infrastructure.ErrUserNotFound
	}
	return nil
}
