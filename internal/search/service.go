package search

import (
	"context"
	"log/slog"

	"looped/config"
	"looped/infrastructure"
	"looped/internal/profile"
)

// ProfileLister loads the list of users visible to search.
type ProfileLister interface {
	ListProfiles(ctx context.Context, limit int) ([]*profile.User, error)
}

type Service struct {
	profiles ProfileLister
	limit    int
	logger   *slog.Logger
}

func NewService(profiles ProfileLister, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{profiles: profiles, limit: cfg.SearchLimit, logger: logger}
}

// Search loads the visible user list and filters it for currentUserID. The
// list is scanned linearly.
func (s *Service) Search(ctx context.Context, currentUserID, query string, limit int) ([]*profile.User, error) {
	var users []*profile.User
	err := infrastructure.TimeOperation(ctx, s.logger, "search.ListProfiles", func() error {
		var err error
		users, err = s.profiles.ListProfiles(ctx, s.limit)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load profiles for search", "error", err)
		return nil, err
	}

	found := FilterExcluding(users, query, currentUserID)
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}
