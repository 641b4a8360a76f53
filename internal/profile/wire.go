package profile

import (
	"log/slog"

	"github.com/google/wire"

	"looped/internal/backend"
)

// ProvideRepository is a Wire provider function that creates a Repository
func ProvideRepository(b backend.Backend) Repository {
	return NewRepository(b)
}

// ProvideService is a Wire provider function that creates a Service
func ProvideService(repo Repository, logger *slog.Logger) *Service {
	return NewService(repo, logger)
}

var Set = wire.NewSet(
	ProvideRepository,
	ProvideService,
	NewJSONHandler,
)
