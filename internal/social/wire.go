package social

import (
	"log/slog"

	"github.com/google/wire"

	"looped/internal/backend"
)

// ProvideRepository is a Wire provider function that creates a Repository
func ProvideRepository(b backend.Backend, logger *slog.Logger) Repository {
	return NewRepository(b, logger)
}

var Set = wire.NewSet(
	ProvideRepository,
	NewService,
	NewJSONHandler,
	NewGRPCHandler,
)
