//go:build wireinject
// +build wireinject

package main

import (
	"log/slog"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"looped/config"
	"looped/internal/api"
	"looped/internal/backend"
	"looped/internal/feed"
	"looped/internal/profile"
	"looped/internal/search"
	"looped/internal/sessions"
	"looped/internal/social"
)

var AppSet = wire.NewSet(
	profile.Set,
	social.Set,
	sessions.Set,
	search.Set,
	feed.Set,
	api.Set,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	wire.Struct(new(App), "*"),
)

func InitializeApp(cfg *config.Config, logger *slog.Logger, registry *prometheus.Registry, b backend.Backend, grpcServer *grpc.Server) *App {
	wire.Build(AppSet)

	return &App{}
}
