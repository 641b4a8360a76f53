package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"looped/config"
	"looped/infrastructure"
	"looped/internal/feed"
	"looped/internal/profile"
	"looped/internal/search"
	"looped/internal/social"
	"looped/pkg/jwt"
)

type Handlers struct {
	Profile *profile.JSONHandler
	Social  *social.JSONHandler
	Search  *search.JSONHandler
	Feed    *feed.JSONHandler

	SocialGRPC *social.GRPCHandler
}

type Server struct {
	router *mux.Router
	grpc   *grpcweb.WrappedGrpcServer
}

func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	tokens *jwt.JWT,
	registry *prometheus.Registry,
	grpcServer *grpc.Server,
	handlers *Handlers,
) *Server {
	router := mux.NewRouter()
	router.Use(Logger(logger))
	router.Use(RateLimitMiddleware(cfg.RateLimit))

	social.RegisterSocialServer(grpcServer, handlers.SocialGRPC)
	server := &Server{
		router: router,
		grpc:   grpcweb.WrapServer(grpcServer, grpcweb.WithOriginFunc(func(string) bool { return true })),
	}
	server.setupRoutes(tokens, registry, handlers)
	return server
}

func (s *Server) setupRoutes(tokens *jwt.JWT, registry *prometheus.Registry, h *Handlers) {
	s.router.HandleFunc("/health", s.healthCheck).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	authRoute := s.router.NewRoute().Subrouter()
	authRoute.Use(AuthMiddleware(tokens))
	profile.SetupJSONRoutes(authRoute, h.Profile)
	social.SetupJSONRoutes(authRoute, h.Social)
	search.SetupJSONRoutes(authRoute, h.Search)
	feed.SetupJSONRoutes(authRoute, h.Feed)
}

// ServeHTTP sends grpc-web calls to the gRPC server and everything else to
// the REST router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.grpc.IsGrpcWebRequest(r) || s.grpc.IsAcceptableGrpcCorsRequest(r) {
		s.grpc.ServeHTTP(w, r)
		return
	}
	s.router.ServeHTTP(w, r)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	infrastructure.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
