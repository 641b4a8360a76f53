package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"looped/config"
	"looped/internal/backend"
	"looped/internal/feed"
	"looped/internal/profile"
	"looped/internal/search"
	"looped/internal/sessions"
	"looped/internal/social"
	"looped/pkg/jwt"
)

type testServer struct {
	server *Server
	tokens *jwt.JWT
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		JWTSecret:   "test-secret",
		RateLimit:   rateLimit,
		SearchLimit: 100,
		Sessions:    config.SessionsConfig{IdleTTL: 30},
	}

	registry := prometheus.NewRegistry()
	mem := backend.NewMemory(logger)
	t.Cleanup(func() { _ = mem.Close() })
	b := backend.NewInstrumented(mem, backend.NewMetrics(registry))

	profiles := profile.NewService(profile.NewRepository(b), logger)
	socialService := social.NewService(social.NewRepository(b, logger), profiles, logger)
	manager := sessions.NewManager(socialService, cfg, registry, logger)
	t.Cleanup(manager.Close)

	tokens := jwt.NewJWT(cfg.JWTKey(), time.Hour)
	handlers := &Handlers{
		Profile: profile.NewJSONHandler(profiles),
		Social:  social.NewJSONHandler(manager, socialService),
		Search:  search.NewJSONHandler(search.NewService(profiles, cfg, logger)),
		Feed:    feed.NewJSONHandler(feed.NewService(feed.NewRepository(b), logger), manager),

		SocialGRPC: social.NewGRPCHandler(manager),
	}

	return &testServer{
		server: NewServer(cfg, logger, tokens, registry, grpc.NewServer(), handlers),
		tokens: tokens,
	}
}

func (ts *testServer) do(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := ts.tokens.GenerateToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	ts := newTestServer(t, 100)

	assert.Equal(t, http.StatusOK, ts.do(t, "", "GET", "/health", nil).Code)

	ts.do(t, "a", "GET", "/profile", nil)
	rec := ts.do(t, "", "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "looped_backend_calls_total")
	assert.Contains(t, rec.Body.String(), "looped_active_sessions")
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, 100)

	rec := ts.do(t, "", "GET", "/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/profile", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileLifecycle(t *testing.T) {
	ts := newTestServer(t, 100)

	rec := ts.do(t, "a", "GET", "/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[map[string]any](t, rec)
	assert.Nil(t, empty["profile"])

	rec = ts.do(t, "a", "POST", "/profile", map[string]any{"username": "x", "display_name": "A"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	invalid := decode[struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}](t, rec)
	assert.Contains(t, invalid.Fields, "username")
	assert.Contains(t, invalid.Fields, "display_name")

	rec = ts.do(t, "a", "POST", "/profile", map[string]any{"username": "alice", "display_name": "Alice"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, "b", "POST", "/profile", map[string]any{"username": "alice", "display_name": "Other"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, "a", "PATCH", "/profile", map[string]any{"bio": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", decode[profile.User](t, rec).Bio)

	rec = ts.do(t, "b", "GET", "/usernames/alice/available", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["available"])

	assert.Equal(t, http.StatusNotFound, ts.do(t, "a", "GET", "/profiles/ghost", nil).Code)
	assert.Equal(t, http.StatusNotImplemented, ts.do(t, "a", "DELETE", "/profile", nil).Code)
}

func TestFollowRequestFlow(t *testing.T) {
	ts := newTestServer(t, 100)

	require.Equal(t, http.StatusCreated, ts.do(t, "a", "POST", "/profile",
		map[string]any{"username": "alice", "display_name": "Alice"}).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, "b", "POST", "/profile",
		map[string]any{"username": "bob", "display_name": "Bob", "is_public": false}).Code)

	rec := ts.do(t, "a", "POST", "/social/following/a", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, "a", "POST", "/social/following/b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "requested", decode[map[string]any](t, rec)["outcome"])

	rec = ts.do(t, "b", "GET", "/social", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[stateBody](t, rec)
	require.Len(t, state.Requests, 1)
	assert.Equal(t, "alice", state.Requests[0].FollowerProfile.Username)
	assert.Empty(t, state.Followers)

	rec = ts.do(t, "b", "POST", "/social/requests/"+state.Requests[0].ID+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "accepted", decode[map[string]any](t, rec)["state"])

	rec = ts.do(t, "b", "POST", "/social/requests/"+state.Requests[0].ID+"/reject", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "accepted", decode[map[string]any](t, rec)["state"])

	rec = ts.do(t, "a", "GET", "/users/b/followers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	followers := decode[[]profile.User](t, rec)
	require.Len(t, followers, 1)
	assert.Equal(t, "a", followers[0].ID)

	rec = ts.do(t, "a", "POST", "/social/refetch", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[stateBody](t, rec).Following, 1)

	assert.Equal(t, http.StatusNoContent, ts.do(t, "a", "DELETE", "/social/following/b", nil).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, "a", "DELETE", "/social/following/b", nil).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, "a", "POST", "/session/end", nil).Code)
}

type stateBody struct {
	Followers []profile.User         `json:"followers"`
	Following []profile.User         `json:"following"`
	Requests  []social.FollowRequest `json:"requests"`
}

func TestSearchAndFeed(t *testing.T) {
	ts := newTestServer(t, 100)

	for id, name := range map[string]string{"a": "alice", "b": "dana", "c": "dave"} {
		require.Equal(t, http.StatusCreated, ts.do(t, id, "POST", "/profile",
			map[string]any{"username": name, "display_name": name}).Code)
	}

	rec := ts.do(t, "a", "GET", "/search?q=DA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]profile.User](t, rec), 2)

	require.Equal(t, http.StatusOK, ts.do(t, "a", "POST", "/social/following/b", nil).Code)

	rec = ts.do(t, "b", "POST", "/posts", map[string]any{"period": "weekly", "kind": "songs", "items": []string{"Song"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(t, "c", "POST", "/posts", map[string]any{"period": "weekly", "kind": "songs", "items": []string{"Other"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(t, "c", "POST", "/posts", map[string]any{"period": "weekly", "kind": "songs", "items": []string{}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, "a", "GET", "/feed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	posts := decode[[]feed.Post](t, rec)
	require.Len(t, posts, 1)
	assert.Equal(t, "b", posts[0].AuthorID)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, 1)

	assert.Equal(t, http.StatusOK, ts.do(t, "", "GET", "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(t, "", "GET", "/health", nil).Code)
}
