package social

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"looped/infrastructure"
	"looped/internal/profile"
)

// Sessions hands out the started store of a signed-in user.
type Sessions interface {
	Acquire(ctx context.Context, userID string) (*Store, error)
	End(userID string)
}

type JSONHandler struct {
	sessions Sessions
	service  *Service
}

func NewJSONHandler(sessions Sessions, service *Service) *JSONHandler {
	return &JSONHandler{sessions: sessions, service: service}
}

type stateResponse struct {
	Followers    []*profile.User `json:"followers"`
	Following    []*profile.User `json:"following"`
	Requests     []FollowRequest `json:"requests"`
	SentRequests []string        `json:"sent_requests"`
}

func (h *JSONHandler) store(w http.ResponseWriter, r *http.Request) (*Store, bool) {
	userID, _ := infrastructure.UserIDFromContext(r.Context())
	store, err := h.sessions.Acquire(r.Context(), userID)
	if err != nil {
		infrastructure.WriteError(w, err)
		return nil, false
	}
	return store, true
}

func (h *JSONHandler) GetState(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	h.writeState(w, r, store)
}

func (h *JSONHandler) Refetch(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := store.Refetch(r.Context()); err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	h.writeState(w, r, store)
}

func (h *JSONHandler) writeState(w http.ResponseWriter, r *http.Request, store *Store) {
	snap := store.Snapshot()
	followers, err := h.service.Profiles(r.Context(), snap.Followers)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	following, err := h.service.Profiles(r.Context(), snap.Following)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, stateResponse{
		Followers:    followers,
		Following:    following,
		Requests:     snap.Requests,
		SentRequests: snap.SentRequests,
	})
}

func (h *JSONHandler) IsFollowing(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	target := mux.Vars(r)["id"]
	infrastructure.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":   target,
		"following": store.IsFollowing(target),
		"requested": store.HasRequested(target),
	})
}

func (h *JSONHandler) Follow(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	outcome, err := store.Follow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, map[string]any{"outcome": outcome})
}

func (h *JSONHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := store.Unfollow(r.Context(), mux.Vars(r)["id"]); err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JSONHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if err := store.AcceptFollowRequest(r.Context(), id); err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "state": store.State(id)})
}

func (h *JSONHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if err := store.RejectFollowRequest(r.Context(), id); err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "state": store.State(id)})
}

func (h *JSONHandler) FollowersOf(w http.ResponseWriter, r *http.Request) {
	h.listOf(w, r, h.service.FollowersOf)
}

func (h *JSONHandler) FollowingOf(w http.ResponseWriter, r *http.Request) {
	h.listOf(w, r, h.service.FollowingOf)
}

func (h *JSONHandler) listOf(w http.ResponseWriter, r *http.Request, list func(context.Context, string) ([]*profile.User, error)) {
	userID := mux.Vars(r)["id"]
	if err := h.service.CheckVisible(r.Context(), userID); err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	users, err := list(r.Context(), userID)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, users)
}

func (h *JSONHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := infrastructure.UserIDFromContext(r.Context())
	h.sessions.End(userID)
	w.WriteHeader(http.StatusNoContent)
}

// SetupJSONRoutes registers the social graph routes on an authenticated router.
func SetupJSONRoutes(r *mux.Router, h *JSONHandler) {
	r.HandleFunc("/social", h.GetState).Methods("GET")
	r.HandleFunc("/social/refetch", h.Refetch).Methods("POST")
	r.HandleFunc("/social/following/{id}", h.IsFollowing).Methods("GET")
	r.HandleFunc("/social/following/{id}", h.Follow).Methods("POST")
	r.HandleFunc("/social/following/{id}", h.Unfollow).Methods("DELETE")
	r.HandleFunc("/social/requests/{id}/accept", h.AcceptRequest).Methods("POST")
	r.HandleFunc("/social/requests/{id}/reject", h.RejectRequest).Methods("POST")
	r.HandleFunc("/users/{id}/followers", h.FollowersOf).Methods("GET")
	r.HandleFunc("/users/{id}/following", h.FollowingOf).Methods("GET")
	r.HandleFunc("/session/end", h.EndSession).Methods("POST")
}
