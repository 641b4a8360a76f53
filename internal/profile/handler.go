package profile

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"looped/infrastructure"
)

type JSONHandler struct {
	service *Service
}

func NewJSONHandler(service *Service) *JSONHandler {
	return &JSONHandler{service: service}
}

func (h *JSONHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := infrastructure.UserIDFromContext(r.Context())

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}

	// A missing profile is the state right after sign-up, not an error.
	infrastructure.WriteJSON(w, http.StatusOK, struct {
		Profile *User `json:"profile"`
	}{Profile: user})
}

func (h *JSONHandler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetProfile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	if user == nil {
		infrastructure.WriteError(w, infrastructure.ErrUserNotFound)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, user)
}

func (h *JSONHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := infrastructure.UserIDFromContext(r.Context())

	var req CreateInput
	if err := infrastructure.DecodeJSON(w, r, &req); err != nil {
		infrastructure.WriteError(w, err)
		return
	}

	user, err := h.service.CreateProfile(r.Context(), userID, req)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusCreated, user)
}

func (h *JSONHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := infrastructure.UserIDFromContext(r.Context())

	var patch Patch
	if err := infrastructure.DecodeJSON(w, r, &patch); err != nil {
		infrastructure.WriteError(w, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, patch)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, user)
}

func (h *JSONHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := infrastructure.UserIDFromContext(r.Context())

	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JSONHandler) UsernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	available, err := h.service.UsernameAvailable(r.Context(), username)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, map[string]any{
		"username":  username,
		"available": available,
	})
}

func (h *JSONHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, err := h.service.ListProfiles(r.Context(), limit)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, users)
}

// SetupJSONRoutes registers the profile routes on an authenticated router.
func SetupJSONRoutes(r *mux.Router, h *JSONHandler) {
	r.HandleFunc("/profile", h.GetProfile).Methods("GET")
	r.HandleFunc("/profile", h.CreateProfile).Methods("POST")
	r.HandleFunc("/profile", h.UpdateProfile).Methods("PATCH")
	r.HandleFunc("/profile", h.DeleteAccount).Methods("DELETE")
	r.HandleFunc("/profiles", h.ListProfiles).Methods("GET")
	r.HandleFunc("/profiles/{id}", h.GetUserProfile).Methods("GET")
	r.HandleFunc("/usernames/{username}/available", h.UsernameAvailable).Methods("GET")
}
