package feed

import (
	"net/http"
	"strconv"

	"github.com/google/wire"
	"github.com/gorilla/mux"

	"looped/infrastructure"
	"looped/internal/social"
)

type JSONHandler struct {
	service  *Service
	sessions social.Sessions
}

func NewJSONHandler(service *Service, sessions social.Sessions) *JSONHandler {
	return &JSONHandler{service: service, sessions: sessions}
}

func (h *JSONHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, _ := infrastructure.UserIDFromContext(r.Context())
	store, err := h.sessions.Acquire(r.Context(), userID)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	posts, err := h.service.Feed(r.Context(), userID, store.Following(), limit)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, posts)
}

func (h *JSONHandler) Publish(w http.ResponseWriter, r *http.Request) {
	userID, _ := infrastructure.UserIDFromContext(r.Context())

	var req PublishInput
	if err := infrastructure.DecodeJSON(w, r, &req); err != nil {
		infrastructure.WriteError(w, err)
		return
	}

	post, err := h.service.Publish(r.Context(), userID, req)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusCreated, post)
}

func SetupJSONRoutes(r *mux.Router, h *JSONHandler) {
	r.HandleFunc("/feed", h.Feed).Methods("GET")
	r.HandleFunc("/posts", h.Publish).Methods("POST")
}

var Set = wire.NewSet(
	NewRepository,
	NewService,
	NewJSONHandler,
)
