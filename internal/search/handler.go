package search

import (
	"net/http"
	"strconv"

	"github.com/google/wire"
	"github.com/gorilla/mux"

	"looped/infrastructure"
	"looped/internal/profile"
)

type JSONHandler struct {
	service *Service
}

func NewJSONHandler(service *Service) *JSONHandler {
	return &JSONHandler{service: service}
}

func (h *JSONHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, _ := infrastructure.UserIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, err := h.service.Search(r.Context(), userID, r.URL.Query().Get("q"), limit)
	if err != nil {
		infrastructure.WriteError(w, err)
		return
	}
	infrastructure.WriteJSON(w, http.StatusOK, users)
}

func SetupJSONRoutes(r *mux.Router, h *JSONHandler) {
	r.HandleFunc("/search", h.Search).Methods("GET")
}

var Set = wire.NewSet(
	NewService,
	NewJSONHandler,
	wire.Bind(new(ProfileLister), new(*profile.Service)),
)
