package persona

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	personamodel "github.com/wanderinn/roleplay-backend/internal/model/persona"
	chatservice "github.com/wanderinn/roleplay-backend/internal/service/chat"
	"github.com/wanderinn/roleplay-backend/internal/service/profile"
	"github.com/wanderinn/roleplay-backend/pkg/utils"
)

// Handler exposes the user persona.
type Handler struct {
	profiles *profile.Service
	chats    *chatservice.Service
}

// New creates the persona handler.
func New(profiles *profile.Service, chats *chatservice.Service) *Handler {
	return &Handler{profiles: profiles, chats: chats}
}

// RegisterRoutes registers the persona routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/persona", h.handleGet)
	r.Put("/persona", h.handleSave)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profiles.UserPersona()
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not set up")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

// handleSave replaces the user persona. Edited persona text changes what
// every backend session sees, so all chat controllers are invalidated.
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload personamodel.Persona
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.profiles.SaveUserPersona(payload)
	if err != nil {
		if errors.Is(err, profile.ErrPersonaInvalid) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.chats.InvalidateAll()
	utils.RespondJSON(w, http.StatusOK, saved)
}
