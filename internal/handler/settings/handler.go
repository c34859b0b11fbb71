package settings

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	settingsmodel "github.com/wanderinn/roleplay-backend/internal/model/settings"
	"github.com/wanderinn/roleplay-backend/internal/service/profile"
	"github.com/wanderinn/roleplay-backend/pkg/utils"
)

// Handler exposes the persisted app settings.
type Handler struct {
	profiles *profile.Service
}

// New creates the settings handler.
func New(profiles *profile.Service) *Handler {
	return &Handler{profiles: profiles}
}

// RegisterRoutes registers the settings routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.handleGet)
	r.Put("/settings", h.handleUpdate)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profiles.Settings())
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload settingsmodel.AppSettings
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.profiles.UpdateSettings(payload))
}
