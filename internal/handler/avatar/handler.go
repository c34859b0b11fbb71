package avatar

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	avatarservice "github.com/wanderinn/roleplay-backend/internal/service/avatar"
	"github.com/wanderinn/roleplay-backend/pkg/utils"
)

// Handler exposes bot avatar generation.
type Handler struct {
	avatars *avatarservice.Service
}

// New creates the avatar handler.
func New(avatars *avatarservice.Service) *Handler {
	return &Handler{avatars: avatars}
}

// RegisterRoutes registers the avatar route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/avatar", h.handleGenerate)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Prompt) == "" {
		utils.RespondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	image, err := h.avatars.Generate(r.Context(), payload.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, avatarservice.ErrSafetyFiltered):
			utils.RespondError(w, http.StatusUnprocessableEntity, "Avatar generation failed due to safety filters. Please try a different prompt.")
		case errors.Is(err, avatarservice.ErrInvalidCredentials):
			utils.RespondError(w, http.StatusUnauthorized, "Invalid API Key. Please check your configuration.")
		default:
			utils.RespondError(w, http.StatusBadGateway, "Failed to generate avatar. The AI service might be unavailable or the prompt could be problematic.")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"image": image})
}
