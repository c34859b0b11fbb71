package bots

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	botmodel "github.com/wanderinn/roleplay-backend/internal/model/bot"
	chatservice "github.com/wanderinn/roleplay-backend/internal/service/chat"
	"github.com/wanderinn/roleplay-backend/internal/service/profile"
	"github.com/wanderinn/roleplay-backend/internal/service/turn"
	"github.com/wanderinn/roleplay-backend/pkg/utils"
)

// Handler exposes the bot roster and per-bot conversations.
type Handler struct {
	profiles *profile.Service
	chats    *chatservice.Service
}

// New creates the bots handler.
func New(profiles *profile.Service, chats *chatservice.Service) *Handler {
	return &Handler{profiles: profiles, chats: chats}
}

// RegisterRoutes registers the roster and conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/bots", h.handleList)
	r.Post("/bots", h.handleSave)
	r.Put("/bots/{botID}", h.handleSave)
	r.Delete("/bots/{botID}", h.handleDelete)
	r.Get("/bots/{botID}/messages", h.handleTranscript)
	r.Delete("/bots/{botID}/messages", h.handleClearHistory)
	r.Patch("/bots/{botID}/messages/{messageID}", h.handleEditMessage)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profiles.ListBots())
}

// handleSave creates or updates a bot. An edited bot changes the system
// instruction, so its chat controller is invalidated.
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload botmodel.Config
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if botID := chi.URLParam(r, "botID"); botID != "" {
		payload.ID = botID
	}

	saved, err := h.profiles.SaveBot(payload)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.chats.Invalidate(saved.ID)
	utils.RespondJSON(w, http.StatusOK, saved)
}

// handleDelete removes a bot and its conversation.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	if err := h.profiles.DeleteBot(botID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.chats.DeleteConversation(botID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	if _, ok := h.profiles.GetBot(botID); !ok {
		utils.RespondError(w, http.StatusNotFound, "bot not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.chats.Transcript(botID))
}

// handleClearHistory deletes the conversation but keeps the bot.
func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	if _, ok := h.profiles.GetBot(botID); !ok {
		utils.RespondError(w, http.StatusNotFound, "bot not found")
		return
	}
	h.chats.DeleteConversation(botID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleEditMessage rewrites one bot reply in place.
func (h *Handler) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	messageID := chi.URLParam(r, "messageID")

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctrl, err := h.chats.Controller(botID)
	if err != nil {
		respondControllerError(w, err)
		return
	}

	if err := ctrl.Edit(messageID, payload.Text); err != nil {
		switch {
		case errors.Is(err, turn.ErrMessageNotFound):
			utils.RespondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, turn.ErrNotBotMessage):
			utils.RespondError(w, http.StatusBadRequest, err.Error())
		default:
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	utils.RespondJSON(w, http.StatusOK, ctrl.Messages())
}

func respondControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatservice.ErrBotNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatservice.ErrPersonaRequired):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatservice.ErrBackendUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
