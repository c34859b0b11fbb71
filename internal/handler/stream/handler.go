package stream

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	chatmodel "github.com/wanderinn/roleplay-backend/internal/model/chat"
	chatservice "github.com/wanderinn/roleplay-backend/internal/service/chat"
	"github.com/wanderinn/roleplay-backend/internal/service/turn"
	"github.com/wanderinn/roleplay-backend/pkg/utils"
)

// Handler streams chat turns to the browser via Server-Sent Events. Send
// and regenerate share the same event protocol: append/delta/message frames
// while the turn runs, then a terminal end or error frame.
type Handler struct {
	chats *chatservice.Service
	log   zerolog.Logger
}

// New creates the stream handler.
func New(chats *chatservice.Service, log zerolog.Logger) *Handler {
	return &Handler{
		chats: chats,
		log:   log.With().Str("component", "stream").Logger(),
	}
}

// RegisterRoutes registers the streaming chat routes. GET keeps the
// endpoints usable from EventSource.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/bots/{botID}/chat", h.handleSend)
	r.Get("/bots/{botID}/regenerate/{messageID}", h.handleRegenerate)
}

// StreamResponse is one SSE frame.
type StreamResponse struct {
	Event     string             `json:"event"`
	BotID     string             `json:"botId,omitempty"`
	MessageID string             `json:"messageId,omitempty"`
	Content   string             `json:"content,omitempty"`
	Message   *chatmodel.Message `json:"message,omitempty"`
	Finished  bool               `json:"finished,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	message := r.URL.Query().Get("message")
	if strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	h.run(w, r, botID, func(ctrl *turn.Controller) error {
		return ctrl.Send(r.Context(), message)
	})
}

func (h *Handler) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	messageID := chi.URLParam(r, "messageID")

	h.run(w, r, botID, func(ctrl *turn.Controller) error {
		return ctrl.Regenerate(r.Context(), messageID)
	})
}

// run resolves the controller, forwards its events as SSE frames and drives
// one turn. Validation failures happen before any frame is written, so they
// still get a proper HTTP status; failures mid-stream become error frames.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, botID string, op func(*turn.Controller) error) {
	ctrl, err := h.chats.Controller(botID)
	if err != nil {
		respondControllerError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	ctrl.SetListener(func(ev turn.Event) {
		h.forward(w, flusher, botID, ev)
	})
	defer ctrl.SetListener(nil)

	if err := op(ctrl); err != nil {
		if status, ok := validationStatus(err); ok {
			utils.RespondError(w, status, err.Error())
			return
		}
		h.log.Error().Str("bot", botID).Err(err).Msg("turn failed")
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event: "error",
			BotID: botID,
			Error: err.Error(),
		})
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:    "end",
		BotID:    botID,
		Finished: true,
	})
}

// forward translates a turn event into its SSE frame.
func (h *Handler) forward(w http.ResponseWriter, flusher http.Flusher, botID string, ev turn.Event) {
	switch e := ev.(type) {
	case turn.MessageAppended:
		msg := e.Message
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:   "append",
			BotID:   botID,
			Message: &msg,
		})
	case turn.ChunkReceived:
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "delta",
			BotID:     botID,
			MessageID: e.MessageID,
			Content:   e.Text,
		})
	case turn.MessageFinalized:
		msg := e.Message
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:   "message",
			BotID:   botID,
			Message: &msg,
		})
	case turn.MessageEdited:
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "edit",
			BotID:     botID,
			MessageID: e.MessageID,
			Content:   e.Text,
		})
	}
}

// validationStatus maps errors the controller raises before touching the
// conversation; no SSE frame has been written when these occur.
func validationStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, turn.ErrEmptyPrompt):
		return http.StatusBadRequest, true
	case errors.Is(err, turn.ErrBusy):
		return http.StatusConflict, true
	case errors.Is(err, turn.ErrMessageNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, turn.ErrNotBotMessage), errors.Is(err, turn.ErrNoPrompt):
		return http.StatusBadRequest, true
	}
	return 0, false
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
