package ws

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	chatmodel "github.com/wanderinn/roleplay-backend/internal/model/chat"
	chatservice "github.com/wanderinn/roleplay-backend/internal/service/chat"
	"github.com/wanderinn/roleplay-backend/internal/service/turn"
	"github.com/wanderinn/roleplay-backend/pkg/utils"
)

// Handler runs chat turns over a WebSocket as an alternative to the SSE
// endpoints: commands in, turn events out, on one duplex connection.
type Handler struct {
	chats    *chatservice.Service
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// New creates the WebSocket handler.
func New(chats *chatservice.Service, log zerolog.Logger) *Handler {
	return &Handler{
		chats: chats,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/bots/{botID}/ws", h.handleSocket)
}

// command is an inbound client request.
type command struct {
	Type      string `json:"type"` // send | regenerate | edit
	Text      string `json:"text,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// frame is an outbound event.
type frame struct {
	Event     string             `json:"event"`
	MessageID string             `json:"messageId,omitempty"`
	Content   string             `json:"content,omitempty"`
	Message   *chatmodel.Message `json:"message,omitempty"`
	Finished  bool               `json:"finished,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func (h *Handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	ctrl, err := h.chats.Controller(botID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Str("bot", botID).Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	// gorilla allows a single concurrent writer; the listener and the
	// command loop both write.
	var writeMu sync.Mutex
	write := func(f frame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(f); err != nil {
			h.log.Debug().Str("bot", botID).Err(err).Msg("websocket write failed")
		}
	}

	ctrl.SetListener(func(ev turn.Event) {
		write(eventFrame(ev))
	})
	defer ctrl.SetListener(nil)

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Str("bot", botID).Err(err).Msg("websocket closed")
			}
			return
		}

		var opErr error
		switch cmd.Type {
		case "send":
			opErr = ctrl.Send(r.Context(), cmd.Text)
		case "regenerate":
			opErr = ctrl.Regenerate(r.Context(), cmd.MessageID)
		case "edit":
			opErr = ctrl.Edit(cmd.MessageID, cmd.Text)
		default:
			write(frame{Event: "error", Error: "unknown command type"})
			continue
		}

		if opErr != nil {
			write(frame{Event: "error", Error: opErr.Error()})
			continue
		}
		write(frame{Event: "end", Finished: true})
	}
}

func eventFrame(ev turn.Event) frame {
	switch e := ev.(type) {
	case turn.MessageAppended:
		msg := e.Message
		return frame{Event: "append", Message: &msg}
	case turn.ChunkReceived:
		return frame{Event: "delta", MessageID: e.MessageID, Content: e.Text}
	case turn.MessageFinalized:
		msg := e.Message
		return frame{Event: "message", Message: &msg}
	case turn.MessageEdited:
		return frame{Event: "edit", MessageID: e.MessageID, Content: e.Text}
	}
	return frame{Event: "unknown"}
}
