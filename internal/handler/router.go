package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	avatarHandler "github.com/wanderinn/roleplay-backend/internal/handler/avatar"
	botsHandler "github.com/wanderinn/roleplay-backend/internal/handler/bots"
	personaHandler "github.com/wanderinn/roleplay-backend/internal/handler/persona"
	settingsHandler "github.com/wanderinn/roleplay-backend/internal/handler/settings"
	streamHandler "github.com/wanderinn/roleplay-backend/internal/handler/stream"
	wsHandler "github.com/wanderinn/roleplay-backend/internal/handler/ws"
	middlewarePkg "github.com/wanderinn/roleplay-backend/internal/middleware"
	avatarService "github.com/wanderinn/roleplay-backend/internal/service/avatar"
	chatService "github.com/wanderinn/roleplay-backend/internal/service/chat"
	"github.com/wanderinn/roleplay-backend/internal/service/profile"
)

// NewRouter wires HTTP routes to core services. The avatar service may be
// nil when image generation is not configured; its route is then absent.
func NewRouter(log zerolog.Logger, profiles *profile.Service, chats *chatService.Service, avatars *avatarService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		personaHandler.New(profiles, chats).RegisterRoutes(api)
		botsHandler.New(profiles, chats).RegisterRoutes(api)
		settingsHandler.New(profiles).RegisterRoutes(api)
		streamHandler.New(chats, log).RegisterRoutes(api)
		wsHandler.New(chats, log).RegisterRoutes(api)

		if avatars != nil {
			avatarHandler.New(avatars).RegisterRoutes(api)
		}
	})

	return r
}
