package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wanderinn/roleplay-backend/internal/config"
	"github.com/wanderinn/roleplay-backend/internal/handler"
	"github.com/wanderinn/roleplay-backend/internal/service/ai"
	"github.com/wanderinn/roleplay-backend/internal/service/avatar"
	"github.com/wanderinn/roleplay-backend/internal/service/chat"
	"github.com/wanderinn/roleplay-backend/internal/service/profile"
	"github.com/wanderinn/roleplay-backend/internal/service/turn"
	"github.com/wanderinn/roleplay-backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	log.Logger = logger

	if err := godotenv.Load(); err != nil {
		logger.Warn().Err(err).Msg("no .env file loaded, continuing with system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("failed to open storage")
	}
	defer func() { _ = st.Close() }()

	profileService, err := profile.NewService(st, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load profiles")
	}

	// Chatting stays disabled (503 on the chat routes) until the model
	// credentials are configured; the rest of the app keeps working.
	var backend turn.Backend
	if cfg.AI.Enabled() {
		client, err := ai.NewClient(ctx, cfg.AI, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize AI client, continuing without chat")
		} else {
			backend = client
			logger.Info().Str("model", cfg.AI.Model).Msg("AI client initialized")
		}
	} else {
		logger.Warn().Msg("model credentials not configured, chat disabled")
	}

	chatService, err := chat.NewService(st, profileService, backend, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load chat histories")
	}

	var avatarService *avatar.Service
	if cfg.Avatar.Enabled() {
		avatarService = avatar.NewService(cfg.Avatar, logger)
		logger.Info().Str("model", cfg.Avatar.Model).Msg("avatar generation enabled")
	} else {
		logger.Info().Msg("avatar generation not configured")
	}

	router := handler.NewRouter(logger, profileService, chatService, avatarService)

	startServer(ctx, logger, cfg.Server, router)
}

func startServer(ctx context.Context, logger zerolog.Logger, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", serverCfg.Addr).Msg("roleplay backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
