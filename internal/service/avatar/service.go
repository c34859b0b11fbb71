package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wanderinn/roleplay-backend/internal/config"
)

var (
	// ErrSafetyFiltered means the prompt was rejected by the provider's
	// safety policy; the user should try a different prompt.
	ErrSafetyFiltered = errors.New("avatar generation failed due to safety filters")
	// ErrInvalidCredentials means the API key was rejected.
	ErrInvalidCredentials = errors.New("invalid API key for avatar generation")
	// ErrGeneration is the generic failure; never retried automatically.
	ErrGeneration = errors.New("failed to generate avatar")
)

// Service generates bot avatars through the provider's image-generation
// HTTP endpoint.
type Service struct {
	cfg    config.AvatarConfig
	client *http.Client
	log    zerolog.Logger
}

// NewService builds the avatar generator.
func NewService(cfg config.AvatarConfig, log zerolog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		log:    log.With().Str("component", "avatar").Logger(),
	}
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type generateResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate returns one avatar image as base64-encoded PNG bytes.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:          s.cfg.Model,
		Prompt:         prompt,
		Size:           "512x512",
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrGeneration, err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("%w: decode response: %v", ErrGeneration, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", s.classify(resp.StatusCode, decoded)
	}
	if len(decoded.Data) == 0 || decoded.Data[0].B64JSON == "" {
		s.log.Warn().Msg("image response contained no image bytes")
		return "", ErrGeneration
	}
	return decoded.Data[0].B64JSON, nil
}

// classify maps a provider failure onto the error taxonomy so each case can
// carry a distinct user-facing message.
func (s *Service) classify(status int, decoded generateResponse) error {
	message := ""
	if decoded.Error != nil {
		message = strings.ToLower(decoded.Error.Message)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrInvalidCredentials
	case strings.Contains(message, "filtered") || strings.Contains(message, "safety") || strings.Contains(message, "sensitive"):
		return ErrSafetyFiltered
	case strings.Contains(message, "api key"):
		return ErrInvalidCredentials
	default:
		s.log.Error().Int("status", status).Str("message", message).Msg("image generation failed")
		return ErrGeneration
	}
}
