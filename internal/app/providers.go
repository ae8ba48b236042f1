package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/avatarchat/internal/config"
	"github.com/ent0n29/avatarchat/internal/llm"
	"github.com/ent0n29/avatarchat/internal/tts"
)

type voiceSetup struct {
	backend tts.Backend
	lister  *tts.ElevenLabsHTTP
	detail  string
}

func resolveVoiceProvider(cfg config.Config) (voiceSetup, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.VoiceProvider)) {
	case "mock":
		return voiceSetup{backend: tts.NewMock(), detail: "mock (silent audio)"}, nil
	case "elevenlabs", "":
		elCfg := tts.ElevenLabsConfig{
			APIKey:       cfg.ElevenLabsAPIKey,
			BaseURL:      cfg.ElevenLabsBaseURL,
			WSBaseURL:    cfg.ElevenLabsWSBaseURL,
			ModelID:      cfg.ElevenLabsModelID,
			OutputFormat: cfg.ElevenLabsOutputFormat,
		}
		httpBackend := tts.NewElevenLabsHTTP(elCfg)
		if cfg.ElevenLabsTransport == "websocket" {
			return voiceSetup{
				backend: tts.NewElevenLabsWS(elCfg),
				lister:  httpBackend,
				detail:  "elevenlabs websocket",
			}, nil
		}
		return voiceSetup{backend: httpBackend, lister: httpBackend, detail: "elevenlabs http"}, nil
	default:
		return voiceSetup{}, fmt.Errorf("unsupported voice provider %q", cfg.VoiceProvider)
	}
}

func resolveModel(ctx context.Context, cfg config.Config) (llm.Model, error) {
	switch cfg.ModelProvider {
	case "mock":
		return llm.NewMock(), nil
	case "gemini":
		if !cfg.ModelConfigured() {
			// Requests short-circuit before the model is called.
			return llm.NewMock(), nil
		}
		m, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			MaxTokens:   cfg.ModelMaxTokens,
			Temperature: &cfg.ModelTemperature,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini init failed: %w", err)
		}
		return m, nil
	case "openai", "":
		return llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			MaxTokens:   cfg.ModelMaxTokens,
			Temperature: &cfg.ModelTemperature,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.ModelProvider)
	}
}
