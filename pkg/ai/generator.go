package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (Gemini, Ollama, OpenAI-compatible) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ProviderConfig selects and configures a TextGenerator.
type ProviderConfig struct {
	// Provider is one of gemini, genai, ollama, openai-compat. Empty disables insight.
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewGenerator builds the configured provider. It returns nil, nil when no
// provider is configured.
func NewGenerator(ctx context.Context, cfg ProviderConfig) (TextGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil
	case "gemini":
		gen, err := NewGeminiGenerator(cfg.APIKey, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		return gen, nil
	case "genai":
		gen, err := NewGenAIGenerator(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return gen, nil
	case "ollama":
		return NewOllamaGenerator(cfg.BaseURL, cfg.Model), nil
	case "openai-compat":
		gen, err := NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
