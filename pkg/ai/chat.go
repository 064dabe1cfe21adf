package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaBaseURL = "http://127.0.0.1:11434"
	defaultOllamaModel   = "llama3.2"
	chatTimeout          = 60 * time.Second
)

// chatMessage is the role/content pair shared by Ollama and OpenAI-style
// chat APIs.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func chatMessages(systemPrompt, userPrompt string) []chatMessage {
	msgs := make([]chatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	return append(msgs, chatMessage{Role: "user", Content: userPrompt})
}

// OllamaGenerator answers through a local Ollama /api/chat endpoint.
type OllamaGenerator struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOllamaGenerator(baseURL, model string) *OllamaGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaGenerator{baseURL: baseURL, model: model, httpClient: &http.Client{Timeout: chatTimeout}}
}

func (g *OllamaGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
		Stream   bool          `json:"stream"`
	}{Model: g.model, Messages: chatMessages(systemPrompt, userPrompt)}

	var resp struct {
		Message chatMessage `json:"message"`
	}
	if err := postJSON(ctx, g.httpClient, "ollama", g.baseURL+"/api/chat", nil, req, &resp, flatMessage); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", fmt.Errorf("ollama: %w", ErrEmptyResponse)
	}
	return resp.Message.Content, nil
}

// OpenAICompatGenerator calls an OpenAI-compatible /chat/completions
// endpoint. baseURL includes the version prefix, e.g. http://localhost:8000/v1.
type OpenAICompatGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatGenerator accepts an empty apiKey for local servers.
func NewOpenAICompatGenerator(baseURL, apiKey, model string) (*OpenAICompatGenerator, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("openai-compat base url required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("openai-compat model required")
	}
	return &OpenAICompatGenerator{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: &http.Client{Timeout: chatTimeout},
	}, nil
}

func (g *OpenAICompatGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}{Model: g.model, Messages: chatMessages(systemPrompt, userPrompt)}

	header := http.Header{}
	if g.apiKey != "" {
		header.Set("Authorization", "Bearer "+g.apiKey)
	}
	var resp struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, g.httpClient, "openai-compat", g.baseURL+"/chat/completions", header, req, &resp, nestedMessage); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("openai-compat: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
