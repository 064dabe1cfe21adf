package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuin/goldmark"
)

const (
	DefaultInsightQuery = "Provide a brief summary and 3 key study points."
	NoInsightMessage    = "No insight available at this time."
	FallbackMessage     = "Sorry, I couldn't retrieve the AI insight right now. Please check your API key."

	insightSystemPrompt = "You are an expert educational assistant."
	defaultInsightTTL   = 30 * time.Second
)

// Insight produces short study notes about a book. It never fails: upstream
// errors collapse into FallbackMessage.
type Insight struct {
	gen     TextGenerator
	timeout time.Duration
	logger  *slog.Logger
	md      goldmark.Markdown
}

// NewInsight wraps gen. A nil gen makes every call return FallbackMessage.
func NewInsight(gen TextGenerator, timeout time.Duration, logger *slog.Logger) *Insight {
	if timeout <= 0 {
		timeout = defaultInsightTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Insight{gen: gen, timeout: timeout, logger: logger, md: goldmark.New()}
}

// BookInsight asks the model about a book. An empty query uses
// DefaultInsightQuery.
func (in *Insight) BookInsight(ctx context.Context, title, author, query string) string {
	if strings.TrimSpace(query) == "" {
		query = DefaultInsightQuery
	}
	if in.gen == nil {
		in.logger.Warn("insight requested without a configured provider")
		return FallbackMessage
	}
	ctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	text, err := in.gen.GenerateText(ctx, insightSystemPrompt, insightPrompt(title, author, query))
	switch {
	case errors.Is(err, ErrEmptyResponse):
		return NoInsightMessage
	case err != nil:
		in.logger.Error("insight generation failed", "title", title, "err", err)
		return FallbackMessage
	case strings.TrimSpace(text) == "":
		return NoInsightMessage
	}
	return text
}

// RenderHTML converts the markdown answer to HTML. Raw HTML in the input is
// not passed through.
func (in *Insight) RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := in.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render insight: %w", err)
	}
	return buf.String(), nil
}

func insightPrompt(title, author, query string) string {
	return fmt.Sprintf(`Book: %q by %s.

User Question: %s

Please provide a concise, helpful response formatted in simple Markdown.
If asking for a summary, keep it under 150 words.
Focus on academic value.`, title, author, query)
}
