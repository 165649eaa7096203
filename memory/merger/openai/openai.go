// Package openai merges abstract summaries through any OpenAI-compatible
// chat completions endpoint (OpenAI, DeepSeek, SiliconFlow, Ollama, vLLM).
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/expmem/memory"
	"github.com/becomeliminal/expmem/memory/merger"
)

const DefaultModel = "gpt-4o-mini"

// CompletionCreator is the subset of the chat completions service the merger calls.
type CompletionCreator interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Merger asks a chat model to fold a new summary into an existing one.
type Merger struct {
	completions CompletionCreator
	model       string
}

var _ memory.Merger = (*Merger)(nil)

// New creates a merger. An empty baseURL uses the SDK default.
func New(apiKey, baseURL, model string) *Merger {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return NewWithCompletions(&client.Chat.Completions, model)
}

// NewWithCompletions creates a merger around an existing completions service.
func NewWithCompletions(completions CompletionCreator, model string) *Merger {
	if model == "" {
		model = DefaultModel
	}
	return &Merger{completions: completions, model: model}
}

// Merge returns the revised summary text.
func (m *Merger) Merge(ctx context.Context, newText, oldText string) (string, error) {
	resp, err := m.completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(merger.SystemPrompt),
			openai.UserMessage(merger.Prompt(newText, oldText)),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		log.WithError(err).WithField("model", m.model).Warn("[MERGER] chat completion error")
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	out := merger.Clean(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("chat completion returned no text")
	}
	return out, nil
}
