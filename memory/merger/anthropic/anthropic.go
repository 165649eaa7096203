// Package anthropic merges abstract summaries with Claude.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/expmem/memory"
	"github.com/becomeliminal/expmem/memory/merger"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 2048
)

// MessageCreator is the subset of the Messages service the merger calls.
type MessageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Merger asks Claude to fold a new summary into an existing one.
type Merger struct {
	messages  MessageCreator
	model     string
	maxTokens int64
}

var _ memory.Merger = (*Merger)(nil)

// Option configures the merger.
type Option func(*Merger)

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(m *Merger) {
		if model != "" {
			m.model = model
		}
	}
}

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int64) Option {
	return func(m *Merger) {
		if n > 0 {
			m.maxTokens = n
		}
	}
}

// New creates a merger from an API key. Extra request options such as
// option.WithBaseURL go to the client.
func New(apiKey string, opts []Option, clientOpts ...option.RequestOption) *Merger {
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, clientOpts...)
	client := anthropic.NewClient(reqOpts...)
	return NewWithMessages(&client.Messages, opts...)
}

// NewWithMessages creates a merger around an existing messages service.
func NewWithMessages(messages MessageCreator, opts ...Option) *Merger {
	m := &Merger{
		messages:  messages,
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge returns the revised summary text.
func (m *Merger) Merge(ctx context.Context, newText, oldText string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: merger.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(merger.Prompt(newText, oldText))),
		},
		Temperature: anthropic.Float(0),
	}

	resp, err := m.messages.New(ctx, params)
	if err != nil {
		log.WithError(err).Warn("[MERGER] Claude API error")
		return "", fmt.Errorf("claude api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := merger.Clean(text.String())
	if out == "" {
		return "", errors.New("claude returned no text")
	}
	log.Debugf("[MERGER] Claude merged summary: %d chars", len(out))
	return out, nil
}
