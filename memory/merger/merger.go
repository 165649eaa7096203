// Package merger holds the prompt shared by the LLM-backed merge oracles and
// small adapters around memory.Merger.
package merger

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/becomeliminal/expmem/memory"
)

// SystemPrompt frames the model as an editor of work summaries.
const SystemPrompt = `You are an experienced work review expert, proficient in summarization, comparison, and iterative writing. By comparing an old summary with a new one you extract effective patterns, preserve the essence, and integrate new insights into a more mature and more instructive version of the work summary.`

const taskTemplate = `You will receive two inputs:

1. Current work summary:
%s

2. Original work summary:
%s

Revise and upgrade the original work summary by integrating the new insights and lessons from the current work summary.
Output rules:
1. Output only the final, revised summary text. No explanations.
2. Preserve the original's core structure, successful conclusions, and its overall tone and style.`

// Prompt renders the user turn for a merge of newText into oldText.
func Prompt(newText, oldText string) string {
	return fmt.Sprintf(taskTemplate, strings.TrimSpace(newText), strings.TrimSpace(oldText))
}

// Func adapts a plain function to memory.Merger.
type Func func(ctx context.Context, newText, oldText string) (string, error)

// Merge calls f.
func (f Func) Merge(ctx context.Context, newText, oldText string) (string, error) {
	return f(ctx, newText, oldText)
}

// Limited waits on limiter before every merge. A nil limiter disables limiting.
func Limited(m memory.Merger, limiter *rate.Limiter) memory.Merger {
	if limiter == nil {
		return m
	}
	return Func(func(ctx context.Context, newText, oldText string) (string, error) {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("merge rate limit: %w", err)
		}
		return m.Merge(ctx, newText, oldText)
	})
}

// NewLimiter allows perSecond merges per second with an equal burst.
// Zero or negative disables limiting.
func NewLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

// Clean trims whitespace and a surrounding code fence some models add.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") && strings.HasSuffix(text, "```") && len(text) >= 6 {
		text = strings.TrimSuffix(text, "```")
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSpace(text)
	}
	return text
}
