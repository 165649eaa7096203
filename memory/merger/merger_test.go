package merger_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/expmem/memory/merger"
)

func TestPrompt_ContainsBothSummaries(t *testing.T) {
	p := merger.Prompt("  new insight \n", "old lesson")
	assert.Contains(t, p, "new insight\n")
	assert.Contains(t, p, "old lesson")
	assert.Less(t, strings.Index(p, "new insight"), strings.Index(p, "old lesson"))
}

func TestLimited(t *testing.T) {
	calls := 0
	base := merger.Func(func(_ context.Context, n, o string) (string, error) {
		calls++
		return n + "+" + o, nil
	})

	out, err := merger.Limited(base, nil).Merge(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a+b", out)

	m := merger.Limited(base, merger.NewLimiter(100))
	out, err = m.Merge(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a+b", out)
	assert.Equal(t, 2, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := merger.Limited(base, merger.NewLimiter(1))
	_, _ = slow.Merge(context.Background(), "x", "y") // drain the burst
	_, err = slow.Merge(ctx, "x", "y")
	assert.Error(t, err)
}

func TestNewLimiter_Disabled(t *testing.T) {
	assert.Nil(t, merger.NewLimiter(0))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "summary", merger.Clean("  summary \n"))
	assert.Equal(t, "line one\nline two", merger.Clean("```text\nline one\nline two\n```"))
	assert.Equal(t, "", merger.Clean(""))
}
