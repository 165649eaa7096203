package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/expmem/memory"
	"github.com/becomeliminal/expmem/memory/merger"
)

func concatMerger(calls *int) memory.Merger {
	return merger.Func(func(_ context.Context, newText, oldText string) (string, error) {
		*calls++
		return oldText + " + " + newText, nil
	})
}

func TestSelectAbstractByDistance_AccumulatesLevels(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	a := h.store.AddAbstract(ctx, "a", tagA)
	b := h.store.AddAbstract(ctx, "b", tagB)
	c := h.store.AddAbstract(ctx, "c", tagC)
	d := h.store.AddAbstract(ctx, "d", tagD)
	h.store.AddAbstract(ctx, "e", tagE)

	assert.Equal(t, []string{a}, abstractIDs(h.store.SelectAbstractByDistance(tagA, 1, 5, false)))
	// Level 1 is taken whole, overshooting the target.
	assert.ElementsMatch(t, []string{a, b, c}, abstractIDs(h.store.SelectAbstractByDistance(tagA, 2, 5, false)))
	assert.ElementsMatch(t, []string{b, c}, abstractIDs(h.store.SelectAbstractByDistance(tagA, 2, 2, true)))
	// Levels 1 and 3 accumulate; nothing sits at level 2.
	assert.ElementsMatch(t, []string{b, c, d}, abstractIDs(h.store.SelectAbstractByDistance(tagA, 3, 3, true)))
	// Tolerance caps the walk even when the target is not met.
	assert.ElementsMatch(t, []string{a, b, c}, abstractIDs(h.store.SelectAbstractByDistance(tagA, 10, 2, false)))
	assert.Empty(t, h.store.SelectAbstractByDistance(tagA, 1, 0, true))
}

func TestSelectAbstractByCategory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a1 := h.store.AddAbstract(ctx, "a1", tagA)
	h.store.AddAbstract(ctx, "b", tagB)
	a2 := h.store.AddAbstract(ctx, "a2", tagA)

	assert.Equal(t, []string{a1, a2}, abstractIDs(h.store.SelectAbstractByCategory(tagA)))
	assert.Empty(t, h.store.SelectAbstractByCategory(tagE))
}

func TestEvolve_MergesEveryNoteInCategory(t *testing.T) {
	ctx := context.Background()
	calls := 0
	h := newHarness(t, memory.WithMerger(concatMerger(&calls)))

	first := h.store.AddAbstract(ctx, "old one", tagA)
	second := h.store.AddAbstract(ctx, "old two", tagA)
	other := h.store.AddAbstract(ctx, "neighbor", tagB)

	text, ok := h.store.Evolve(ctx, "problem", "new", tagA)
	require.True(t, ok)
	assert.Equal(t, "old two + new", text, "last merged note wins")
	assert.Equal(t, 2, calls)

	n, _ := h.store.Abstract(first)
	assert.Equal(t, "old one + new", n.Summary)
	n, _ = h.store.Abstract(other)
	assert.Equal(t, "neighbor", n.Summary, "neighbor categories are not evolved")

	// Persisted.
	reopened := openStore(t, h.docs)
	n, ok = reopened.store.Abstract(second)
	require.True(t, ok)
	assert.Equal(t, "old two + new", n.Summary)
}

func TestEvolveAll(t *testing.T) {
	ctx := context.Background()
	calls := 0
	h := newHarness(t, memory.WithMerger(concatMerger(&calls)))
	first := h.store.AddAbstract(ctx, "1", tagA)
	second := h.store.AddAbstract(ctx, "2", tagA)

	got := h.store.EvolveAll(ctx, "p", "n", tagA)
	assert.Equal(t, map[string]string{first: "1 + n", second: "2 + n"}, got)
}

func TestEvolve_NothingToMerge(t *testing.T) {
	ctx := context.Background()
	calls := 0
	h := newHarness(t, memory.WithMerger(concatMerger(&calls)))
	h.store.AddAbstract(ctx, "b", tagB)

	_, ok := h.store.Evolve(ctx, "p", "n", tagA)
	assert.False(t, ok)
	assert.Zero(t, calls)
}

func TestEvolve_NoMerger(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.store.AddAbstract(ctx, "keep", tagA)

	_, ok := h.store.Evolve(ctx, "p", "n", tagA)
	assert.False(t, ok)
	n, _ := h.store.Abstract(id)
	assert.Equal(t, "keep", n.Summary)
}

func TestEvolve_MergeFailureKeepsSummary(t *testing.T) {
	ctx := context.Background()
	failing := merger.Func(func(context.Context, string, string) (string, error) {
		return "", errors.New("rate limited")
	})
	h := newHarness(t, memory.WithMerger(failing))
	id := h.store.AddAbstract(ctx, "keep", tagA)

	_, ok := h.store.Evolve(ctx, "p", "n", tagA)
	assert.False(t, ok)
	n, _ := h.store.Abstract(id)
	assert.Equal(t, "keep", n.Summary)
}
