package mock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/expmem/memory/retriever/mock"
)

func TestRetriever_RanksByOverlap(t *testing.T) {
	ctx := context.Background()
	r := mock.New()

	require.NoError(t, r.Register(ctx, "a", "robots visit waypoints", "c1"))
	require.NoError(t, r.Register(ctx, "b", "assign robots to tasks", "c1"))
	require.NoError(t, r.Register(ctx, "c", "assign robots to tasks", "c2"))

	ids, err := r.Search(ctx, "assign tasks to robots", "c1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)

	ids, err = r.Search(ctx, "assign tasks", "c1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	assert.Len(t, r.Calls(), 2)
	assert.Equal(t, mock.Call{Text: "assign tasks", Category: "c1", K: 1}, r.Calls()[1])
}

func TestRetriever_DeregisterAndErrors(t *testing.T) {
	ctx := context.Background()
	r := mock.New()

	require.NoError(t, r.Register(ctx, "a", "x", "c1"))
	cat, ok := r.Registered("a")
	assert.True(t, ok)
	assert.Equal(t, "c1", cat)

	require.NoError(t, r.Deregister(ctx, "a"))
	assert.Equal(t, 0, r.Len())

	r.Err = errors.New("down")
	_, err := r.Search(ctx, "x", "c1", 1)
	assert.Error(t, err)
}
