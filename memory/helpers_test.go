package memory_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/expmem/category"
	"github.com/becomeliminal/expmem/memory"
	"github.com/becomeliminal/expmem/memory/docstore/filesystem"
	"github.com/becomeliminal/expmem/memory/retriever/mock"
)

var (
	// Distances from tagA: tagB 1 (task), tagC 1 (robot), tagD 3 (time), tagE 5.
	tagA = category.New(category.SingleTask, category.SingleRobot, category.TimeAgnostic)
	tagB = category.New(category.MultiTask, category.SingleRobot, category.TimeAgnostic)
	tagC = category.New(category.SingleTask, category.MultiRobot, category.TimeAgnostic)
	tagD = category.New(category.SingleTask, category.SingleRobot, category.TimeAware)
	tagE = category.New(category.MultiTask, category.MultiRobot, category.TimeAware)
)

type harness struct {
	store     *memory.Store
	docs      *filesystem.DirStore
	retriever *mock.Retriever
	hook      *logtest.Hook
}

// stepClock returns strictly increasing timestamps.
func stepClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func openStore(t *testing.T, docs *filesystem.DirStore, opts ...memory.Option) *harness {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	r := mock.New()
	base := []memory.Option{
		memory.WithLogger(logger),
		memory.WithClock(stepClock()),
		memory.WithRand(rand.New(rand.NewSource(1))),
	}
	s, err := memory.Open(context.Background(), docs, r, append(base, opts...)...)
	require.NoError(t, err)
	return &harness{store: s, docs: docs, retriever: r, hook: hook}
}

func newHarness(t *testing.T, opts ...memory.Option) *harness {
	t.Helper()
	docs, err := filesystem.New(t.TempDir())
	require.NoError(t, err)
	return openStore(t, docs, opts...)
}

func (h *harness) warnings() int {
	n := 0
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			n++
		}
	}
	return n
}

func ids(notes []*memory.SpecificNote) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID()
	}
	return out
}

func abstractIDs(notes []*memory.AbstractNote) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID()
	}
	return out
}

// putSpecific writes a specific note document directly to the medium.
func putSpecific(t *testing.T, docs memory.DocumentStore, id, tag string, created time.Time, score float64, description string) {
	t.Helper()
	n := memory.NewSpecificNoteFromStorage(id, tag, created, score, description, "analysis "+id, "code "+id)
	data, err := memory.EncodeDocument(n)
	require.NoError(t, err)
	require.NoError(t, docs.Put(context.Background(), id, data))
}

func memoryCall(tag string, k int) mock.Call {
	return mock.Call{Text: "robots", Category: tag, K: k}
}
