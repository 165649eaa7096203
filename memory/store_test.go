package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/expmem/memory"
	"github.com/becomeliminal/expmem/memory/docstore/filesystem"
	"github.com/becomeliminal/expmem/memory/retriever/mock"
)

func TestOpen_RequiresCollaborators(t *testing.T) {
	docs, err := filesystem.New(t.TempDir())
	require.NoError(t, err)

	_, err = memory.Open(context.Background(), nil, mock.New())
	assert.Error(t, err)
	_, err = memory.Open(context.Background(), docs, nil)
	assert.Error(t, err)
}

func TestStore_AddSpecific(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id := h.store.AddSpecific(ctx, "assign robots", "greedy matching", "def solve(): pass", tagA)
	require.NotEmpty(t, id)

	n, ok := h.store.Specific(id)
	require.True(t, ok)
	assert.Equal(t, tagA, n.Category())
	assert.Equal(t, memory.KindSpecific, n.Kind())
	assert.Zero(t, n.Score())
	assert.Equal(t, "assign robots", n.Description)

	_, err := os.Stat(h.docs.Path(id))
	assert.NoError(t, err, "document written")

	cat, ok := h.retriever.Registered(id)
	assert.True(t, ok, "registered with retriever")
	assert.Equal(t, tagA, cat)

	specific, abstract := h.store.Len()
	assert.Equal(t, 1, specific)
	assert.Equal(t, 0, abstract)
}

func TestStore_AddAbstractIsNotIndexed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id := h.store.AddAbstract(ctx, "always check time windows", tagA)
	n, ok := h.store.Abstract(id)
	require.True(t, ok)
	assert.Equal(t, "always check time windows", n.Summary)
	assert.Equal(t, memory.KindAbstract, n.Kind())

	_, registered := h.retriever.Registered(id)
	assert.False(t, registered)
	_, err := os.Stat(h.docs.Path(id))
	assert.NoError(t, err)
}

func TestStore_NonstandardCategoryWarns(t *testing.T) {
	h := newHarness(t)
	h.store.AddSpecific(context.Background(), "d", "a", "c", "single-task_single-robot")
	assert.Equal(t, 1, h.warnings())
}

func TestStore_DeleteSpecificTearsDown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id := h.store.AddSpecific(ctx, "d", "a", "c", tagA)
	assert.True(t, h.store.DeleteSpecific(ctx, id))

	_, ok := h.store.Specific(id)
	assert.False(t, ok)
	_, err := os.Stat(h.docs.Path(id))
	assert.True(t, os.IsNotExist(err))
	_, registered := h.retriever.Registered(id)
	assert.False(t, registered)

	assert.False(t, h.store.DeleteSpecific(ctx, id), "second delete")
	assert.False(t, h.store.DeleteSpecific(ctx, "missing"))
}

func TestStore_DeleteAbstract(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id := h.store.AddAbstract(ctx, "s", tagA)
	specificID := h.store.AddSpecific(ctx, "d", "a", "c", tagA)

	assert.False(t, h.store.DeleteAbstract(ctx, specificID), "kind mismatch")
	assert.True(t, h.store.DeleteAbstract(ctx, id))
	assert.False(t, h.store.DeleteAbstract(ctx, id))
	_, err := os.Stat(h.docs.Path(id))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_PersistUnknown(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.store.Persist(context.Background(), "missing"))
}

func TestStore_RecoverRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first := h.store.AddSpecific(ctx, "robots and tasks", "analysis one", "code one", tagA)
	second := h.store.AddSpecific(ctx, "robots and tasks again", "analysis two", "code two", tagA)
	abstractID := h.store.AddAbstract(ctx, "lessons", tagB)

	// second is the only neighbor of first.
	require.Equal(t, 1, h.store.Reinforce(ctx, first, 2))

	reopened := openStore(t, h.docs)
	specific, abstract := reopened.store.Len()
	assert.Equal(t, 2, specific)
	assert.Equal(t, 1, abstract)

	for _, id := range []string{first, second} {
		want, _ := h.store.Specific(id)
		got, ok := reopened.store.Specific(id)
		require.True(t, ok)
		assert.Equal(t, want.Category(), got.Category())
		assert.Equal(t, want.Score(), got.Score())
		assert.True(t, want.CreatedAt().Equal(got.CreatedAt()))
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, want.Analysis, got.Analysis)
		assert.Equal(t, want.Artifact, got.Artifact)

		_, registered := reopened.retriever.Registered(id)
		assert.True(t, registered, "re-registered on recovery")
	}

	got, ok := reopened.store.Specific(second)
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Score())

	a, ok := reopened.store.Abstract(abstractID)
	require.True(t, ok)
	assert.Equal(t, "lessons", a.Summary)
	assert.Equal(t, tagB, a.Category())

	assert.Equal(t, []string{first, second}, ids(reopened.store.SpecificNotes()), "creation order restored")
}

func TestStore_RecoverWithoutReindex(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.store.AddSpecific(ctx, "d", "a", "c", tagA)

	reopened := openStore(t, h.docs, memory.WithConfig(&memory.Config{ReindexOnRecover: false}))
	_, ok := reopened.store.Specific(id)
	assert.True(t, ok)
	assert.Equal(t, 0, reopened.retriever.Len())
}

func TestStore_RecoverSkipsUnknownAndGarbage(t *testing.T) {
	docs, err := filesystem.New(t.TempDir())
	require.NoError(t, err)

	putSpecific(t, docs, "good", tagA, time.Now(), 0, "fine")
	require.NoError(t, docs.Put(context.Background(), "episodic", []byte(`{"id":"episodic","kind":"episodic"}`)))
	require.NoError(t, docs.Put(context.Background(), "nokind", []byte(`{"id":"nokind"}`)))
	require.NoError(t, os.WriteFile(filepath.Join(docs.Dir(), "notes.txt"), []byte("not json"), 0o644))
	writeDocument(t, filepath.Join(docs.Dir(), "old", "nested.json"),
		memory.NewSpecificNoteFromStorage("nested", tagB, time.Now(), 0, "nested", "", ""))

	h := openStore(t, docs)

	report, err := h.store.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Specific)
	assert.Equal(t, 0, report.Abstract)
	assert.Equal(t, 3, report.Skipped)

	_, ok := h.store.Specific("good")
	assert.True(t, ok)
	_, ok = h.store.Specific("nested")
	assert.True(t, ok, "documents in subdirectories are recovered")
	assert.GreaterOrEqual(t, h.warnings(), 3)
}

func TestStore_Categories(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.store.AddSpecific(ctx, "1", "", "", tagB)
	h.store.AddSpecific(ctx, "2", "", "", tagA)
	h.store.AddSpecific(ctx, "3", "", "", tagB)
	assert.Equal(t, []string{tagB, tagA}, h.store.Categories())
}

// writeDocument encodes note into an arbitrary file below the store root.
func writeDocument(t *testing.T, path string, note memory.Note) {
	t.Helper()
	data, err := memory.EncodeDocument(note)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestStore_RecoverMovesStrayDocuments(t *testing.T) {
	ctx := context.Background()
	docs, err := filesystem.New(t.TempDir())
	require.NoError(t, err)

	stray := filepath.Join(docs.Dir(), "old", "whatever.json")
	writeDocument(t, stray, memory.NewSpecificNoteFromStorage("n1", tagA, time.Now(), 0, "stray", "", ""))

	h := openStore(t, docs)
	_, ok := h.store.Specific("n1")
	require.True(t, ok)

	_, err = os.Stat(stray)
	assert.True(t, os.IsNotExist(err), "stray document removed")
	_, err = os.Stat(docs.Path("n1"))
	assert.NoError(t, err, "document rewritten under its id")

	require.True(t, h.store.DeleteSpecific(ctx, "n1"))

	reopened := openStore(t, docs)
	_, ok = reopened.store.Specific("n1")
	assert.False(t, ok, "deleted note stays deleted after restart")
}

func TestStore_RecoverPrefersCanonicalDuplicate(t *testing.T) {
	ctx := context.Background()
	docs, err := filesystem.New(t.TempDir())
	require.NoError(t, err)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	copyPath := filepath.Join(docs.Dir(), "backup", "n2-copy.json")
	writeDocument(t, copyPath, memory.NewSpecificNoteFromStorage("n2", tagA, created, 1, "old", "", ""))
	putSpecific(t, docs, "n2", tagA, created, 3, "current")

	h := openStore(t, docs)
	n, ok := h.store.Specific("n2")
	require.True(t, ok)
	assert.Equal(t, 3.0, n.Score())
	assert.Equal(t, "current", n.Description)

	_, err = os.Stat(copyPath)
	assert.True(t, os.IsNotExist(err), "duplicate removed")

	report, err := h.store.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Specific)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Rewritten)
}

func TestStore_InsertionOrderSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := memory.WithClock(func() time.Time { return fixed })

	h := newHarness(t, clock)
	var specific, abstract []string
	for i := 0; i < 6; i++ {
		specific = append(specific, h.store.AddSpecific(ctx, "same", "", "", tagA))
		abstract = append(abstract, h.store.AddAbstract(ctx, "lesson", tagA))
	}

	reopened := openStore(t, h.docs, clock)
	assert.Equal(t, specific, ids(reopened.store.SpecificNotes()))
	assert.Equal(t, abstract, abstractIDs(reopened.store.AbstractNotes()))

	assert.Equal(t, 3, reopened.store.Retrench(ctx, 3))
	assert.Equal(t, specific[:3], ids(reopened.store.SpecificNotes()), "equal scores keep the earliest inserted")

	// New notes still sort after everything recovered.
	late := reopened.store.AddSpecific(ctx, "later", "", "", tagB)
	notes := reopened.store.SpecificNotes()
	assert.Equal(t, late, notes[len(notes)-1].ID())
}

func TestStore_RecoverAssignsMissingSequence(t *testing.T) {
	docs, err := filesystem.New(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	putSpecific(t, docs, "late", tagA, base.Add(time.Minute), 0, "late")
	putSpecific(t, docs, "early", tagA, base, 0, "early")

	h := openStore(t, docs)
	assert.Equal(t, []string{"early", "late"}, ids(h.store.SpecificNotes()))

	data, err := os.ReadFile(docs.Path("early"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"seq": 1`)

	report, err := h.store.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Rewritten, "sequences are written once")
}

func TestStore_RecoverUpgradesMemoryLevelDocuments(t *testing.T) {
	docs, err := filesystem.New(t.TempDir())
	require.NoError(t, err)
	legacy := `{"id":"p-1","problem_description":"d","problem_analysis":"a","code":"c",` +
		`"category":"ST_SR_IA","timestamp":"202403011230","score":2.0,"memory_level":"specific"}`
	require.NoError(t, docs.Put(context.Background(), "p-1", []byte(legacy)))

	h := openStore(t, docs)
	n, ok := h.store.Specific("p-1")
	require.True(t, ok)
	assert.Equal(t, 2.0, n.Score())
	assert.Equal(t, 1, h.retriever.Len())

	data, err := os.ReadFile(docs.Path("p-1"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind": "specific"`)
	assert.NotContains(t, string(data), "memory_level")
}
