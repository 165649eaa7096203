// Package mock provides an in-memory Retriever that ranks by word overlap.
// It is meant for tests and offline runs where no embedder is available.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/becomeliminal/expmem/memory"
)

// Call records one Search invocation.
type Call struct {
	Text     string
	Category string
	K        int
}

type entry struct {
	category string
	words    map[string]struct{}
	seq      int
}

// Retriever is a goroutine-safe in-memory Retriever.
type Retriever struct {
	mu      sync.Mutex
	entries map[string]entry
	next    int
	calls   []Call

	// Override, when set, replaces ranking and is returned verbatim.
	Override func(text, category string, k int) []string
	// Err, when set, is returned from every method.
	Err error
}

var _ memory.Retriever = (*Retriever)(nil)

// New creates an empty retriever.
func New() *Retriever {
	return &Retriever{entries: make(map[string]entry)}
}

// Register indexes text under id. Re-registering replaces the entry.
func (r *Retriever) Register(_ context.Context, id, text, category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	seq := r.next
	if old, ok := r.entries[id]; ok {
		seq = old.seq
	} else {
		r.next++
	}
	r.entries[id] = entry{category: category, words: words(text), seq: seq}
	return nil
}

// Deregister drops id.
func (r *Retriever) Deregister(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	delete(r.entries, id)
	return nil
}

// Search ranks entries in category by the number of words shared with text.
// Ties keep registration order.
func (r *Retriever) Search(_ context.Context, text, category string, k int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Text: text, Category: category, K: k})
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Override != nil {
		return r.Override(text, category, k), nil
	}
	if k <= 0 {
		return nil, nil
	}

	query := words(text)
	type hit struct {
		id    string
		score int
		seq   int
	}
	var hits []hit
	for id, e := range r.entries {
		if e.category != category {
			continue
		}
		score := 0
		for w := range query {
			if _, ok := e.words[w]; ok {
				score++
			}
		}
		hits = append(hits, hit{id: id, score: score, seq: e.seq})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].seq < hits[j].seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids, nil
}

// Calls returns a copy of every Search invocation so far.
func (r *Retriever) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Registered reports whether id is indexed and under which category.
func (r *Retriever) Registered(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e.category, ok
}

// Len returns the number of indexed entries.
func (r *Retriever) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func words(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[w] = struct{}{}
	}
	return out
}
