package memory

import (
	"context"
)

// Kind discriminates note types in persisted documents.
type Kind string

const (
	KindSpecific Kind = "specific"
	KindAbstract Kind = "abstract"
)

// Note is implemented by SpecificNote and AbstractNote.
type Note interface {
	ID() string
	Kind() Kind
	Category() string

	// Format renders the note for prompt injection, truncated to maxLength
	// characters when maxLength > 0.
	Format(maxLength int) string
}

// Retriever is the semantic index over specific notes.
// It is derived state: the Store is authoritative and keeps it in step.
// Implementations: chromem (embedded vector DB), mock (lexical, in-memory).
type Retriever interface {
	// Register indexes text under id within category. Registering an existing
	// id replaces it.
	Register(ctx context.Context, id string, text string, category string) error

	// Deregister removes id. Unknown ids are not an error.
	Deregister(ctx context.Context, id string) error

	// Search returns up to k ids registered under category, most similar first.
	// Fewer than k are returned when the category holds fewer items.
	Search(ctx context.Context, text string, category string, k int) ([]string, error)
}

// Embedder converts text to embedding vectors.
// Implementations: mock (hashed bag-of-words), onnx (all-MiniLM-L6-v2), cache (ristretto wrapper).
type Embedder interface {
	// Embed converts a single text to embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}

// Merger folds a new summary into an existing one.
// Implementations: merger/anthropic, merger/openai.
type Merger interface {
	Merge(ctx context.Context, newText string, oldText string) (string, error)
}

// WalkFunc is called by DocumentStore.Walk for every stored document.
// err is non-nil when the document could not be read; returning a non-nil
// error stops the walk.
type WalkFunc func(name string, body []byte, err error) error

// DocumentStore is the persistence medium: one document per note, keyed by note id.
// Implementations: docstore/filesystem (directory), docstore/sqlite.
type DocumentStore interface {
	// Put writes (or overwrites) the document for id.
	Put(ctx context.Context, id string, body []byte) error

	// Delete removes the document for id. A missing document is not an error.
	Delete(ctx context.Context, id string) error

	// Walk visits every stored document.
	Walk(ctx context.Context, fn WalkFunc) error

	// Name returns the name Walk reports for the document Put writes for id.
	Name(id string) string

	// Remove deletes the document Walk reported under name. A missing
	// document is not an error.
	Remove(ctx context.Context, name string) error

	// Close releases resources.
	Close() error
}
