package chromem

import (
	"context"
	"errors"
	"fmt"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/expmem/memory"
)

// DefaultCollection is the collection all specific notes are indexed in.
const DefaultCollection = "memories"

// categoryKey is the document metadata key searches filter on.
const categoryKey = "category"

// ChromemRetriever indexes specific notes in a chromem-go collection.
// chromem-go is a pure Go, embedded vector database; every note is a document
// whose metadata carries its category, so searches are scoped with a where filter.
type ChromemRetriever struct {
	db       *chromem.DB
	col      *chromem.Collection
	embedder memory.Embedder
}

var _ memory.Retriever = (*ChromemRetriever)(nil)

type options struct {
	persistDir string
	compress   bool
	collection string
}

// Option configures the retriever.
type Option func(*options)

// WithPersistence stores the index under dir so it survives restarts.
func WithPersistence(dir string, compress bool) Option {
	return func(o *options) {
		o.persistDir = dir
		o.compress = compress
	}
}

// WithCollection overrides DefaultCollection.
func WithCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.collection = name
		}
	}
}

// New creates a chromem-backed retriever. Embeddings are computed by embedder.
func New(embedder memory.Embedder, opts ...Option) (*ChromemRetriever, error) {
	if embedder == nil {
		return nil, errors.New("chromem: embedder is required")
	}
	o := options{collection: DefaultCollection}
	for _, opt := range opts {
		opt(&o)
	}

	db := chromem.NewDB()
	if o.persistDir != "" {
		var err error
		db, err = chromem.NewPersistentDB(o.persistDir, o.compress)
		if err != nil {
			return nil, fmt.Errorf("open persistent db: %w", err)
		}
	}

	// The embedding func is only a fallback; documents and queries carry
	// embeddings computed up front.
	col, err := db.GetOrCreateCollection(o.collection, nil, embedder.Embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemRetriever{
		db:       db,
		col:      col,
		embedder: embedder,
	}, nil
}

// Register embeds text and stores it under id with its category.
func (r *ChromemRetriever) Register(ctx context.Context, id string, text string, category string) error {
	embedding, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}

	log.Debugf("[CHROMEM] Registering document: id=%s, category=%s", id, category)

	doc := chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: embedding,
		Metadata:  map[string]string{categoryKey: category},
	}
	if err := r.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Deregister removes id from the collection.
func (r *ChromemRetriever) Deregister(ctx context.Context, id string) error {
	if err := r.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Search returns up to k ids in category ordered by cosine similarity to text.
func (r *ChromemRetriever) Search(ctx context.Context, text string, category string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	total := r.col.Count()
	if total == 0 {
		return nil, nil
	}
	limit := k
	if limit > total {
		limit = total
	}

	embedding, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	where := map[string]string{categoryKey: category}

	// chromem-go rejects nResults larger than what it can return;
	// retry with smaller limits.
	var results []chromem.Result
	for current := limit; current >= 1; current-- {
		results, err = r.col.QueryEmbedding(ctx, embedding, current, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if current == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	ids := make([]string, 0, len(results))
	for _, res := range results {
		ids = append(ids, res.ID)
	}
	log.Debugf("[CHROMEM] Search category=%s k=%d returned %d ids", category, k, len(ids))
	return ids, nil
}

// Count returns the number of indexed documents across all categories.
func (r *ChromemRetriever) Count() int {
	return r.col.Count()
}

// isInsufficientDocsError checks if error is due to insufficient documents.
func isInsufficientDocsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
