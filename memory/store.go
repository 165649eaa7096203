package memory

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/becomeliminal/expmem/category"
)

// Store owns every note. Each note has exactly one document in the
// DocumentStore, and each specific note is registered with the Retriever
// under its category.
//
// All operations are serialized by a single mutex, so the three views
// (memory, documents, index) change together.
type Store struct {
	mu sync.Mutex

	docs      DocumentStore
	retriever Retriever
	merger    Merger
	config    *Config
	log       logrus.FieldLogger
	now       func() time.Time
	rand      *rand.Rand

	specific map[string]*SpecificNote
	abstract map[string]*AbstractNote
	next     uint64 // next insertion sequence, shared by both kinds
}

// Option configures the store.
type Option func(*Store)

// WithMerger sets the text-merge oracle used by Evolve.
func WithMerger(m Merger) Option {
	return func(s *Store) {
		s.merger = m
	}
}

// WithConfig overrides DefaultConfig.
func WithConfig(c *Config) Option {
	return func(s *Store) {
		if c != nil {
			s.config = c
		}
	}
}

// WithLogger sets the logger. Defaults to logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the time source for note creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRand sets the random source used to shuffle abstract selections.
func WithRand(r *rand.Rand) Option {
	return func(s *Store) {
		if r != nil {
			s.rand = r
		}
	}
}

// RecoveryReport summarizes a recovery scan.
type RecoveryReport struct {
	Specific  int // specific notes rebuilt
	Abstract  int // abstract notes rebuilt
	Skipped   int // documents that were unreadable, of unknown kind or duplicates
	Rewritten int // documents moved to their canonical name or given a sequence
}

// recovered is one decoded document and the name it was walked under.
type recovered struct {
	note Note
	name string
}

// Open creates a store over docs and retriever and runs the recovery scan.
func Open(ctx context.Context, docs DocumentStore, retriever Retriever, opts ...Option) (*Store, error) {
	if docs == nil {
		return nil, errors.New("memory: document store is required")
	}
	if retriever == nil {
		return nil, errors.New("memory: retriever is required")
	}

	s := &Store{
		docs:      docs,
		retriever: retriever,
		config:    DefaultConfig,
		log:       logrus.StandardLogger(),
		now:       time.Now,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		specific:  make(map[string]*SpecificNote),
		abstract:  make(map[string]*AbstractNote),
		next:      1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "memory")

	if _, err := s.Recover(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the document store.
func (s *Store) Close() error {
	return s.docs.Close()
}

// AddSpecific stores a new specific note and returns its id. It always
// succeeds: persistence and indexing failures are logged.
func (s *Store) AddSpecific(ctx context.Context, description, analysis, artifact, tag string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := category.Validate(tag); err != nil {
		s.log.WithField("category", tag).Warnf("adding specific note with nonstandard category: %v", err)
	}

	note := newSpecificNote(description, analysis, artifact, tag, s.now())
	s.insertSpecific(note)
	s.persist(ctx, note)
	s.register(ctx, note)

	s.log.WithFields(logrus.Fields{"id": note.id, "category": tag}).Debug("added specific note")
	return note.id
}

// AddAbstract stores a new abstract note and returns its id.
func (s *Store) AddAbstract(ctx context.Context, summary, tag string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := category.Validate(tag); err != nil {
		s.log.WithField("category", tag).Warnf("adding abstract note with nonstandard category: %v", err)
	}

	note := newAbstractNote(summary, tag)
	s.insertAbstract(note)
	s.persist(ctx, note)

	s.log.WithFields(logrus.Fields{"id": note.id, "category": tag}).Debug("added abstract note")
	return note.id
}

// DeleteSpecific removes a specific note from memory, its document and the
// retriever. It returns false if the id is unknown.
func (s *Store) DeleteSpecific(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteSpecific(ctx, id)
}

// DeleteAbstract removes an abstract note from memory and its document.
// It returns false if the id is unknown.
func (s *Store) DeleteAbstract(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.abstract[id]; !ok {
		return false
	}
	delete(s.abstract, id)
	s.removeDocument(ctx, id)
	return true
}

// Persist rewrites the document of one note. It returns false if the id is
// unknown or the write failed.
func (s *Store) Persist(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.specific[id]; ok {
		return s.persist(ctx, n) == nil
	}
	if n, ok := s.abstract[id]; ok {
		return s.persist(ctx, n) == nil
	}
	return false
}

// Recover scans the document store and rebuilds every recognized note.
// Unreadable documents and documents of unknown kind are skipped with a warning.
// Only a failing walk of the medium itself returns an error.
//
// A document found under another name than the one Put uses for its id is
// rewritten under that name and the original removed, so every note keeps
// exactly one document. When two documents share an id, the one under the
// canonical name wins and the other is removed. Documents without a stored
// insertion sequence are given one and rewritten.
func (s *Store) Recover(ctx context.Context) (RecoveryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report RecoveryReport
	var found []recovered

	err := s.docs.Walk(ctx, func(name string, body []byte, err error) error {
		if err != nil {
			report.Skipped++
			s.log.WithField("document", name).Error((&PersistenceError{Op: "read", ID: name, Err: err}).Error())
			return nil
		}

		note, err := DecodeDocument(body)
		if err != nil {
			report.Skipped++
			if errors.Is(err, ErrUnknownKind) {
				s.log.WithField("document", name).Warnf("skipping document: %v", err)
			} else {
				s.log.WithField("document", name).Warnf("skipping unreadable document: %v", err)
			}
			return nil
		}
		found = append(found, recovered{note: note, name: name})
		return nil
	})
	if err != nil {
		return report, &PersistenceError{Op: "walk", Err: err}
	}

	kept, stale := s.dedupe(found)
	report.Skipped += len(stale)

	var specific []*SpecificNote
	var abstract []*AbstractNote
	for _, r := range kept {
		switch n := r.note.(type) {
		case *SpecificNote:
			specific = append(specific, n)
			if n.seq >= s.next {
				s.next = n.seq + 1
			}
		case *AbstractNote:
			abstract = append(abstract, n)
			if n.seq >= s.next {
				s.next = n.seq + 1
			}
		}
	}

	// Stored sequences first; older documents without one follow in
	// creation order.
	sort.SliceStable(specific, func(i, j int) bool {
		a, b := specific[i], specific[j]
		if (a.seq == 0) != (b.seq == 0) {
			return a.seq != 0
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		if !a.createdAt.Equal(b.createdAt) {
			return a.createdAt.Before(b.createdAt)
		}
		return a.id < b.id
	})
	sort.SliceStable(abstract, func(i, j int) bool {
		a, b := abstract[i], abstract[j]
		if (a.seq == 0) != (b.seq == 0) {
			return a.seq != 0
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return a.id < b.id
	})

	rewrite := make(map[string]bool)
	for _, n := range specific {
		if n.seq == 0 {
			rewrite[n.id] = true
		}
		s.insertSpecific(n)
		if s.config.ReindexOnRecover {
			s.register(ctx, n)
		}
	}
	for _, n := range abstract {
		if n.seq == 0 {
			rewrite[n.id] = true
		}
		s.insertAbstract(n)
	}

	for _, r := range kept {
		id := r.note.ID()
		moved := r.name != s.docs.Name(id)
		if !moved && !rewrite[id] {
			continue
		}
		if s.persist(ctx, r.note) != nil {
			continue
		}
		report.Rewritten++
		if moved {
			s.removeWalked(ctx, r.name, id)
		}
	}
	for _, r := range stale {
		s.removeWalked(ctx, r.name, r.note.ID())
	}

	report.Specific = len(specific)
	report.Abstract = len(abstract)
	s.log.WithFields(logrus.Fields{
		"specific":  report.Specific,
		"abstract":  report.Abstract,
		"skipped":   report.Skipped,
		"rewritten": report.Rewritten,
	}).Info("recovered notes")
	return report, nil
}

// dedupe keeps one document per id, preferring the canonical name and then
// the first one walked. The rest are returned as stale.
func (s *Store) dedupe(found []recovered) (kept, stale []recovered) {
	index := make(map[string]int)
	for _, r := range found {
		id := r.note.ID()
		i, ok := index[id]
		if !ok {
			index[id] = len(kept)
			kept = append(kept, r)
			continue
		}
		prev := kept[i]
		if r.name == s.docs.Name(id) && prev.name != s.docs.Name(id) {
			kept[i], r = r, prev
		}
		s.log.WithFields(logrus.Fields{"id": id, "document": r.name}).Warn("skipping duplicate document")
		stale = append(stale, r)
	}
	return kept, stale
}

// Specific returns the specific note with the given id.
func (s *Store) Specific(id string) (*SpecificNote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.specific[id]
	return n, ok
}

// Abstract returns the abstract note with the given id.
func (s *Store) Abstract(id string) (*AbstractNote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.abstract[id]
	return n, ok
}

// SpecificNotes returns all specific notes in insertion order.
func (s *Store) SpecificNotes() []*SpecificNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedSpecific()
}

// AbstractNotes returns all abstract notes in insertion order.
func (s *Store) AbstractNotes() []*AbstractNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedAbstract()
}

// Len returns the number of specific and abstract notes.
func (s *Store) Len() (specific int, abstract int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.specific), len(s.abstract)
}

// Categories returns the distinct categories of specific notes, in order of
// first insertion.
func (s *Store) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return distinctCategories(s.orderedSpecific())
}

func (s *Store) insertSpecific(n *SpecificNote) {
	if old, ok := s.specific[n.id]; ok && n.seq == 0 {
		n.seq = old.seq
	}
	if n.seq == 0 {
		n.seq = s.next
		s.next++
	}
	s.specific[n.id] = n
}

func (s *Store) insertAbstract(n *AbstractNote) {
	if old, ok := s.abstract[n.id]; ok && n.seq == 0 {
		n.seq = old.seq
	}
	if n.seq == 0 {
		n.seq = s.next
		s.next++
	}
	s.abstract[n.id] = n
}

// deleteSpecific performs the full teardown. Caller holds s.mu.
func (s *Store) deleteSpecific(ctx context.Context, id string) bool {
	if _, ok := s.specific[id]; !ok {
		return false
	}
	delete(s.specific, id)
	s.removeDocument(ctx, id)
	if err := s.retriever.Deregister(ctx, id); err != nil {
		s.log.WithField("id", id).WithError(err).Error("retriever deregister failed")
	}
	return true
}

// persist writes the note's document. Failures are logged and returned.
func (s *Store) persist(ctx context.Context, note Note) error {
	data, err := EncodeDocument(note)
	if err != nil {
		perr := &PersistenceError{Op: "encode", ID: note.ID(), Err: err}
		s.log.WithField("id", note.ID()).Error(perr.Error())
		return perr
	}
	if err := s.docs.Put(ctx, note.ID(), data); err != nil {
		perr := &PersistenceError{Op: "put", ID: note.ID(), Err: err}
		s.log.WithField("id", note.ID()).Error(perr.Error())
		return perr
	}
	return nil
}

func (s *Store) removeDocument(ctx context.Context, id string) {
	if err := s.docs.Delete(ctx, id); err != nil {
		perr := &PersistenceError{Op: "delete", ID: id, Err: err}
		s.log.WithField("id", id).Error(perr.Error())
	}
}

// removeWalked deletes a document by its walked name.
func (s *Store) removeWalked(ctx context.Context, name, id string) {
	if err := s.docs.Remove(ctx, name); err != nil {
		perr := &PersistenceError{Op: "remove", ID: id, Err: err}
		s.log.WithFields(logrus.Fields{"id": id, "document": name}).Error(perr.Error())
	}
}

func (s *Store) register(ctx context.Context, n *SpecificNote) {
	if err := s.retriever.Register(ctx, n.id, n.FormatForEmbedding(), n.category); err != nil {
		s.log.WithFields(logrus.Fields{"id": n.id, "category": n.category}).WithError(err).Error("retriever register failed")
	}
}

// search queries the retriever and logs failures as empty results.
func (s *Store) search(ctx context.Context, text, tag string, k int) []string {
	if k <= 0 {
		return nil
	}
	ids, err := s.retriever.Search(ctx, text, tag, k)
	if err != nil {
		s.log.WithField("category", tag).WithError(err).Error("retriever search failed")
		return nil
	}
	if len(ids) > k {
		ids = ids[:k]
	}
	return ids
}

func (s *Store) orderedSpecific() []*SpecificNote {
	notes := make([]*SpecificNote, 0, len(s.specific))
	for _, n := range s.specific {
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].seq < notes[j].seq
	})
	return notes
}

func (s *Store) orderedAbstract() []*AbstractNote {
	notes := make([]*AbstractNote, 0, len(s.abstract))
	for _, n := range s.abstract {
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].seq < notes[j].seq
	})
	return notes
}

// distance is category.Distance with the format warning attached.
func (s *Store) distance(target string, n Note) int {
	if _, err := category.Parse(n.Category()); err != nil {
		s.log.WithFields(logrus.Fields{"id": n.ID(), "category": n.Category()}).Warn("compare category format error")
	}
	return category.Distance(target, n.Category())
}

// checkTarget warns once per operation about a malformed target tag.
func (s *Store) checkTarget(target string) {
	if _, err := category.Parse(target); err != nil {
		s.log.WithField("category", target).Warnf("compare category format error: %v", err)
	}
}

func distinctCategories(notes []*SpecificNote) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range notes {
		if !seen[n.category] {
			seen[n.category] = true
			out = append(out, n.category)
		}
	}
	return out
}
