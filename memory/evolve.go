package memory

import (
	"context"

	"github.com/sirupsen/logrus"
)

// SelectAbstractByCategory returns the abstract notes whose category equals tag.
func (s *Store) SelectAbstractByCategory(tag string) []*AbstractNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abstractInCategory(tag)
}

// SelectAbstractByDistance accumulates abstract notes level by level, starting
// at level 1 when skipExact is set and 0 otherwise, until at least targetCount
// notes are collected or tolerance is passed. Whole levels are added, so the
// result can exceed targetCount. The result is shuffled.
func (s *Store) SelectAbstractByDistance(target string, targetCount, tolerance int, skipExact bool) []*AbstractNote {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkTarget(target)

	start := 0
	if skipExact {
		start = 1
	}

	notes := s.orderedAbstract()
	var selected []*AbstractNote
	for level := start; level <= tolerance; level++ {
		for _, n := range notes {
			if s.distance(target, n) == level {
				selected = append(selected, n)
			}
		}
		if len(selected) >= targetCount {
			break
		}
	}

	s.rand.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	return selected
}

// Evolve merges newSummary into every abstract note of exactly this category
// and persists each update. It returns the text produced for the last note
// merged, and false when nothing was merged (no abstract note exists for the
// category, no merger is configured, or every merge failed).
//
// description identifies the problem that produced newSummary; it is only
// logged.
func (s *Store) Evolve(ctx context.Context, description, newSummary, tag string) (string, bool) {
	merged := s.evolve(ctx, description, newSummary, tag)
	if len(merged) == 0 {
		return "", false
	}
	return merged[len(merged)-1].text, true
}

// EvolveAll is Evolve returning every merged summary, keyed by note id.
func (s *Store) EvolveAll(ctx context.Context, description, newSummary, tag string) map[string]string {
	merged := s.evolve(ctx, description, newSummary, tag)
	out := make(map[string]string, len(merged))
	for _, m := range merged {
		out[m.id] = m.text
	}
	return out
}

type mergedSummary struct {
	id   string
	text string
}

func (s *Store) evolve(ctx context.Context, description, newSummary, tag string) []mergedSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.WithField("category", tag)
	if s.merger == nil {
		log.Warn("evolve: no merger configured")
		return nil
	}

	notes := s.abstractInCategory(tag)
	if len(notes) == 0 {
		log.Debug("evolve: no abstract note for category")
		return nil
	}
	log.WithFields(logrus.Fields{
		"notes":   len(notes),
		"problem": truncate(description, 50),
	}).Info("evolving abstract memory")

	var merged []mergedSummary
	for _, n := range notes {
		text, err := s.merger.Merge(ctx, newSummary, n.Summary)
		if err != nil {
			log.WithField("id", n.id).WithError(err).Error("merge failed, keeping summary")
			continue
		}
		n.Summary = text
		s.persist(ctx, n)
		merged = append(merged, mergedSummary{id: n.id, text: text})
	}
	return merged
}

func (s *Store) abstractInCategory(tag string) []*AbstractNote {
	var out []*AbstractNote
	for _, n := range s.orderedAbstract() {
		if n.category == tag {
			out = append(out, n)
		}
	}
	return out
}
