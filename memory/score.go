package memory

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
)

// reinforcement is the score added to each co-retrieved neighbor.
const reinforcement = 1.0

// Reinforce rewards the neighbors of a note that just proved useful. The
// retriever is asked for the extra+1 nearest notes in the note's category; each
// hit other than the note itself gains one point and is persisted.
// It returns the number of notes reinforced.
func (s *Store) Reinforce(ctx context.Context, id string, extra int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.specific[id]
	if !ok {
		s.log.WithField("id", id).Warn("reinforce: unknown note")
		return 0
	}
	if extra < 0 {
		return 0
	}

	reinforced := 0
	for _, hit := range s.search(ctx, note.Description, note.category, extra+1) {
		if hit == id {
			continue
		}
		neighbor, ok := s.specific[hit]
		if !ok {
			continue
		}
		neighbor.score += reinforcement
		s.persist(ctx, neighbor)
		reinforced++
		s.log.WithFields(logrus.Fields{"id": hit, "score": neighbor.score}).Debug("reinforced note")
	}
	return reinforced
}

// Retrench caps every category at capacity specific notes. Categories over
// the cap keep their highest-scored notes (earlier insertion wins ties); the
// rest are deleted with full teardown. It returns the number of notes evicted.
func (s *Store) Retrench(ctx context.Context, capacity int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if capacity < 0 {
		capacity = 0
	}

	groups := make(map[string][]*SpecificNote)
	var order []string
	for _, n := range s.orderedSpecific() {
		if _, ok := groups[n.category]; !ok {
			order = append(order, n.category)
		}
		groups[n.category] = append(groups[n.category], n)
	}

	evicted := 0
	for _, tag := range order {
		notes := groups[tag]
		if len(notes) <= capacity {
			continue
		}
		sort.SliceStable(notes, func(i, j int) bool {
			return notes[i].score > notes[j].score
		})
		for _, n := range notes[capacity:] {
			if s.deleteSpecific(ctx, n.id) {
				evicted++
			}
		}
		s.log.WithFields(logrus.Fields{
			"category": tag,
			"kept":     capacity,
			"evicted":  len(notes) - capacity,
		}).Info("retrenched category")
	}
	return evicted
}
