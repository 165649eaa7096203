package memory

import (
	"context"

	"github.com/sirupsen/logrus"
)

// SelectByCategory returns up to k specific notes from the nearest non-empty
// distance level. Levels 0..tolerance are tried in turn and each is a separate
// bucket: the search stops at the first level with any match, even if that
// level holds fewer than k notes.
func (s *Store) SelectByCategory(target string, k int, tolerance int) []*SpecificNote {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k <= 0 {
		return nil
	}
	bucket, _ := s.firstBucket(target, tolerance)
	if len(bucket) > k {
		bucket = bucket[:k]
	}
	return bucket
}

// SelectByCategoryContent finds the same bucket as SelectByCategory. When the
// bucket holds at least k notes, it is refined by content: k is split across
// the bucket's categories and each category's quota is filled by the retriever
// against description. A category returning fewer than its quota passes the
// shortfall to the next category. A smaller bucket is returned as is.
func (s *Store) SelectByCategoryContent(ctx context.Context, description, target string, k int, tolerance int) []*SpecificNote {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k <= 0 {
		return nil
	}
	bucket, level := s.firstBucket(target, tolerance)
	if len(bucket) < k {
		return bucket
	}

	categories := distinctCategories(bucket)
	quotas := SplitQuota(k, len(categories))

	selected := make([]*SpecificNote, 0, k)
	seen := make(map[string]bool, k)
	var shortfall int

	for i, tag := range categories {
		got := s.fill(ctx, description, tag, quotas[i], quotas[i], seen)
		selected = append(selected, got...)

		missing := quotas[i] - len(got)
		if missing <= 0 {
			continue
		}
		if i+1 < len(categories) {
			quotas[i+1] += missing
		} else {
			shortfall = missing
		}
	}

	if shortfall > 0 && s.config.WrapShortfall {
		for i, tag := range categories[:len(categories)-1] {
			if shortfall == 0 {
				break
			}
			// Ask for more than before; fill skips what is already selected.
			got := s.fill(ctx, description, tag, quotas[i]+shortfall, shortfall, seen)
			selected = append(selected, got...)
			shortfall -= len(got)
		}
	}

	s.log.WithFields(logrus.Fields{
		"category":   target,
		"level":      level,
		"bucket":     len(bucket),
		"categories": len(categories),
		"selected":   len(selected),
		"dropped":    shortfall,
	}).Debug("content selection")
	return selected
}

// fill queries tag for up to query ids and keeps at most want known, unseen notes.
func (s *Store) fill(ctx context.Context, description, tag string, query, want int, seen map[string]bool) []*SpecificNote {
	if query <= 0 || want <= 0 {
		return nil
	}
	var out []*SpecificNote
	for _, id := range s.search(ctx, description, tag, query) {
		if len(out) == want {
			break
		}
		if seen[id] {
			continue
		}
		n, ok := s.specific[id]
		if !ok {
			s.log.WithField("id", id).Debug("retriever returned unknown id")
			continue
		}
		seen[id] = true
		out = append(out, n)
	}
	return out
}

// firstBucket returns the notes at the smallest distance level in
// [0, tolerance] that has any, in insertion order, and that level.
// It returns level -1 when nothing is found.
func (s *Store) firstBucket(target string, tolerance int) ([]*SpecificNote, int) {
	s.checkTarget(target)

	notes := s.orderedSpecific()
	distances := make([]int, len(notes))
	for i, n := range notes {
		distances[i] = s.distance(target, n)
	}

	for level := 0; level <= tolerance; level++ {
		var bucket []*SpecificNote
		for i, n := range notes {
			if distances[i] == level {
				bucket = append(bucket, n)
			}
		}
		if len(bucket) > 0 {
			return bucket, level
		}
	}
	return nil, -1
}

// SplitQuota splits k as evenly as possible into n parts; the first k%n
// parts get one extra.
func SplitQuota(k, n int) []int {
	if n <= 0 {
		return nil
	}
	base, remainder := k/n, k%n
	out := make([]int, n)
	for i := range out {
		out[i] = base
		if i < remainder {
			out[i]++
		}
	}
	return out
}
