package memory

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Mode reports which kind of memory a Recall produced.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeSpecific Mode = "specific"
	ModeAbstract Mode = "abstract"
)

// RecallOptions controls Recall.
type RecallOptions struct {
	// SpecificK and SpecificTolerance parameterize the content selection
	// tried first.
	SpecificK         int
	SpecificTolerance int

	// AbstractTarget and AbstractTolerance parameterize the abstract fallback.
	AbstractTarget    int
	AbstractTolerance int

	// SkipExact starts the abstract fallback at distance 1, to exercise
	// transfer from neighboring categories.
	SkipExact bool

	DisableSpecific bool
	DisableAbstract bool
}

// DefaultRecallOptions returns the settings used by the solver loop.
var DefaultRecallOptions = RecallOptions{
	SpecificK:         1,
	SpecificTolerance: 0,
	AbstractTarget:    2,
	AbstractTolerance: 2,
}

// Recollection is the result of Recall.
type Recollection struct {
	Mode     Mode
	Specific []*SpecificNote
	Abstract []*AbstractNote
}

// Notes returns the recalled notes as one slice.
func (r Recollection) Notes() []Note {
	notes := make([]Note, 0, len(r.Specific)+len(r.Abstract))
	for _, n := range r.Specific {
		notes = append(notes, n)
	}
	for _, n := range r.Abstract {
		notes = append(notes, n)
	}
	return notes
}

// Recall picks the memory to show for a new problem: specific notes selected
// by category and content first, abstract notes by distance when there are none.
func (s *Store) Recall(ctx context.Context, description, tag string, opts RecallOptions) Recollection {
	if !opts.DisableSpecific {
		notes := s.SelectByCategoryContent(ctx, description, tag, opts.SpecificK, opts.SpecificTolerance)
		if len(notes) > 0 {
			return Recollection{Mode: ModeSpecific, Specific: notes}
		}
	}
	if !opts.DisableAbstract {
		notes := s.SelectAbstractByDistance(tag, opts.AbstractTarget, opts.AbstractTolerance, opts.SkipExact)
		if len(notes) > 0 {
			return Recollection{Mode: ModeAbstract, Abstract: notes}
		}
	}
	return Recollection{Mode: ModeNone}
}

// Outcome is the result of one attempt at a problem.
type Outcome struct {
	Description string
	Analysis    string
	Artifact    string
	Summary     string // lessons learned, folded into abstract memory
	Category    string
	Accepted    bool
}

// RecordPolicy controls RecordOutcome.
type RecordPolicy struct {
	// Evolve merges the summary into the category's abstract note when one
	// exists. Otherwise every recorded summary becomes a new abstract note.
	Evolve bool

	// RecordFailures records summaries of rejected attempts too.
	RecordFailures bool

	// Forget reinforces neighbors and retrenches after each accepted outcome.
	Forget         bool
	ReinforceExtra int
	Capacity       int
}

// DefaultRecordPolicy returns the settings used by the solver loop.
var DefaultRecordPolicy = RecordPolicy{
	Evolve:         true,
	RecordFailures: false,
	Forget:         true,
	ReinforceExtra: 2,
	Capacity:       5,
}

// RecordResult reports what RecordOutcome changed.
type RecordResult struct {
	SpecificID string // set when a specific note was added
	AbstractID string // set when an abstract note was added
	Evolved    bool
	Summary    string // evolved summary, when Evolved
	Reinforced int
	Evicted    int
}

// RecordOutcome stores what was learned from an attempt. The summary goes to
// abstract memory; an accepted attempt also becomes a specific note, after
// which neighbors are reinforced and the store is retrenched when the policy
// says so.
func (s *Store) RecordOutcome(ctx context.Context, o Outcome, p RecordPolicy) RecordResult {
	var res RecordResult

	if o.Summary != "" && (o.Accepted || p.RecordFailures) {
		if p.Evolve && len(s.SelectAbstractByCategory(o.Category)) > 0 {
			res.Summary, res.Evolved = s.Evolve(ctx, o.Description, o.Summary, o.Category)
		} else {
			res.AbstractID = s.AddAbstract(ctx, o.Summary, o.Category)
		}
	}

	if o.Accepted {
		res.SpecificID = s.AddSpecific(ctx, o.Description, o.Analysis, o.Artifact, o.Category)
		if p.Forget {
			res.Reinforced = s.Reinforce(ctx, res.SpecificID, p.ReinforceExtra)
			res.Evicted = s.Retrench(ctx, p.Capacity)
		}
	}

	s.log.WithFields(logrus.Fields{
		"category":   o.Category,
		"accepted":   o.Accepted,
		"evolved":    res.Evolved,
		"reinforced": res.Reinforced,
		"evicted":    res.Evicted,
	}).Info("recorded outcome")
	return res
}
