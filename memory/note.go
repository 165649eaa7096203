package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SpecificNote stores one solved problem: its description, the analysis that
// led to the solution (or the diagnosis of an error), and the artifact itself.
//
// The score is owned by the Store's scoring engine; callers can read it but
// not change it.
type SpecificNote struct {
	id        string
	category  string
	createdAt time.Time
	score     float64
	seq       uint64 // insertion order, assigned by the Store

	Description string
	Analysis    string
	Artifact    string
}

// newSpecificNote creates a note with a fresh id and a zero score.
func newSpecificNote(description, analysis, artifact, category string, now time.Time) *SpecificNote {
	return &SpecificNote{
		id:          uuid.New().String(),
		category:    category,
		createdAt:   now.UTC(),
		Description: description,
		Analysis:    analysis,
		Artifact:    artifact,
	}
}

// NewSpecificNoteFromStorage rebuilds a SpecificNote from stored fields.
func NewSpecificNoteFromStorage(
	id string,
	category string,
	createdAt time.Time,
	score float64,
	description string,
	analysis string,
	artifact string,
) *SpecificNote {
	return &SpecificNote{
		id:          id,
		category:    category,
		createdAt:   createdAt.UTC(),
		score:       score,
		Description: description,
		Analysis:    analysis,
		Artifact:    artifact,
	}
}

func (n *SpecificNote) ID() string {
	return n.id
}

func (n *SpecificNote) Kind() Kind {
	return KindSpecific
}

func (n *SpecificNote) Category() string {
	return n.category
}

func (n *SpecificNote) CreatedAt() time.Time {
	return n.createdAt
}

func (n *SpecificNote) Score() float64 {
	return n.score
}

// Format renders description, analysis and artifact. With maxLength > 0 the
// description gets a quarter of the space, the analysis a quarter and the
// artifact half.
func (n *SpecificNote) Format(maxLength int) string {
	description, analysis, artifact := n.Description, n.Analysis, n.Artifact
	if maxLength > 0 {
		description = truncate(description, maxLength/4)
		analysis = truncate(analysis, maxLength/4)
		artifact = truncate(artifact, maxLength/2)
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] score=%.1f", n.category, n.score))
	parts = append(parts, "Problem: "+description)
	if analysis != "" {
		parts = append(parts, "Analysis: "+analysis)
	}
	if artifact != "" {
		parts = append(parts, "Solution:\n"+artifact)
	}
	return strings.Join(parts, "\n")
}

// FormatForEmbedding returns the text registered with the retriever.
// Similarity is judged on the problem description alone.
func (n *SpecificNote) FormatForEmbedding() string {
	return n.Description
}

// AbstractNote is the running summary of what has been learned for a category.
type AbstractNote struct {
	id       string
	category string
	seq      uint64

	Summary string
}

func newAbstractNote(summary, category string) *AbstractNote {
	return &AbstractNote{
		id:       uuid.New().String(),
		category: category,
		Summary:  summary,
	}
}

// NewAbstractNoteFromStorage rebuilds an AbstractNote from stored fields.
func NewAbstractNoteFromStorage(id, category, summary string) *AbstractNote {
	return &AbstractNote{
		id:       id,
		category: category,
		Summary:  summary,
	}
}

func (n *AbstractNote) ID() string {
	return n.id
}

func (n *AbstractNote) Kind() Kind {
	return KindAbstract
}

func (n *AbstractNote) Category() string {
	return n.category
}

func (n *AbstractNote) Format(maxLength int) string {
	summary := n.Summary
	if maxLength > 0 {
		summary = truncate(summary, maxLength)
	}
	return fmt.Sprintf("[%s] Summary: %s", n.category, summary)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
