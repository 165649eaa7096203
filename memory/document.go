package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownKind is returned when a document's kind field is missing or not recognized.
var ErrUnknownKind = errors.New("unknown note kind")

// documentHeader is decoded first to pick the note type. Documents written
// by the earlier Python tooling carry memory_level instead of kind.
type documentHeader struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	MemoryLevel string `json:"memory_level"`
}

type specificDocument struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	Score       float64   `json:"score"`
	Seq         uint64    `json:"seq,omitempty"`
	Description string    `json:"description"`
	Analysis    string    `json:"analysis"`
	Artifact    string    `json:"artifact"`
}

type abstractDocument struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Category string `json:"category"`
	Seq      uint64 `json:"seq,omitempty"`
	Summary  string `json:"summary"`
}

const (
	legacySpecific      = "specific"
	legacyAbstract      = "abstruct"
	legacyTimestamp     = "200601021504"
	legacyUncategorized = "Uncategorized"
)

type legacySpecificDocument struct {
	ID                 string  `json:"id"`
	Category           string  `json:"category"`
	Timestamp          string  `json:"timestamp"`
	Score              float64 `json:"score"`
	ProblemDescription string  `json:"problem_description"`
	ProblemAnalysis    string  `json:"problem_analysis"`
	Code               string  `json:"code"`
}

type legacyAbstractDocument struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	ResolveSummary string `json:"resolve_summary"`
}

// EncodeDocument serializes a note to its persisted JSON document.
func EncodeDocument(note Note) ([]byte, error) {
	var doc interface{}
	switch n := note.(type) {
	case *SpecificNote:
		doc = specificDocument{
			ID:          n.id,
			Kind:        KindSpecific,
			Category:    n.category,
			CreatedAt:   n.createdAt,
			Score:       n.score,
			Seq:         n.seq,
			Description: n.Description,
			Analysis:    n.Analysis,
			Artifact:    n.Artifact,
		}
	case *AbstractNote:
		doc = abstractDocument{
			ID:       n.id,
			Kind:     KindAbstract,
			Category: n.category,
			Seq:      n.seq,
			Summary:  n.Summary,
		}
	default:
		return nil, fmt.Errorf("encode document: %w: %T", ErrUnknownKind, note)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// DecodeDocument parses a persisted document back into a note.
// Documents whose kind is not recognized return ErrUnknownKind.
func DecodeDocument(data []byte) (Note, error) {
	var header documentHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if header.Kind == "" && header.MemoryLevel != "" {
		return decodeLegacy(data, header)
	}

	switch header.Kind {
	case KindSpecific:
		var doc specificDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode specific document: %w", err)
		}
		if doc.ID == "" {
			return nil, errors.New("decode specific document: missing id")
		}
		n := NewSpecificNoteFromStorage(
			doc.ID,
			doc.Category,
			doc.CreatedAt,
			doc.Score,
			doc.Description,
			doc.Analysis,
			doc.Artifact,
		)
		n.seq = doc.Seq
		return n, nil
	case KindAbstract:
		var doc abstractDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode abstract document: %w", err)
		}
		if doc.ID == "" {
			return nil, errors.New("decode abstract document: missing id")
		}
		n := NewAbstractNoteFromStorage(doc.ID, doc.Category, doc.Summary)
		n.seq = doc.Seq
		return n, nil
	default:
		return nil, fmt.Errorf("decode document %q: %w: %q", header.ID, ErrUnknownKind, header.Kind)
	}
}

// decodeLegacy reads the memory_level layout. Its notes carry no sequence,
// so recovery orders them by timestamp.
func decodeLegacy(data []byte, header documentHeader) (Note, error) {
	switch header.MemoryLevel {
	case legacySpecific:
		var doc legacySpecificDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode specific document: %w", err)
		}
		if doc.ID == "" {
			return nil, errors.New("decode specific document: missing id")
		}
		// Unparsable timestamps sort first.
		created, _ := time.ParseInLocation(legacyTimestamp, doc.Timestamp, time.Local)
		return NewSpecificNoteFromStorage(
			doc.ID,
			orUncategorized(doc.Category),
			created,
			doc.Score,
			doc.ProblemDescription,
			doc.ProblemAnalysis,
			doc.Code,
		), nil
	case legacyAbstract:
		var doc legacyAbstractDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode abstract document: %w", err)
		}
		if doc.ID == "" {
			return nil, errors.New("decode abstract document: missing id")
		}
		return NewAbstractNoteFromStorage(doc.ID, orUncategorized(doc.Category), doc.ResolveSummary), nil
	default:
		return nil, fmt.Errorf("decode document %q: %w: memory_level %q", header.ID, ErrUnknownKind, header.MemoryLevel)
	}
}

func orUncategorized(tag string) string {
	if tag == "" {
		return legacyUncategorized
	}
	return tag
}
