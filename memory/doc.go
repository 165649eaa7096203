// Package memory provides a categorized store of experience notes.
//
// The store keeps two kinds of notes, both keyed by a three-axis category tag
// (see package category):
//   - SpecificNote: one solved problem (description, analysis, artifact) with a
//     reinforcement score.
//   - AbstractNote: a running summary per category, folded forward by a Merger.
//
// Architecture:
//   - Store: authoritative in-memory maps, one persisted document per note
//   - DocumentStore: persistence medium (directory of JSON files, or SQLite)
//   - Retriever: derived semantic index scoped by category (chromem-go)
//   - Embedder: text-to-vector conversion used by the chromem retriever
//   - Merger: text-merge oracle used for abstract evolution (Claude, OpenAI-compatible)
//
// Operations:
//   - ADD / DELETE: keep memory, documents and retriever registration in step
//   - SELECT: expanding-radius category search, optionally re-ranked by content
//   - REINFORCE / RETRENCH: score co-retrieved neighbors, evict by score per category
//   - EVOLVE: merge new summaries into the category's abstract notes
//
// Recovery:
//   - Open walks the DocumentStore and rebuilds every note whose kind it recognizes
//   - Recovered specific notes are re-registered with the Retriever by default
package memory
