//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package groundpack turns a natural-language query plus the caller's group
// memberships into a bounded, cited grounding pack: hybrid retrieval, rank
// fusion, security trimming, reranking, and budgeted assembly behind one
// Retrieve call.
package groundpack

import (
	"fmt"
	"strings"
)

// Pipeline stages recorded in the retrieval trace.
const (
	TraceStageLexical = "lexical"
	TraceStageVector  = "vector"
	TraceStageFused   = "fused"
	TraceStageTrimmed = "trimmed"
	TraceStageRerank  = "reranked"
	TraceStageSelect  = "selected"
)

// Degradation reasons attached to a successful pack.
const (
	DegradationLexicalUnavailable = "lexical_unavailable"
	DegradationVectorUnavailable  = "vector_unavailable"
	DegradationEmbeddingFailed    = "embedding_failed"
	DegradationRerankFallback     = "rerank_fallback"
)

// PackChunk is one selected chunk with its citation metadata carried
// verbatim from the source record.
type PackChunk struct {
	ChunkID     string
	DocID       string
	Rev         string
	Page        int
	SectionPath []string
	Text        string
	SourceURL   string
	// Citation is the rendered label, e.g. "SPEC-001 Rev D p.12".
	Citation string
	// Score is the final (rerank-scale) score the chunk was selected at.
	Score float64
	// Tokens is what the estimator charged for this chunk.
	Tokens int
}

// TraceEntry records one chunk's score at one pipeline stage.
type TraceEntry struct {
	Stage   string
	ChunkID string
	Rank    int
	Score   float64
}

// GroundingPack is the bounded, cited result of one retrieve call. It is a
// value object owned by the caller; it holds no live references into the
// search backend or embedding client.
type GroundingPack struct {
	Query  string
	Groups []string
	Chunks []*PackChunk
	// TokenCount is the estimator sum over selected chunks.
	TokenCount int
	// Truncated is true if more qualifying candidates existed than fit
	// the budget.
	Truncated bool
	// Trace lists chunk scores at each stage for audit.
	Trace []TraceEntry
	// Degradations lists non-fatal conditions (one modality down, rerank
	// fallback) that affected this pack. An empty slice means a fully
	// healthy call.
	Degradations []string
}

// Degraded reports whether any non-fatal degradation affected this pack.
func (p *GroundingPack) Degraded() bool {
	return len(p.Degradations) > 0
}

// Summaries renders printable one-per-chunk summaries for CLI output.
func (p *GroundingPack) Summaries() []string {
	summaries := make([]string, 0, len(p.Chunks))
	for i, c := range p.Chunks {
		snippet := strings.Join(strings.Fields(c.Text), " ")
		if len(snippet) > 260 {
			snippet = snippet[:260]
		}
		summaries = append(summaries, fmt.Sprintf("[%d] %s score=%.3f\n    %s",
			i+1, c.Citation, c.Score, snippet))
	}
	return summaries
}
