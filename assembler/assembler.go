//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package assembler selects reranked candidates into a token-bounded,
// deduplicated set of cited chunks.
package assembler

import (
	"github.com/groundpack/groundpack/log"
	"github.com/groundpack/groundpack/reranker"
	"github.com/groundpack/groundpack/tokencount"
)

const (
	// DefaultFinalContextChunks is the default chunk count bound.
	DefaultFinalContextChunks = 8
	// DefaultTokenBudget is the default token bound.
	DefaultTokenBudget = 6000
)

// Selection is one chunk chosen for the pack, with the token cost the
// estimator charged for it.
type Selection struct {
	Candidate *reranker.Candidate
	Tokens    int
}

// Result is the assembled selection before the orchestrator wraps it into a
// grounding pack.
type Result struct {
	Selections []*Selection
	TokenCount int
	// Truncated is true iff a qualifying candidate was left out because a
	// bound would have been exceeded. Candidates skipped by dedup or the
	// diversity cap do not count as qualifying.
	Truncated bool
}

// Assembler packs reranked candidates under the configured bounds.
type Assembler struct {
	estimator tokencount.Estimator
	diversify bool
}

// Option configures the Assembler.
type Option func(*Assembler)

// WithEstimator sets the token estimator.
func WithEstimator(e tokencount.Estimator) Option {
	return func(a *Assembler) {
		if e != nil {
			a.estimator = e
		}
	}
}

// WithDiversify toggles the per-document diversity cap: at most
// max(2, finalContextChunks/3) chunks per document. Enabled by default.
func WithDiversify(enabled bool) Option {
	return func(a *Assembler) {
		a.diversify = enabled
	}
}

// New creates an Assembler. The default estimator is the chars/4 heuristic.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		estimator: tokencount.NewHeuristic(tokencount.DefaultCharsPerToken),
		diversify: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble walks candidates in rerank order, deduplicates by
// (doc_id, rev, section_path) keeping the highest-ranked chunk per section,
// and accumulates selections while both the token budget and the chunk
// count bound hold. It stops as soon as either bound would be exceeded.
func (a *Assembler) Assemble(candidates []*reranker.Candidate, finalContextChunks, tokenBudget int) *Result {
	if finalContextChunks <= 0 {
		finalContextChunks = DefaultFinalContextChunks
	}
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}

	perDocCap := finalContextChunks / 3
	if perDocCap < 2 {
		perDocCap = 2
	}

	result := &Result{}
	seenSections := make(map[string]struct{})
	perDocCounts := make(map[string]int)

	for _, cand := range candidates {
		if cand == nil || cand.Record == nil {
			continue
		}
		rec := cand.Record

		key := rec.SectionKey()
		if _, dup := seenSections[key]; dup {
			log.Debugf("assembler: skipping duplicate section for chunk %s", cand.ChunkID)
			continue
		}
		if a.diversify && perDocCounts[rec.DocID] >= perDocCap {
			log.Debugf("assembler: document %s at diversity cap, skipping chunk %s", rec.DocID, cand.ChunkID)
			continue
		}

		tokens := a.estimator.EstimateTokens(rec.Text)
		if len(result.Selections) >= finalContextChunks || result.TokenCount+tokens > tokenBudget {
			result.Truncated = true
			break
		}

		seenSections[key] = struct{}{}
		perDocCounts[rec.DocID]++
		result.Selections = append(result.Selections, &Selection{Candidate: cand, Tokens: tokens})
		result.TokenCount += tokens
	}
	return result
}
