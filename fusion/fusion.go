//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package fusion merges lexical and vector hit lists into one ranking using
// reciprocal-rank fusion.
package fusion

import (
	"sort"

	"github.com/groundpack/groundpack/chunk"
	"github.com/groundpack/groundpack/searchbackend"
)

// DefaultKRRF is the default smoothing constant for reciprocal-rank fusion.
const DefaultKRRF = 60

// Candidate is a chunk surviving fusion, with a score comparable across
// candidates regardless of which source lists it appeared in.
type Candidate struct {
	// Record is the chunk record carried through from retrieval.
	Record *chunk.Record
	// ChunkID identifies the chunk.
	ChunkID string
	// Score is the summed reciprocal-rank contribution.
	Score float64
	// Ranks maps each contributing source to the 1-based rank the chunk
	// held in that source's list. Sources the chunk was absent from are
	// not present in the map.
	Ranks map[searchbackend.Source]int

	// firstSeen is the order of first appearance while scanning the
	// lexical list before the vector list. It anchors the final tie-break
	// so output never depends on map iteration order.
	firstSeen int
}

// minRank returns the smallest rank the candidate holds across sources.
func (c *Candidate) minRank() int {
	min := int(^uint(0) >> 1)
	for _, r := range c.Ranks {
		if r < min {
			min = r
		}
	}
	return min
}

// Engine performs reciprocal-rank fusion. The zero value is not usable;
// construct with New.
type Engine struct {
	k int
}

// Option configures the Engine.
type Option func(*Engine)

// WithK sets the RRF smoothing constant.
func WithK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.k = k
		}
	}
}

// New creates a fusion engine.
func New(opts ...Option) *Engine {
	e := &Engine{k: DefaultKRRF}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fuse merges the two ranked hit lists. Each source list contributes
// 1/(k+rank) per chunk; a chunk absent from a list contributes 0 for it.
// The output is sorted by descending fusion score with deterministic
// tie-breaks: smaller minimum rank first, then lexical presence over
// vector-only presence, then first-seen order. When limit > 0 the result is
// truncated to at most limit candidates.
//
// Fuse is deterministic given identical inputs: no randomness, no wall-clock
// dependence, no map-iteration dependence.
func (e *Engine) Fuse(lexical, vector []*searchbackend.ScoredHit, limit int) []*Candidate {
	index := make(map[string]*Candidate, len(lexical)+len(vector))
	candidates := make([]*Candidate, 0, len(lexical)+len(vector))

	absorb := func(hits []*searchbackend.ScoredHit, src searchbackend.Source) {
		for i, hit := range hits {
			if hit == nil || hit.Record == nil || hit.Record.ChunkID == "" {
				continue
			}
			id := hit.Record.ChunkID
			cand, ok := index[id]
			if !ok {
				cand = &Candidate{
					Record:    hit.Record,
					ChunkID:   id,
					Ranks:     make(map[searchbackend.Source]int, 2),
					firstSeen: len(candidates),
				}
				index[id] = cand
				candidates = append(candidates, cand)
			}
			if _, seen := cand.Ranks[src]; seen {
				// Duplicate chunk within one source list; only the best
				// (first) rank counts.
				continue
			}
			rank := i + 1
			cand.Ranks[src] = rank
			cand.Score += 1.0 / float64(e.k+rank)
		}
	}
	absorb(lexical, searchbackend.SourceLexical)
	absorb(vector, searchbackend.SourceVector)

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ar, br := a.minRank(), b.minRank(); ar != br {
			return ar < br
		}
		_, aLex := a.Ranks[searchbackend.SourceLexical]
		_, bLex := b.Ranks[searchbackend.SourceLexical]
		if aLex != bLex {
			return aLex
		}
		return a.firstSeen < b.firstSeen
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
