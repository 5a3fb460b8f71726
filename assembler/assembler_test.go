//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

package assembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundpack/groundpack/chunk"
	"github.com/groundpack/groundpack/reranker"
)

// fixedEstimator charges the same token count for every chunk.
type fixedEstimator struct{ tokens int }

func (f fixedEstimator) EstimateTokens(string) int { return f.tokens }

func cand(id, docID string, section ...string) *reranker.Candidate {
	return &reranker.Candidate{
		ChunkID: id,
		Record: &chunk.Record{
			ChunkID:     id,
			DocID:       docID,
			Rev:         "A",
			SectionPath: section,
			Text:        strings.Repeat("x", 40),
		},
	}
}

func TestAssembleChunkBound(t *testing.T) {
	a := New(WithEstimator(fixedEstimator{tokens: 1}))
	candidates := []*reranker.Candidate{
		cand("c1", "D1", "1"),
		cand("c2", "D2", "1"),
		cand("c3", "D3", "1"),
	}
	res := a.Assemble(candidates, 2, 1000)
	require.Len(t, res.Selections, 2)
	assert.True(t, res.Truncated)
	assert.Equal(t, 2, res.TokenCount)
	assert.Equal(t, "c1", res.Selections[0].Candidate.ChunkID)
	assert.Equal(t, "c2", res.Selections[1].Candidate.ChunkID)
}

func TestAssembleTokenBudget(t *testing.T) {
	a := New(WithEstimator(fixedEstimator{tokens: 400}))
	candidates := []*reranker.Candidate{
		cand("c1", "D1", "1"),
		cand("c2", "D2", "1"),
		cand("c3", "D3", "1"),
	}
	res := a.Assemble(candidates, 8, 1000)
	require.Len(t, res.Selections, 2)
	assert.True(t, res.Truncated)
	assert.Equal(t, 800, res.TokenCount)
}

func TestAssembleDedupBySection(t *testing.T) {
	a := New(WithEstimator(fixedEstimator{tokens: 1}))
	candidates := []*reranker.Candidate{
		cand("c1", "D1", "3", "3.2"),
		cand("c2", "D1", "3", "3.2"), // same section, lower rank
		cand("c3", "D1", "4"),
	}
	res := a.Assemble(candidates, 8, 1000)
	require.Len(t, res.Selections, 2)
	assert.Equal(t, "c1", res.Selections[0].Candidate.ChunkID)
	assert.Equal(t, "c3", res.Selections[1].Candidate.ChunkID)
	// A dedup skip is not a qualifying candidate left out.
	assert.False(t, res.Truncated)
}

func TestAssembleDiversityCap(t *testing.T) {
	a := New(WithEstimator(fixedEstimator{tokens: 1}))
	// Six chunks from one document, distinct sections. With a bound of 6
	// the per-document cap is max(2, 6/3) = 2.
	candidates := []*reranker.Candidate{
		cand("c1", "D1", "1"),
		cand("c2", "D1", "2"),
		cand("c3", "D1", "3"),
		cand("c4", "D2", "1"),
	}
	res := a.Assemble(candidates, 6, 1000)
	require.Len(t, res.Selections, 3)
	assert.Equal(t, "c1", res.Selections[0].Candidate.ChunkID)
	assert.Equal(t, "c2", res.Selections[1].Candidate.ChunkID)
	assert.Equal(t, "c4", res.Selections[2].Candidate.ChunkID)
	assert.False(t, res.Truncated)
}

func TestAssembleDiversityDisabled(t *testing.T) {
	a := New(WithEstimator(fixedEstimator{tokens: 1}), WithDiversify(false))
	candidates := []*reranker.Candidate{
		cand("c1", "D1", "1"),
		cand("c2", "D1", "2"),
		cand("c3", "D1", "3"),
	}
	res := a.Assemble(candidates, 8, 1000)
	assert.Len(t, res.Selections, 3)
}

func TestAssembleOversizedChunkTruncates(t *testing.T) {
	a := New(WithEstimator(fixedEstimator{tokens: 5000}))
	res := a.Assemble([]*reranker.Candidate{cand("c1", "D1", "1")}, 8, 1000)
	assert.Empty(t, res.Selections)
	assert.True(t, res.Truncated)
	assert.Zero(t, res.TokenCount)
}

func TestAssembleEmptyInput(t *testing.T) {
	res := New().Assemble(nil, 8, 1000)
	assert.Empty(t, res.Selections)
	assert.False(t, res.Truncated)
}

func TestAssembleSkipsBrokenCandidates(t *testing.T) {
	a := New(WithEstimator(fixedEstimator{tokens: 1}))
	res := a.Assemble([]*reranker.Candidate{nil, {ChunkID: "norec"}, cand("c1", "D1", "1")}, 8, 1000)
	require.Len(t, res.Selections, 1)
	assert.Equal(t, "c1", res.Selections[0].Candidate.ChunkID)
}

func TestAssembleDefaultHeuristicEstimator(t *testing.T) {
	a := New()
	res := a.Assemble([]*reranker.Candidate{cand("c1", "D1", "1")}, 8, 1000)
	require.Len(t, res.Selections, 1)
	// 40 chars at 4 chars per token.
	assert.Equal(t, 10, res.Selections[0].Tokens)
	assert.Equal(t, 10, res.TokenCount)
}
