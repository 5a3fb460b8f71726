//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

package reranker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundpack/groundpack/audit"
	"github.com/groundpack/groundpack/chunk"
	"github.com/groundpack/groundpack/fusion"
)

// mapScorer returns a fixed score per document text.
type mapScorer struct {
	mu     sync.Mutex
	scores map[string]float64
	calls  int
}

func (m *mapScorer) Score(_ context.Context, _, documentText string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.scores[documentText], nil
}

func (m *mapScorer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type failingScorer struct{}

func (failingScorer) Score(context.Context, string, string) (float64, error) {
	return 0, errors.New("model overloaded")
}

func fusedCand(id string, score float64) *fusion.Candidate {
	return &fusion.Candidate{
		ChunkID: id,
		Score:   score,
		Record:  &chunk.Record{ChunkID: id, DocID: "DOC", Text: "text-" + id},
	}
}

func ids(cands []*Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.ChunkID)
	}
	return out
}

func TestRerankReorders(t *testing.T) {
	scorer := &mapScorer{scores: map[string]float64{
		"text-a": 0.2,
		"text-b": 0.9,
		"text-c": 0.5,
		"text-d": 0.1,
	}}
	r := New(WithScorer(scorer))

	candidates := []*fusion.Candidate{
		fusedCand("a", 0.030),
		fusedCand("b", 0.029),
		fusedCand("c", 0.028),
		fusedCand("d", 0.027),
	}
	out, fallback, err := r.Rerank(context.Background(), "q", candidates, 40)
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(out))

	for i, c := range out {
		assert.Equal(t, i+1, c.FinalRank)
	}
	assert.InDelta(t, 0.9, out[0].Score, 1e-12)
	assert.InDelta(t, 0.029, out[0].FusionScore, 1e-12)
}

func TestRerankFloorPassthrough(t *testing.T) {
	scorer := &mapScorer{scores: map[string]float64{}}
	r := New(WithScorer(scorer), WithFloor(3))

	candidates := []*fusion.Candidate{
		fusedCand("a", 0.030),
		fusedCand("b", 0.020),
	}
	out, fallback, err := r.Rerank(context.Background(), "q", candidates, 40)
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Equal(t, []string{"a", "b"}, ids(out))
	assert.Zero(t, scorer.callCount())
}

func TestRerankCostCeiling(t *testing.T) {
	scorer := &mapScorer{scores: map[string]float64{
		"text-a": 0.1,
		"text-b": 0.8,
	}}
	r := New(WithScorer(scorer))

	candidates := []*fusion.Candidate{
		fusedCand("a", 0.030),
		fusedCand("b", 0.029),
		fusedCand("c", 0.028),
		fusedCand("d", 0.027),
	}
	out, fallback, err := r.Rerank(context.Background(), "q", candidates, 2)
	require.NoError(t, err)
	assert.False(t, fallback)
	require.Len(t, out, 4)
	assert.Equal(t, 2, scorer.callCount())

	// Scored head reordered, tail appended in fused order.
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids(out))

	// Tail scores are fusion scores scaled by the batch maximum.
	assert.InDelta(t, 0.028/0.030, out[2].Score, 1e-12)
	assert.InDelta(t, 0.027/0.030, out[3].Score, 1e-12)
}

func TestRerankFallbackOnScorerFailure(t *testing.T) {
	sink := audit.NewInMemorySink()
	r := New(WithScorer(failingScorer{}), WithAuditSink(sink))

	candidates := []*fusion.Candidate{
		fusedCand("a", 0.030),
		fusedCand("b", 0.029),
		fusedCand("c", 0.028),
		fusedCand("d", 0.027),
	}
	out, fallback, err := r.Rerank(context.Background(), "q", candidates, 40)
	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(out))

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StageRerank, entries[0].Stage)
	assert.Equal(t, audit.OutcomeRerankFallback, entries[0].Outcome)
}

func TestRerankDisabled(t *testing.T) {
	scorer := &mapScorer{scores: map[string]float64{}}
	r := New(WithScorer(scorer), WithEnabled(false))

	candidates := []*fusion.Candidate{
		fusedCand("a", 0.030),
		fusedCand("b", 0.029),
		fusedCand("c", 0.028),
		fusedCand("d", 0.027),
	}
	out, fallback, err := r.Rerank(context.Background(), "q", candidates, 40)
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(out))
	assert.Zero(t, scorer.callCount())
}

func TestRerankEmptyInput(t *testing.T) {
	r := New(WithScorer(&mapScorer{}))
	out, fallback, err := r.Rerank(context.Background(), "q", nil, 40)
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Empty(t, out)
}

func TestPassthroughScaling(t *testing.T) {
	candidates := []*fusion.Candidate{
		fusedCand("a", 0.032),
		fusedCand("b", 0.016),
	}
	out := Passthrough(candidates)
	require.Len(t, out, 2)
	assert.InDelta(t, 1.0, out[0].Score, 1e-12)
	assert.InDelta(t, 0.5, out[1].Score, 1e-12)
	assert.Equal(t, 1, out[0].FinalRank)
	assert.Equal(t, 2, out[1].FinalRank)
}

func TestPassthroughAllZeroScores(t *testing.T) {
	out := Passthrough([]*fusion.Candidate{fusedCand("a", 0)})
	require.Len(t, out, 1)
	assert.Zero(t, out[0].Score)
}
