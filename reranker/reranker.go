//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package reranker re-scores fused candidates with a cross-encoder-style
// relevance model under a hard cost ceiling.
package reranker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/groundpack/groundpack/audit"
	"github.com/groundpack/groundpack/chunk"
	"github.com/groundpack/groundpack/fusion"
	"github.com/groundpack/groundpack/log"
)

const (
	// DefaultMaxToScore is the default cost ceiling: at most this many
	// candidates are sent to the relevance model per call.
	DefaultMaxToScore = 40
	// DefaultFloor is the candidate count at or below which reranking is
	// skipped and fusion order passes through.
	DefaultFloor = 3
	// DefaultConcurrency is how many scoring calls may run at once.
	DefaultConcurrency = 8
	// DefaultScoreTimeout bounds the whole scoring phase of one call.
	DefaultScoreTimeout = 10 * time.Second
)

// Scorer is the relevance model capability. Implementations may be hosted
// cross-encoder APIs or local models; the reranker works identically over
// either. Score must tolerate empty or very short document text.
type Scorer interface {
	Score(ctx context.Context, queryText, documentText string) (float64, error)
}

// Candidate is a chunk after reranking. Score is on the relevance model's
// scale, independent from the fusion scale.
type Candidate struct {
	Record      *chunk.Record
	ChunkID     string
	Score       float64
	FusionScore float64
	// FinalRank is the 1-based position in the reranked order.
	FinalRank int
}

// Reranker orders candidates by cross-encoder relevance.
type Reranker struct {
	scorer       Scorer
	enabled      bool
	floor        int
	concurrency  int
	scoreTimeout time.Duration
	sink         audit.Sink
}

// Option configures the Reranker.
type Option func(*Reranker)

// WithScorer sets the relevance model adapter and enables reranking.
func WithScorer(s Scorer) Option {
	return func(r *Reranker) {
		r.scorer = s
		r.enabled = s != nil
	}
}

// WithEnabled toggles reranking. Disabled reranking is a pass-through.
func WithEnabled(enabled bool) Option {
	return func(r *Reranker) {
		r.enabled = enabled
	}
}

// WithFloor sets the pass-through floor.
func WithFloor(floor int) Option {
	return func(r *Reranker) {
		if floor >= 0 {
			r.floor = floor
		}
	}
}

// WithConcurrency sets how many scoring calls run in parallel.
func WithConcurrency(n int) Option {
	return func(r *Reranker) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithScoreTimeout bounds the scoring phase of one rerank call.
func WithScoreTimeout(d time.Duration) Option {
	return func(r *Reranker) {
		if d > 0 {
			r.scoreTimeout = d
		}
	}
}

// WithAuditSink sets the sink receiving fallback entries.
func WithAuditSink(sink audit.Sink) Option {
	return func(r *Reranker) {
		if sink != nil {
			r.sink = sink
		}
	}
}

// New creates a Reranker.
func New(opts ...Option) *Reranker {
	r := &Reranker{
		floor:        DefaultFloor,
		concurrency:  DefaultConcurrency,
		scoreTimeout: DefaultScoreTimeout,
		sink:         audit.NopSink{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank scores the top maxToScore candidates by fusion order and re-orders
// them by relevance; candidates beyond the ceiling are appended after the
// reranked head in their original fused order, deprioritized but never
// dropped.
//
// When reranking is disabled, the candidate count is at or below the floor,
// or the relevance model fails, the fused order passes through with fusion
// scores scaled into the rerank scale; fallbackUsed reports that case so the
// orchestrator can attach the degradation to the result.
func (r *Reranker) Rerank(
	ctx context.Context,
	queryText string,
	candidates []*fusion.Candidate,
	maxToScore int,
) (reranked []*Candidate, fallbackUsed bool, err error) {
	if len(candidates) == 0 {
		return nil, false, nil
	}
	if maxToScore <= 0 {
		maxToScore = DefaultMaxToScore
	}

	if !r.enabled || r.scorer == nil || len(candidates) <= r.floor {
		return Passthrough(candidates), false, nil
	}

	head := candidates
	var tail []*fusion.Candidate
	if len(candidates) > maxToScore {
		head = candidates[:maxToScore]
		tail = candidates[maxToScore:]
	}

	scores, scoreErr := r.scoreHead(ctx, queryText, head)
	if scoreErr != nil {
		log.Warnf("reranker: scoring failed, falling back to fusion order: %v", scoreErr)
		r.sink.Record(ctx, audit.NewEntry(
			audit.HashQuery(queryText), nil, audit.StageRerank, "", audit.OutcomeRerankFallback))
		return Passthrough(candidates), true, nil
	}

	out := make([]*Candidate, 0, len(candidates))
	for i, cand := range head {
		out = append(out, &Candidate{
			Record:      cand.Record,
			ChunkID:     cand.ChunkID,
			Score:       scores[i],
			FusionScore: cand.Score,
		})
	}
	// Ties keep fused order; SliceStable makes that reproducible.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	scale := fusionScale(candidates)
	for _, cand := range tail {
		out = append(out, &Candidate{
			Record:      cand.Record,
			ChunkID:     cand.ChunkID,
			Score:       cand.Score / scale,
			FusionScore: cand.Score,
		})
	}

	for i, cand := range out {
		cand.FinalRank = i + 1
	}
	return out, false, nil
}

// scoreHead scores every head candidate concurrently. Any scoring failure
// fails the whole phase so the caller can fall back.
func (r *Reranker) scoreHead(ctx context.Context, queryText string, head []*fusion.Candidate) ([]float64, error) {
	scoreCtx, cancel := context.WithTimeout(ctx, r.scoreTimeout)
	defer cancel()

	poolSize := r.concurrency
	if len(head) < poolSize {
		poolSize = len(head)
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	scores := make([]float64, len(head))
	errCh := make(chan error, len(head))
	var wg sync.WaitGroup

	for i, cand := range head {
		wg.Add(1)
		idx, c := i, cand
		task := func() {
			defer wg.Done()
			text := ""
			if c.Record != nil {
				text = c.Record.Text
			}
			s, err := r.scorer.Score(scoreCtx, queryText, text)
			if err != nil {
				errCh <- err
				cancel()
				return
			}
			scores[idx] = s
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			errCh <- err
		}
	}

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}
	return scores, nil
}

// Passthrough preserves fusion order, mapping fusion scores into the rerank
// scale by dividing by the batch maximum so the top candidate scores 1.0.
// This is a documented fallback, not a true rerank.
func Passthrough(candidates []*fusion.Candidate) []*Candidate {
	scale := fusionScale(candidates)
	out := make([]*Candidate, 0, len(candidates))
	for i, cand := range candidates {
		out = append(out, &Candidate{
			Record:      cand.Record,
			ChunkID:     cand.ChunkID,
			Score:       cand.Score / scale,
			FusionScore: cand.Score,
			FinalRank:   i + 1,
		})
	}
	return out
}

// fusionScale returns the maximum fusion score of the batch, or 1 when the
// batch is empty or all-zero so division stays safe.
func fusionScale(candidates []*fusion.Candidate) float64 {
	max := 0.0
	for _, cand := range candidates {
		if cand.Score > max {
			max = cand.Score
		}
	}
	if max == 0 {
		return 1
	}
	return max
}
