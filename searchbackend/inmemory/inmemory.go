//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-process search backend for tests and
// local development. Lexical scoring is a simple term-overlap measure and
// vector scoring is cosine similarity, both with deterministic ordering.
package inmemory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/groundpack/groundpack/chunk"
	"github.com/groundpack/groundpack/searchbackend"
)

// Backend implements searchbackend.Backend over an in-process map.
type Backend struct {
	mu      sync.RWMutex
	records map[string]*chunk.Record
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{records: make(map[string]*chunk.Record)}
}

// Add indexes a record. Records with an empty ACL are stored but never
// returned by searches.
func (b *Backend) Add(records ...*chunk.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range records {
		if rec == nil || rec.ChunkID == "" {
			continue
		}
		b.records[rec.ChunkID] = rec
	}
}

// Len returns the number of indexed records.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// SearchLexical implements searchbackend.Backend.
func (b *Backend) SearchLexical(ctx context.Context, queryText string, filter *searchbackend.Filter, topK int) ([]*searchbackend.ScoredHit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := tokenize(queryText)
	return b.collect(filter, topK, searchbackend.SourceLexical, func(rec *chunk.Record) float64 {
		return overlapScore(terms, tokenize(rec.Text))
	}), nil
}

// SearchVector implements searchbackend.Backend.
func (b *Backend) SearchVector(ctx context.Context, queryVector []float64, filter *searchbackend.Filter, topK int) ([]*searchbackend.ScoredHit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.collect(filter, topK, searchbackend.SourceVector, func(rec *chunk.Record) float64 {
		return cosineSimilarity(queryVector, rec.Embedding)
	}), nil
}

// collect scores every admissible record and returns the topK best hits.
func (b *Backend) collect(filter *searchbackend.Filter, topK int, src searchbackend.Source, score func(*chunk.Record) float64) []*searchbackend.ScoredHit {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hits := make([]*searchbackend.ScoredHit, 0, len(b.records))
	for _, rec := range b.records {
		if !rec.GroupsIntersect(filter.AllowedGroups) {
			continue
		}
		if !tagsMatch(rec, filter.Tags) {
			continue
		}
		s := score(rec)
		if s <= 0 {
			continue
		}
		hits = append(hits, &searchbackend.ScoredHit{Record: rec, Score: s, Source: src})
	}

	// Tie-break on chunk ID so repeated searches are reproducible.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.ChunkID < hits[j].Record.ChunkID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func tagsMatch(rec *chunk.Record, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(rec.Tags))
	for _, t := range rec.Tags {
		have[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := have[t]; ok {
			return true
		}
	}
	return false
}

func tokenize(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?()[]{}\"'")
		if tok == "" {
			continue
		}
		counts[tok]++
	}
	return counts
}

// overlapScore counts query terms present in the document, weighted by
// document term frequency.
func overlapScore(query, doc map[string]int) float64 {
	var score float64
	for term := range query {
		if n, ok := doc[term]; ok {
			score += 1 + math.Log(float64(n))
		}
	}
	return score
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
