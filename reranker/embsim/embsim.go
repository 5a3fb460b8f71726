//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package embsim scores query/document pairs by cosine similarity between
// fresh embeddings. A cheap local alternative when no cross-encoder service
// is available.
package embsim

import (
	"context"
	"fmt"
	"math"

	"github.com/groundpack/groundpack/embedder"
	"github.com/groundpack/groundpack/reranker"
)

// Verify that Scorer implements the reranker.Scorer interface.
var _ reranker.Scorer = (*Scorer)(nil)

// Scorer implements reranker.Scorer using an embedding client.
type Scorer struct {
	embedder embedder.Embedder
}

// New creates an embedding-similarity scorer.
func New(e embedder.Embedder) *Scorer {
	return &Scorer{embedder: e}
}

// Score implements the reranker.Scorer interface. Empty document text
// scores zero without calling the embedder.
func (s *Scorer) Score(ctx context.Context, queryText, documentText string) (float64, error) {
	if s.embedder == nil {
		return 0, fmt.Errorf("embsim: embedder not configured")
	}
	if documentText == "" {
		return 0, nil
	}
	queryVec, err := s.embedder.GetEmbedding(ctx, queryText)
	if err != nil {
		return 0, fmt.Errorf("embsim embed query: %w", err)
	}
	docVec, err := s.embedder.GetEmbedding(ctx, documentText)
	if err != nil {
		return 0, fmt.Errorf("embsim embed document: %w", err)
	}
	return cosineSimilarity(queryVec, docVec), nil
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
