//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package embedder defines the embedding client capability used to convert
// query text into a dense vector.
package embedder

import "context"

// Embedder converts text into a fixed-length vector in the same space as the
// vectors stored on indexed chunk records.
type Embedder interface {
	// GetEmbedding returns the embedding vector for the given text.
	GetEmbedding(ctx context.Context, text string) ([]float64, error)

	// GetDimensions returns the dimensionality of produced vectors.
	GetDimensions() int
}
