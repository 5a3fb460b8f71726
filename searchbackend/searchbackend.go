//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package searchbackend defines the capability interface for the search
// engine executing lexical and vector queries over indexed chunk records.
package searchbackend

import (
	"context"
	"errors"

	"github.com/groundpack/groundpack/chunk"
)

// Source tags which retrieval modality produced a hit.
type Source string

const (
	// SourceLexical marks hits from the BM25-style keyword query.
	SourceLexical Source = "lexical"
	// SourceVector marks hits from the dense-vector similarity query.
	SourceVector Source = "vector"
)

// ErrEmptyGroups is returned when a query arrives without caller groups.
// Absence of groups is never interpreted as "no restriction".
var ErrEmptyGroups = errors.New("searchbackend: allowed groups must not be empty")

// Filter constrains a backend query. AllowedGroups is mandatory: the backend
// must only return records whose ACL intersects it.
type Filter struct {
	// AllowedGroups is the caller's group set. Must be non-empty.
	AllowedGroups []string
	// Tags optionally narrows results to records carrying any of the tags.
	Tags []string
}

// Validate checks that the filter fails closed.
func (f *Filter) Validate() error {
	if f == nil || len(f.AllowedGroups) == 0 {
		return ErrEmptyGroups
	}
	return nil
}

// ScoredHit wraps a chunk record with the relevance score assigned by one
// retrieval modality. Score semantics are source specific: BM25-style for
// lexical, cosine/dot-product similarity for vector. Hits exist only within
// one retrieval call.
type ScoredHit struct {
	Record *chunk.Record
	Score  float64
	Source Source
}

// Backend executes lexical and vector queries against the chunk index.
// Implementations are stateless client handles safe for concurrent use.
type Backend interface {
	// SearchLexical runs a keyword relevance query, returning at most topK
	// hits ranked by descending lexical score.
	SearchLexical(ctx context.Context, queryText string, filter *Filter, topK int) ([]*ScoredHit, error)

	// SearchVector runs a dense-vector similarity query, returning at most
	// topK hits ranked by descending similarity.
	SearchVector(ctx context.Context, queryVector []float64, filter *Filter, topK int) ([]*ScoredHit, error)
}
