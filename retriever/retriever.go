//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package retriever issues the lexical and vector sub-queries for one
// retrieval call and joins their results.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/groundpack/groundpack/audit"
	"github.com/groundpack/groundpack/log"
	"github.com/groundpack/groundpack/searchbackend"
)

const (
	// DefaultCandidateK is the default per-source hit budget.
	DefaultCandidateK = 60
	// DefaultSubCallTimeout bounds each backend sub-call.
	DefaultSubCallTimeout = 5 * time.Second
	// DefaultMaxRetries is the default number of retries per sub-call
	// beyond the first attempt.
	DefaultMaxRetries = 1
)

// ErrAllModalitiesFailed is returned when both the lexical and the vector
// sub-call fail. A single failed modality degrades instead of failing.
var ErrAllModalitiesFailed = errors.New("retriever: all retrieval modalities failed")

// Result holds both ranked hit lists plus the sources that were unavailable
// for this call. An unavailable source contributes an empty list, never an
// error, as long as the other source survived.
type Result struct {
	Lexical []*searchbackend.ScoredHit
	Vector  []*searchbackend.ScoredHit
	// Unavailable lists modalities that failed after retries.
	Unavailable []searchbackend.Source
}

// Retriever issues the two backend sub-queries concurrently, each carrying
// the caller's groups as a mandatory filter predicate.
type Retriever struct {
	backend        searchbackend.Backend
	subCallTimeout time.Duration
	maxRetries     int
	sink           audit.Sink
}

// Option configures the Retriever.
type Option func(*Retriever)

// WithBackend sets the search backend. Required.
func WithBackend(b searchbackend.Backend) Option {
	return func(r *Retriever) {
		r.backend = b
	}
}

// WithSubCallTimeout sets the independent timeout applied to each sub-call.
func WithSubCallTimeout(d time.Duration) Option {
	return func(r *Retriever) {
		if d > 0 {
			r.subCallTimeout = d
		}
	}
}

// WithMaxRetries sets how many times a failed sub-call is retried.
func WithMaxRetries(n int) Option {
	return func(r *Retriever) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithAuditSink sets the sink receiving modality-unavailable entries.
func WithAuditSink(sink audit.Sink) Option {
	return func(r *Retriever) {
		if sink != nil {
			r.sink = sink
		}
	}
}

// New creates a Retriever.
func New(opts ...Option) *Retriever {
	r := &Retriever{
		subCallTimeout: DefaultSubCallTimeout,
		maxRetries:     DefaultMaxRetries,
		sink:           audit.NopSink{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RetrieveCandidates runs the lexical and vector sub-queries concurrently,
// each requesting up to candidateK hits filtered to the caller's groups.
//
// Empty groups fail immediately with searchbackend.ErrEmptyGroups: absence
// of groups must never be interpreted as "no restriction". If one sub-call
// fails while the other succeeds, the surviving list is returned and the
// failed source is reported in Result.Unavailable. If both fail,
// ErrAllModalitiesFailed is returned.
func (r *Retriever) RetrieveCandidates(
	ctx context.Context,
	queryText string,
	queryVector []float64,
	groups []string,
	candidateK int,
) (*Result, error) {
	if r.backend == nil {
		return nil, errors.New("retriever: backend not configured")
	}
	if len(groups) == 0 {
		return nil, searchbackend.ErrEmptyGroups
	}
	if candidateK <= 0 {
		candidateK = DefaultCandidateK
	}

	filter := &searchbackend.Filter{AllowedGroups: groups}

	var (
		wg      sync.WaitGroup
		lexHits []*searchbackend.ScoredHit
		vecHits []*searchbackend.ScoredHit
		lexErr  error
		vecErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		lexHits, lexErr = r.searchWithRetry(ctx, searchbackend.SourceLexical, func(callCtx context.Context) ([]*searchbackend.ScoredHit, error) {
			return r.backend.SearchLexical(callCtx, queryText, filter, candidateK)
		})
	}()
	go func() {
		defer wg.Done()
		// No query vector means embedding failed upstream; the vector
		// modality degrades without touching the backend.
		if len(queryVector) == 0 {
			vecErr = errors.New("retriever: no query vector")
			return
		}
		vecHits, vecErr = r.searchWithRetry(ctx, searchbackend.SourceVector, func(callCtx context.Context) ([]*searchbackend.ScoredHit, error) {
			return r.backend.SearchVector(callCtx, queryVector, filter, candidateK)
		})
	}()
	wg.Wait()

	if lexErr != nil && vecErr != nil {
		return nil, fmt.Errorf("%w: lexical: %v; vector: %v", ErrAllModalitiesFailed, lexErr, vecErr)
	}

	result := &Result{Lexical: lexHits, Vector: vecHits}
	queryHash := audit.HashQuery(queryText)
	if lexErr != nil {
		log.Warnf("retriever: lexical search unavailable, degrading: %v", lexErr)
		result.Lexical = nil
		result.Unavailable = append(result.Unavailable, searchbackend.SourceLexical)
		r.sink.Record(ctx, audit.NewEntry(
			queryHash, groups, audit.StageRetrieval, "", audit.OutcomeModalityUnavailable))
	}
	if vecErr != nil {
		log.Warnf("retriever: vector search unavailable, degrading: %v", vecErr)
		result.Vector = nil
		result.Unavailable = append(result.Unavailable, searchbackend.SourceVector)
		r.sink.Record(ctx, audit.NewEntry(
			queryHash, groups, audit.StageRetrieval, "", audit.OutcomeModalityUnavailable))
	}
	return result, nil
}

// searchWithRetry runs one sub-call under its own timeout, retrying failed
// attempts with jittered exponential backoff. Invalid-filter errors are
// permanent and never retried.
func (r *Retriever) searchWithRetry(
	ctx context.Context,
	src searchbackend.Source,
	call func(context.Context) ([]*searchbackend.ScoredHit, error),
) ([]*searchbackend.ScoredHit, error) {
	operation := func() ([]*searchbackend.ScoredHit, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.subCallTimeout)
		defer cancel()
		hits, err := call(callCtx)
		if err != nil {
			if errors.Is(err, searchbackend.ErrEmptyGroups) {
				return nil, backoff.Permanent(err)
			}
			log.Debugf("retriever: %s sub-call attempt failed: %v", src, err)
			return nil, err
		}
		return hits, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.RandomizationFactor = 0.5

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(r.maxRetries+1)),
	)
}
