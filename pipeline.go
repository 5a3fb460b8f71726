//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

package groundpack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/groundpack/groundpack/assembler"
	"github.com/groundpack/groundpack/audit"
	"github.com/groundpack/groundpack/embedder"
	"github.com/groundpack/groundpack/fusion"
	"github.com/groundpack/groundpack/log"
	"github.com/groundpack/groundpack/reranker"
	"github.com/groundpack/groundpack/retriever"
	"github.com/groundpack/groundpack/searchbackend"
	"github.com/groundpack/groundpack/tokencount"
	"github.com/groundpack/groundpack/trimmer"
)

var tracer = otel.Tracer("github.com/groundpack/groundpack")

// DefaultOverallTimeout bounds one whole retrieve call.
const DefaultOverallTimeout = 30 * time.Second

// Options enumerates every recognized pipeline knob. The struct is
// validated once at construction; per-call overrides re-validate the
// affected fields.
type Options struct {
	// CandidateK is the per-source hit budget for retrieval and the cap
	// on fused candidates.
	CandidateK int
	// KRRF is the reciprocal-rank fusion smoothing constant.
	KRRF int
	// FinalContextChunks bounds how many chunks a pack may hold.
	FinalContextChunks int
	// TokenBudget bounds the estimator sum over selected chunks.
	TokenBudget int
	// RerankEnabled toggles cross-encoder reranking.
	RerankEnabled bool
	// MaxToScore is the rerank cost ceiling.
	MaxToScore int
	// RerankFloor is the candidate count at or below which reranking is
	// skipped.
	RerankFloor int
	// RerankConcurrency is how many scoring calls run in parallel.
	RerankConcurrency int
	// Diversify enables the per-document cap during assembly.
	Diversify bool
	// OverallTimeout bounds the whole retrieve call.
	OverallTimeout time.Duration
	// SubCallTimeout bounds each backend sub-call.
	SubCallTimeout time.Duration
	// MaxRetries is how many times a failed backend sub-call is retried.
	MaxRetries int
}

// DefaultOptions returns the default pipeline options.
func DefaultOptions() Options {
	return Options{
		CandidateK:         retriever.DefaultCandidateK,
		KRRF:               fusion.DefaultKRRF,
		FinalContextChunks: assembler.DefaultFinalContextChunks,
		TokenBudget:        assembler.DefaultTokenBudget,
		RerankEnabled:      true,
		MaxToScore:         reranker.DefaultMaxToScore,
		RerankFloor:        reranker.DefaultFloor,
		RerankConcurrency:  reranker.DefaultConcurrency,
		Diversify:          true,
		OverallTimeout:     DefaultOverallTimeout,
		SubCallTimeout:     retriever.DefaultSubCallTimeout,
		MaxRetries:         retriever.DefaultMaxRetries,
	}
}

func (o *Options) validate() error {
	if o.CandidateK <= 0 {
		return fmt.Errorf("%w: candidate_k must be positive", ErrInvalidQuery)
	}
	if o.KRRF <= 0 {
		return fmt.Errorf("%w: k_rrf must be positive", ErrInvalidQuery)
	}
	if o.FinalContextChunks <= 0 {
		return fmt.Errorf("%w: final_context_chunks must be positive", ErrInvalidQuery)
	}
	if o.TokenBudget <= 0 {
		return fmt.Errorf("%w: token_budget must be positive", ErrInvalidQuery)
	}
	if o.MaxToScore <= 0 {
		return fmt.Errorf("%w: max_to_score must be positive", ErrInvalidQuery)
	}
	if o.RerankFloor < 0 {
		return fmt.Errorf("%w: rerank floor must not be negative", ErrInvalidQuery)
	}
	return nil
}

// Pipeline wires hybrid retrieval, fusion, trimming, reranking, and pack
// assembly into one retrieve call. It is immutable after construction and
// safe for concurrent use.
type Pipeline struct {
	embedder  embedder.Embedder
	retriever *retriever.Retriever
	fuser     *fusion.Engine
	trimmer   *trimmer.Trimmer
	reranker  *reranker.Reranker
	assembler *assembler.Assembler
	sink      audit.Sink
	opts      Options
}

// Option configures the Pipeline at construction time.
type Option func(*pipelineConfig)

type pipelineConfig struct {
	backend   searchbackend.Backend
	embedder  embedder.Embedder
	scorer    reranker.Scorer
	estimator tokencount.Estimator
	sink      audit.Sink
	opts      Options
}

// WithBackend sets the search backend. Required.
func WithBackend(b searchbackend.Backend) Option {
	return func(c *pipelineConfig) {
		c.backend = b
	}
}

// WithEmbedder sets the embedding client. Required.
func WithEmbedder(e embedder.Embedder) Option {
	return func(c *pipelineConfig) {
		c.embedder = e
	}
}

// WithScorer sets the rerank relevance model adapter. Without a scorer the
// reranker is a pass-through.
func WithScorer(s reranker.Scorer) Option {
	return func(c *pipelineConfig) {
		c.scorer = s
	}
}

// WithTokenEstimator sets the token estimator used for budgeting.
func WithTokenEstimator(e tokencount.Estimator) Option {
	return func(c *pipelineConfig) {
		c.estimator = e
	}
}

// WithAuditSink sets the sink receiving drop and degradation records.
func WithAuditSink(s audit.Sink) Option {
	return func(c *pipelineConfig) {
		c.sink = s
	}
}

// WithOptions replaces the default pipeline options.
func WithOptions(opts Options) Option {
	return func(c *pipelineConfig) {
		c.opts = opts
	}
}

// New creates a Pipeline. The backend and embedder are required; every
// option knob is validated here, not re-read per call.
func New(opts ...Option) (*Pipeline, error) {
	cfg := &pipelineConfig{
		estimator: tokencount.NewHeuristic(tokencount.DefaultCharsPerToken),
		sink:      audit.NopSink{},
		opts:      DefaultOptions(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.backend == nil {
		return nil, errors.New("groundpack: search backend not configured")
	}
	if cfg.embedder == nil {
		return nil, errors.New("groundpack: embedder not configured")
	}
	if err := cfg.opts.validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		embedder: cfg.embedder,
		retriever: retriever.New(
			retriever.WithBackend(cfg.backend),
			retriever.WithSubCallTimeout(cfg.opts.SubCallTimeout),
			retriever.WithMaxRetries(cfg.opts.MaxRetries),
			retriever.WithAuditSink(cfg.sink),
		),
		fuser: fusion.New(fusion.WithK(cfg.opts.KRRF)),
		trimmer: trimmer.New(
			trimmer.WithAuditSink(cfg.sink),
		),
		reranker: reranker.New(
			reranker.WithScorer(cfg.scorer),
			reranker.WithFloor(cfg.opts.RerankFloor),
			reranker.WithConcurrency(cfg.opts.RerankConcurrency),
			reranker.WithAuditSink(cfg.sink),
		),
		assembler: assembler.New(
			assembler.WithEstimator(cfg.estimator),
			assembler.WithDiversify(cfg.opts.Diversify),
		),
		sink: cfg.sink,
		opts: cfg.opts,
	}
	return p, nil
}

// RetrieveOption overrides one pipeline knob for a single call.
type RetrieveOption func(*Options)

// WithCandidateK overrides the per-source hit budget.
func WithCandidateK(k int) RetrieveOption {
	return func(o *Options) {
		o.CandidateK = k
	}
}

// WithFinalContextChunks overrides the pack chunk bound.
func WithFinalContextChunks(n int) RetrieveOption {
	return func(o *Options) {
		o.FinalContextChunks = n
	}
}

// WithTokenBudget overrides the pack token bound.
func WithTokenBudget(n int) RetrieveOption {
	return func(o *Options) {
		o.TokenBudget = n
	}
}

// WithRerankEnabled overrides the rerank toggle.
func WithRerankEnabled(enabled bool) RetrieveOption {
	return func(o *Options) {
		o.RerankEnabled = enabled
	}
}

// WithMaxToScore overrides the rerank cost ceiling.
func WithMaxToScore(n int) RetrieveOption {
	return func(o *Options) {
		o.MaxToScore = n
	}
}

// Retrieve converts a query plus the caller's group memberships into a
// grounding pack. The stages run strictly in order: concurrent hybrid
// retrieval, fusion, ACL trimming, reranking, assembly. A failed call
// yields no partial grounding content.
func (p *Pipeline) Retrieve(ctx context.Context, queryText string, groups []string, opts ...RetrieveOption) (*GroundingPack, error) {
	callOpts := p.opts
	for _, opt := range opts {
		opt(&callOpts)
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, fmt.Errorf("%w: query text is empty", ErrInvalidQuery)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: allowed groups are empty", ErrInvalidQuery)
	}
	if err := callOpts.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, callOpts.OverallTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "groundpack.retrieve")
	defer span.End()

	var degradations []string
	var trace []TraceEntry

	// Embed the query. A failed embedding degrades to lexical-only
	// retrieval instead of failing the call.
	queryVector, err := p.embedder.GetEmbedding(ctx, queryText)
	if err != nil {
		if timedOut(ctx) {
			return nil, fmt.Errorf("%w: embedding query", ErrTimeout)
		}
		log.Warnf("pipeline: query embedding failed, degrading to lexical-only: %v", err)
		degradations = append(degradations, DegradationEmbeddingFailed)
		queryVector = nil
	}

	// Hybrid retrieval: both sub-queries concurrently, each ACL-filtered
	// at the backend.
	res, err := p.retriever.RetrieveCandidates(ctx, queryText, queryVector, groups, callOpts.CandidateK)
	if err != nil {
		switch {
		case timedOut(ctx):
			return nil, fmt.Errorf("%w: retrieval", ErrTimeout)
		case errors.Is(err, searchbackend.ErrEmptyGroups):
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		case errors.Is(err, retriever.ErrAllModalitiesFailed):
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	for _, src := range res.Unavailable {
		switch src {
		case searchbackend.SourceLexical:
			degradations = append(degradations, DegradationLexicalUnavailable)
		case searchbackend.SourceVector:
			degradations = append(degradations, DegradationVectorUnavailable)
		}
	}
	for i, hit := range res.Lexical {
		trace = append(trace, TraceEntry{Stage: TraceStageLexical, ChunkID: hit.Record.ChunkID, Rank: i + 1, Score: hit.Score})
	}
	for i, hit := range res.Vector {
		trace = append(trace, TraceEntry{Stage: TraceStageVector, ChunkID: hit.Record.ChunkID, Rank: i + 1, Score: hit.Score})
	}

	// Fusion, trimming, and assembly are pure computations over fetched
	// data; trimming runs before reranking so rerank budget is never
	// spent on candidates that would be denied.
	queryHash := audit.HashQuery(queryText)
	fused := p.fuser.Fuse(res.Lexical, res.Vector, callOpts.CandidateK)
	for i, cand := range fused {
		trace = append(trace, TraceEntry{Stage: TraceStageFused, ChunkID: cand.ChunkID, Rank: i + 1, Score: cand.Score})
	}

	trimmed := p.trimmer.Trim(ctx, fused, groups, queryHash)
	for i, cand := range trimmed {
		trace = append(trace, TraceEntry{Stage: TraceStageTrimmed, ChunkID: cand.ChunkID, Rank: i + 1, Score: cand.Score})
	}

	var reranked []*reranker.Candidate
	if callOpts.RerankEnabled {
		var fallbackUsed bool
		reranked, fallbackUsed, err = p.reranker.Rerank(ctx, queryText, trimmed, callOpts.MaxToScore)
		if err != nil {
			log.Warnf("pipeline: rerank failed, using fusion order: %v", err)
			reranked = reranker.Passthrough(trimmed)
			fallbackUsed = true
		}
		if fallbackUsed {
			degradations = append(degradations, DegradationRerankFallback)
		}
	} else {
		reranked = reranker.Passthrough(trimmed)
	}
	if timedOut(ctx) {
		return nil, fmt.Errorf("%w: reranking", ErrTimeout)
	}
	for _, cand := range reranked {
		trace = append(trace, TraceEntry{Stage: TraceStageRerank, ChunkID: cand.ChunkID, Rank: cand.FinalRank, Score: cand.Score})
	}

	asm := p.assembler.Assemble(reranked, callOpts.FinalContextChunks, callOpts.TokenBudget)

	pack := &GroundingPack{
		Query:        queryText,
		Groups:       groups,
		TokenCount:   asm.TokenCount,
		Truncated:    asm.Truncated,
		Degradations: degradations,
	}
	for i, sel := range asm.Selections {
		rec := sel.Candidate.Record
		pack.Chunks = append(pack.Chunks, &PackChunk{
			ChunkID:     rec.ChunkID,
			DocID:       rec.DocID,
			Rev:         rec.Rev,
			Page:        rec.Page,
			SectionPath: rec.SectionPath,
			Text:        rec.Text,
			SourceURL:   rec.SourceURL,
			Citation:    rec.Citation(),
			Score:       sel.Candidate.Score,
			Tokens:      sel.Tokens,
		})
		trace = append(trace, TraceEntry{Stage: TraceStageSelect, ChunkID: rec.ChunkID, Rank: i + 1, Score: sel.Candidate.Score})
	}
	pack.Trace = trace

	span.SetAttributes(
		attribute.Int("groundpack.hits.lexical", len(res.Lexical)),
		attribute.Int("groundpack.hits.vector", len(res.Vector)),
		attribute.Int("groundpack.candidates.fused", len(fused)),
		attribute.Int("groundpack.candidates.trimmed", len(trimmed)),
		attribute.Int("groundpack.chunks.selected", len(pack.Chunks)),
		attribute.Int("groundpack.tokens", pack.TokenCount),
		attribute.Bool("groundpack.truncated", pack.Truncated),
	)
	if len(degradations) > 0 {
		span.AddEvent("degraded", oteltrace.WithAttributes(
			attribute.StringSlice("groundpack.degradations", degradations),
		))
	}
	return pack, nil
}

// timedOut reports whether the call's deadline has passed.
func timedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}
