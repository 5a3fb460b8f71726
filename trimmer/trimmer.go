//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package trimmer re-validates candidate ACLs after retrieval. The backend
// already filters on allowed_groups; this second check defends against
// stale or misconfigured backend filters. Ambiguity resolves to denial.
package trimmer

import (
	"context"

	"github.com/groundpack/groundpack/audit"
	"github.com/groundpack/groundpack/fusion"
	"github.com/groundpack/groundpack/log"
)

// Trimmer drops fused candidates whose ACL does not intersect the caller's
// groups. Trimming runs before reranking so rerank budget is never spent on
// candidates that would be denied anyway.
type Trimmer struct {
	sink audit.Sink
}

// Option configures the Trimmer.
type Option func(*Trimmer)

// WithAuditSink sets the sink receiving dropped-candidate entries.
func WithAuditSink(sink audit.Sink) Option {
	return func(t *Trimmer) {
		if sink != nil {
			t.sink = sink
		}
	}
}

// New creates a Trimmer.
func New(opts ...Option) *Trimmer {
	t := &Trimmer{sink: audit.NopSink{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Trim returns the candidates whose chunk ACL intersects groups, preserving
// input order. Violations are dropped and audited, never surfaced as errors.
// A candidate whose record is missing fails closed: it is dropped and
// audited rather than admitted.
func (t *Trimmer) Trim(ctx context.Context, candidates []*fusion.Candidate, groups []string, queryHash string) []*fusion.Candidate {
	kept := make([]*fusion.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand == nil {
			continue
		}
		if cand.Record == nil {
			log.Warnf("trimmer: candidate %s has no record, dropping", cand.ChunkID)
			t.sink.Record(ctx, audit.NewEntry(
				queryHash, groups, audit.StageTrim, cand.ChunkID, audit.OutcomeRecordLookupFailed))
			continue
		}
		if !cand.Record.GroupsIntersect(groups) {
			log.Warnf("trimmer: candidate %s failed ACL re-check, dropping", cand.ChunkID)
			t.sink.Record(ctx, audit.NewEntry(
				queryHash, groups, audit.StageTrim, cand.ChunkID, audit.OutcomeACLViolationPostBackend))
			continue
		}
		kept = append(kept, cand)
	}
	return kept
}
