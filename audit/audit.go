//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package audit records dropped-candidate and degradation decisions made by
// the retrieval pipeline. Sinks are append-only; the core never reads back.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/groundpack/groundpack/log"
)

// Pipeline stages that emit audit entries.
const (
	StageRetrieval = "retrieval"
	StageTrim      = "trim"
	StageRerank    = "rerank"
	StageAssemble  = "assemble"
)

// Outcomes recorded on audit entries.
const (
	OutcomeACLViolationPostBackend = "acl_violation_post_backend"
	OutcomeRecordLookupFailed      = "record_lookup_failed"
	OutcomeModalityUnavailable     = "modality_unavailable"
	OutcomeRerankFallback          = "rerank_fallback"
)

// Entry is one structured audit record.
type Entry struct {
	ID        string
	Timestamp time.Time
	QueryHash string
	Groups    []string
	Stage     string
	ChunkID   string
	Outcome   string
}

// Sink accepts audit entries. Implementations must be safe for concurrent
// use and must not block the pipeline for long.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

// HashQuery returns a stable short hash of the query text, so audit records
// never carry raw query content.
func HashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:8])
}

// NewEntry builds an entry with a fresh ID and timestamp.
func NewEntry(queryHash string, groups []string, stage, chunkID, outcome string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		QueryHash: queryHash,
		Groups:    groups,
		Stage:     stage,
		ChunkID:   chunkID,
		Outcome:   outcome,
	}
}

// InMemorySink collects entries in memory. Intended for tests.
type InMemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewInMemorySink creates an empty in-memory sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

// Record implements the Sink interface.
func (s *InMemorySink) Record(_ context.Context, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (s *InMemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// LogSink writes entries to the process log.
type LogSink struct {
	logger log.Logger
}

// NewLogSink creates a sink backed by the given logger. A nil logger uses
// the package default.
func NewLogSink(logger log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default
	}
	return &LogSink{logger: logger}
}

// Record implements the Sink interface.
func (s *LogSink) Record(_ context.Context, entry Entry) {
	s.logger.Warnf("audit: stage=%s outcome=%s chunk=%s query=%s groups=%v",
		entry.Stage, entry.Outcome, entry.ChunkID, entry.QueryHash, entry.Groups)
}

// NopSink discards all entries.
type NopSink struct{}

// Record implements the Sink interface.
func (NopSink) Record(context.Context, Entry) {}
