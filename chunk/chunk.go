//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package chunk defines the chunk record produced by the ingestion pipeline
// and consumed read-only by the retrieval core.
package chunk

import (
	"fmt"
	"strings"
	"time"
)

// Record is one retrievable chunk of an indexed document revision.
// Records are owned and mutated solely by the ingestion subsystem; the
// retrieval core treats them as read-only values.
type Record struct {
	// DocID is the stable document identity.
	DocID string
	// Rev is the document revision tag.
	Rev string
	// ChunkID is unique within DocID+Rev.
	ChunkID string
	// Page is the 1-based page the chunk starts on.
	Page int
	// SectionPath is the ordered sequence of heading strings leading to
	// this chunk.
	SectionPath []string
	// Text is the retrievable content.
	Text string
	// Embedding is the dense vector for the chunk text. Dimensionality is
	// fixed per embedding model.
	Embedding []float64
	// Headings are the heading strings present inside the chunk.
	Headings []string
	// TableMarkdown carries a markdown rendering of an embedded table, if any.
	TableMarkdown string
	// EffectiveDate is the document's effective date.
	EffectiveDate time.Time
	// Owner identifies the document owner.
	Owner string
	// SourceURL points back at the ingested source.
	SourceURL string
	// Hash is the ingestion-time content hash, used upstream for change
	// detection. Never mutated here.
	Hash string
	// AllowedGroups is the ACL: the set of group identifiers permitted to
	// view this chunk. Non-empty for any indexed record; a record with an
	// empty ACL is never retrievable.
	AllowedGroups []string
	// Tags are free-form labels attached at ingestion time.
	Tags []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GroupsIntersect reports whether the record's ACL shares at least one group
// with the caller's groups. Either side being empty fails closed.
func (r *Record) GroupsIntersect(groups []string) bool {
	if r == nil || len(r.AllowedGroups) == 0 || len(groups) == 0 {
		return false
	}
	allowed := make(map[string]struct{}, len(r.AllowedGroups))
	for _, g := range r.AllowedGroups {
		allowed[g] = struct{}{}
	}
	for _, g := range groups {
		if _, ok := allowed[g]; ok {
			return true
		}
	}
	return false
}

// SectionKey returns the dedup identity (doc_id, rev, section_path) as a
// single comparable string.
func (r *Record) SectionKey() string {
	return r.DocID + "\x1f" + r.Rev + "\x1f" + strings.Join(r.SectionPath, "\x1f")
}

// Citation renders the human-readable citation label, e.g.
// "SPEC-001 Rev D p.12".
func (r *Record) Citation() string {
	var sb strings.Builder
	sb.WriteString(r.DocID)
	if r.Rev != "" {
		sb.WriteString(" Rev ")
		sb.WriteString(r.Rev)
	}
	if r.Page > 0 {
		fmt.Fprintf(&sb, " p.%d", r.Page)
	}
	return sb.String()
}
