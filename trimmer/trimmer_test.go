//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

package trimmer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundpack/groundpack/audit"
	"github.com/groundpack/groundpack/chunk"
	"github.com/groundpack/groundpack/fusion"
)

func candidate(id string, groups ...string) *fusion.Candidate {
	return &fusion.Candidate{
		ChunkID: id,
		Record:  &chunk.Record{ChunkID: id, DocID: "DOC-" + id, AllowedGroups: groups},
	}
}

func TestTrimDropsForeignACL(t *testing.T) {
	sink := audit.NewInMemorySink()
	trim := New(WithAuditSink(sink))

	// Five fused candidates for a mechanical design query; two belong to a
	// compliance-only collection the caller is not a member of.
	candidates := []*fusion.Candidate{
		candidate("c1", "ME-Design"),
		candidate("c2", "QA-Compliance"),
		candidate("c3", "ME-Design", "QA-Compliance"),
		candidate("c4", "QA-Compliance"),
		candidate("c5", "ME-Design"),
	}

	kept := trim.Trim(context.Background(), candidates, []string{"ME-Design"}, "qh")
	require.Len(t, kept, 3)
	assert.Equal(t, "c1", kept[0].ChunkID)
	assert.Equal(t, "c3", kept[1].ChunkID)
	assert.Equal(t, "c5", kept[2].ChunkID)

	entries := sink.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, audit.StageTrim, e.Stage)
		assert.Equal(t, audit.OutcomeACLViolationPostBackend, e.Outcome)
		assert.Equal(t, "qh", e.QueryHash)
		assert.Equal(t, []string{"ME-Design"}, e.Groups)
	}
	assert.Equal(t, "c2", entries[0].ChunkID)
	assert.Equal(t, "c4", entries[1].ChunkID)
}

func TestTrimFailsClosed(t *testing.T) {
	sink := audit.NewInMemorySink()
	trim := New(WithAuditSink(sink))

	candidates := []*fusion.Candidate{
		{ChunkID: "orphan"}, // record lookup failed upstream
		candidate("empty-acl"),
		candidate("ok", "eng"),
	}

	kept := trim.Trim(context.Background(), candidates, []string{"eng"}, "qh")
	require.Len(t, kept, 1)
	assert.Equal(t, "ok", kept[0].ChunkID)

	entries := sink.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, audit.OutcomeRecordLookupFailed, entries[0].Outcome)
	assert.Equal(t, audit.OutcomeACLViolationPostBackend, entries[1].Outcome)
}

func TestTrimEmptyCallerGroups(t *testing.T) {
	trim := New()
	kept := trim.Trim(context.Background(), []*fusion.Candidate{candidate("c1", "eng")}, nil, "qh")
	assert.Empty(t, kept)
}

func TestTrimKeepsAll(t *testing.T) {
	trim := New()
	candidates := []*fusion.Candidate{
		candidate("c1", "eng"),
		candidate("c2", "eng", "ops"),
	}
	kept := trim.Trim(context.Background(), candidates, []string{"eng"}, "qh")
	assert.Len(t, kept, 2)
}
