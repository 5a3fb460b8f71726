//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundpack/groundpack/chunk"
	"github.com/groundpack/groundpack/searchbackend"
)

func hit(id string, src searchbackend.Source) *searchbackend.ScoredHit {
	return &searchbackend.ScoredHit{
		Record: &chunk.Record{ChunkID: id, DocID: "DOC-" + id, AllowedGroups: []string{"eng"}},
		Score:  1.0,
		Source: src,
	}
}

func hits(src searchbackend.Source, ids ...string) []*searchbackend.ScoredHit {
	out := make([]*searchbackend.ScoredHit, 0, len(ids))
	for _, id := range ids {
		out = append(out, hit(id, src))
	}
	return out
}

func chunkIDs(cands []*Candidate) []string {
	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.ChunkID)
	}
	return ids
}

func TestFuseWorkedExample(t *testing.T) {
	lexical := hits(searchbackend.SourceLexical, "A", "B", "C")
	vector := hits(searchbackend.SourceVector, "B", "D", "A")

	fused := New().Fuse(lexical, vector, 0)
	require.Len(t, fused, 4)
	assert.Equal(t, []string{"B", "A", "D", "C"}, chunkIDs(fused))

	// B: 1/(60+2) + 1/(60+1), A: 1/(60+1) + 1/(60+3),
	// D: 1/(60+2), C: 1/(60+3).
	assert.InDelta(t, 1.0/62+1.0/61, fused[0].Score, 1e-12)
	assert.InDelta(t, 1.0/61+1.0/63, fused[1].Score, 1e-12)
	assert.InDelta(t, 1.0/62, fused[2].Score, 1e-12)
	assert.InDelta(t, 1.0/63, fused[3].Score, 1e-12)

	assert.Equal(t, map[searchbackend.Source]int{
		searchbackend.SourceLexical: 2,
		searchbackend.SourceVector:  1,
	}, fused[0].Ranks)
}

func TestFuseDeterministic(t *testing.T) {
	lexical := hits(searchbackend.SourceLexical, "A", "B", "C", "D", "E")
	vector := hits(searchbackend.SourceVector, "E", "C", "A", "F", "G")

	engine := New()
	first := chunkIDs(engine.Fuse(lexical, vector, 0))
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, chunkIDs(engine.Fuse(lexical, vector, 0)))
	}
}

func TestFuseTieBreaks(t *testing.T) {
	t.Run("lexical presence beats vector only", func(t *testing.T) {
		// Same rank in each list means equal score and equal min rank.
		lexical := hits(searchbackend.SourceLexical, "X", "P")
		vector := hits(searchbackend.SourceVector, "Y", "Q")

		fused := New().Fuse(lexical, vector, 0)
		require.Len(t, fused, 4)
		assert.Equal(t, []string{"X", "Y", "P", "Q"}, chunkIDs(fused))
	})

	t.Run("within one source better rank wins", func(t *testing.T) {
		fused := New().Fuse(nil, hits(searchbackend.SourceVector, "V1", "V2"), 0)
		require.Len(t, fused, 2)
		assert.Equal(t, "V1", fused[0].ChunkID)
	})
}

func TestFuseLimit(t *testing.T) {
	lexical := hits(searchbackend.SourceLexical, "A", "B", "C", "D")
	fused := New().Fuse(lexical, nil, 2)
	require.Len(t, fused, 2)
	assert.Equal(t, []string{"A", "B"}, chunkIDs(fused))
}

func TestFuseDuplicateWithinSource(t *testing.T) {
	lexical := hits(searchbackend.SourceLexical, "A", "A", "B")
	fused := New().Fuse(lexical, nil, 0)
	require.Len(t, fused, 2)
	// Only A's first (best) rank counts.
	assert.InDelta(t, 1.0/61, fused[0].Score, 1e-12)
	assert.Equal(t, 1, fused[0].Ranks[searchbackend.SourceLexical])
}

func TestFuseSkipsBrokenHits(t *testing.T) {
	lexical := []*searchbackend.ScoredHit{
		nil,
		{Record: nil, Score: 1},
		hit("A", searchbackend.SourceLexical),
	}
	fused := New().Fuse(lexical, nil, 0)
	require.Len(t, fused, 1)
	// Ranks count list positions, including skipped entries.
	assert.Equal(t, 3, fused[0].Ranks[searchbackend.SourceLexical])
}

func TestFuseEmptyInputs(t *testing.T) {
	assert.Empty(t, New().Fuse(nil, nil, 0))
}

func TestWithK(t *testing.T) {
	fused := New(WithK(1)).Fuse(hits(searchbackend.SourceLexical, "A"), nil, 0)
	require.Len(t, fused, 1)
	assert.InDelta(t, 0.5, fused[0].Score, 1e-12)
}
