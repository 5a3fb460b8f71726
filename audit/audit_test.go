//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashQuery(t *testing.T) {
	h := HashQuery("torque changes in Rev D")
	assert.Len(t, h, 16)
	assert.Equal(t, h, HashQuery("torque changes in Rev D"))
	assert.NotEqual(t, h, HashQuery("different query"))
}

func TestNewEntry(t *testing.T) {
	e := NewEntry("qh", []string{"eng"}, StageTrim, "c1", OutcomeACLViolationPostBackend)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, "qh", e.QueryHash)
	assert.Equal(t, StageTrim, e.Stage)
	assert.Equal(t, "c1", e.ChunkID)
	assert.Equal(t, OutcomeACLViolationPostBackend, e.Outcome)
}

func TestInMemorySinkConcurrent(t *testing.T) {
	sink := NewInMemorySink()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				sink.Record(context.Background(), NewEntry("qh", nil, StageTrim, "c", OutcomeACLViolationPostBackend))
			}
		}()
	}
	wg.Wait()
	require.Len(t, sink.Entries(), 160)
}

func TestNopSink(t *testing.T) {
	assert.NotPanics(t, func() {
		NopSink{}.Record(context.Background(), Entry{})
	})
}
