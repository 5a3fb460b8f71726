//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicEstimate(t *testing.T) {
	h := NewHeuristic(4)

	assert.Zero(t, h.EstimateTokens(""))
	assert.Equal(t, 1, h.EstimateTokens("ab"))
	assert.Equal(t, 1, h.EstimateTokens("abcd"))
	assert.Equal(t, 2, h.EstimateTokens("abcde"))
	assert.Equal(t, 25, h.EstimateTokens(strings.Repeat("x", 100)))
}

func TestHeuristicDefaultRatio(t *testing.T) {
	h := NewHeuristic(0)
	assert.Equal(t, 1, h.EstimateTokens("abcd"))
}

func TestTiktokenEstimate(t *testing.T) {
	tk, err := NewTiktoken("gpt-4o")
	require.NoError(t, err)

	assert.Zero(t, tk.EstimateTokens(""))
	assert.Positive(t, tk.EstimateTokens("torque limits were raised for the fastener set"))
}

func TestTiktokenUnknownModelFallsBack(t *testing.T) {
	tk, err := NewTiktoken("no-such-model")
	require.NoError(t, err)
	assert.Positive(t, tk.EstimateTokens("hello world"))
}
