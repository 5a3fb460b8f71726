//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groundpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, BackendElasticsearch, cfg.Backend.Kind)
	assert.Equal(t, 60, cfg.Pipeline.CandidateK)
	assert.Equal(t, 60, cfg.Pipeline.KRRF)
	assert.Equal(t, 8, cfg.Pipeline.FinalContextChunks)
	assert.Equal(t, 6000, cfg.Pipeline.TokenBudget)
	assert.Equal(t, 40, cfg.Rerank.MaxToScore)
	assert.Equal(t, EstimatorHeuristic, cfg.Tokens.Estimator)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
backend:
  kind: memory
pipeline:
  candidate_k: 30
  final_context_chunks: 4
  overall_timeout: 45s
rerank:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, BackendMemory, cfg.Backend.Kind)
	assert.Equal(t, 30, cfg.Pipeline.CandidateK)
	assert.Equal(t, 4, cfg.Pipeline.FinalContextChunks)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.OverallTimeout)
	assert.False(t, cfg.Rerank.Enabled)

	// Untouched keys keep their defaults.
	assert.Equal(t, 60, cfg.Pipeline.KRRF)
	assert.Equal(t, 40, cfg.Rerank.MaxToScore)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GROUNDPACK_PIPELINE_CANDIDATE_K", "90")
	t.Setenv("GROUNDPACK_LOG_LEVEL", "warn")

	path := writeConfig(t, "pipeline:\n  candidate_k: 30\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	// Environment wins over the file.
	assert.Equal(t, 90, cfg.Pipeline.CandidateK)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadValidationFailure(t *testing.T) {
	path := writeConfig(t, "pipeline:\n  candidate_k: -5\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadUnknownBackendKind(t *testing.T) {
	path := writeConfig(t, "backend:\n  kind: sqlite\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestPipelineOptionsMapping(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.CandidateK = 25
	cfg.Rerank.Enabled = false
	cfg.Rerank.MaxToScore = 10

	opts := cfg.PipelineOptions()
	assert.Equal(t, 25, opts.CandidateK)
	assert.False(t, opts.RerankEnabled)
	assert.Equal(t, 10, opts.MaxToScore)
	assert.Equal(t, cfg.Pipeline.OverallTimeout, opts.OverallTimeout)
}
