//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package config loads pipeline configuration from a YAML file with
// environment overrides. Fields are bound once at load; the returned Config
// is not mutated afterwards.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/groundpack/groundpack"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// GROUNDPACK_BACKEND_ELASTICSEARCH_ADDRESSES.
const EnvPrefix = "GROUNDPACK_"

// Backend kinds recognized in configuration.
const (
	BackendElasticsearch = "elasticsearch"
	BackendMemory        = "memory"
)

// Token estimator kinds recognized in configuration.
const (
	EstimatorHeuristic = "heuristic"
	EstimatorTiktoken  = "tiktoken"
)

// LogConfig selects the process log level.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error fatal"`
}

// ElasticsearchConfig carries the search backend connection settings.
type ElasticsearchConfig struct {
	Addresses       []string `koanf:"addresses" validate:"required,min=1"`
	Username        string   `koanf:"username"`
	Password        string   `koanf:"password"`
	APIKey          string   `koanf:"api_key"`
	IndexName       string   `koanf:"index_name" validate:"required"`
	VectorDimension int      `koanf:"vector_dimension" validate:"gt=0"`
	MaxRetries      int      `koanf:"max_retries" validate:"gte=0"`
}

// BackendConfig selects and configures the search backend.
type BackendConfig struct {
	Kind          string              `koanf:"kind" validate:"oneof=elasticsearch memory"`
	Elasticsearch ElasticsearchConfig `koanf:"elasticsearch" validate:"required_if=Kind elasticsearch"`
}

// EmbeddingConfig configures the query embedding client.
type EmbeddingConfig struct {
	Model      string `koanf:"model" validate:"required"`
	APIKey     string `koanf:"api_key"`
	BaseURL    string `koanf:"base_url"`
	Dimensions int    `koanf:"dimensions" validate:"gte=0"`
}

// RerankConfig configures the relevance model used for reranking.
type RerankConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	APIKey      string `koanf:"api_key"`
	Model       string `koanf:"model"`
	MaxToScore  int    `koanf:"max_to_score" validate:"gt=0"`
	Floor       int    `koanf:"floor" validate:"gte=0"`
	Concurrency int    `koanf:"concurrency" validate:"gt=0"`
}

// PipelineConfig carries the retrieval pipeline knobs.
type PipelineConfig struct {
	CandidateK         int           `koanf:"candidate_k" validate:"gt=0"`
	KRRF               int           `koanf:"k_rrf" validate:"gt=0"`
	FinalContextChunks int           `koanf:"final_context_chunks" validate:"gt=0"`
	TokenBudget        int           `koanf:"token_budget" validate:"gt=0"`
	Diversify          bool          `koanf:"diversify"`
	OverallTimeout     time.Duration `koanf:"overall_timeout" validate:"gt=0"`
	SubCallTimeout     time.Duration `koanf:"sub_call_timeout" validate:"gt=0"`
	MaxRetries         int           `koanf:"max_retries" validate:"gte=0"`
}

// TokensConfig selects the token estimator used for context budgeting.
type TokensConfig struct {
	Estimator string `koanf:"estimator" validate:"oneof=heuristic tiktoken"`
	Model     string `koanf:"model"`
}

// Config is the full process configuration.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Backend   BackendConfig   `koanf:"backend"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Rerank    RerankConfig    `koanf:"rerank"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Tokens    TokensConfig    `koanf:"tokens"`
}

// Default returns the built-in configuration. Everything but backend
// addresses and credentials has a workable default.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Backend: BackendConfig{
			Kind: BackendElasticsearch,
			Elasticsearch: ElasticsearchConfig{
				Addresses:       []string{"http://localhost:9200"},
				IndexName:       "groundpack-chunks",
				VectorDimension: 1536,
				MaxRetries:      3,
			},
		},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small",
		},
		Rerank: RerankConfig{
			Enabled:     true,
			MaxToScore:  40,
			Floor:       3,
			Concurrency: 8,
		},
		Pipeline: PipelineConfig{
			CandidateK:         60,
			KRRF:               60,
			FinalContextChunks: 8,
			TokenBudget:        6000,
			Diversify:          true,
			OverallTimeout:     30 * time.Second,
			SubCallTimeout:     5 * time.Second,
			MaxRetries:         1,
		},
		Tokens: TokensConfig{Estimator: EstimatorHeuristic},
	}
}

// PipelineOptions maps the loaded configuration onto pipeline options.
func (c *Config) PipelineOptions() groundpack.Options {
	return groundpack.Options{
		CandidateK:         c.Pipeline.CandidateK,
		KRRF:               c.Pipeline.KRRF,
		FinalContextChunks: c.Pipeline.FinalContextChunks,
		TokenBudget:        c.Pipeline.TokenBudget,
		RerankEnabled:      c.Rerank.Enabled,
		MaxToScore:         c.Rerank.MaxToScore,
		RerankFloor:        c.Rerank.Floor,
		RerankConcurrency:  c.Rerank.Concurrency,
		Diversify:          c.Pipeline.Diversify,
		OverallTimeout:     c.Pipeline.OverallTimeout,
		SubCallTimeout:     c.Pipeline.SubCallTimeout,
		MaxRetries:         c.Pipeline.MaxRetries,
	}
}

// Load reads configuration from the given YAML file, applies GROUNDPACK_*
// environment overrides on top, and validates the result. A missing file is
// not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// env override: GROUNDPACK_PIPELINE_CANDIDATE_K -> pipeline.candidate_k
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		parts := strings.SplitN(key, "_", 2)
		if len(parts) == 2 {
			return parts[0] + "." + strings.ReplaceAll(parts[1], "__", ".")
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			var sb strings.Builder
			sb.WriteString("config validation failed:")
			for _, e := range errs {
				sb.WriteString(fmt.Sprintf(" %s failed '%s' (value: %v);", e.Namespace(), e.Tag(), e.Value()))
			}
			return nil, fmt.Errorf("%s", sb.String())
		}
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}
