//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Command groundquery runs one grounding-pack retrieval from the terminal.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/groundpack/groundpack"
	"github.com/groundpack/groundpack/audit"
	"github.com/groundpack/groundpack/config"
	openaiembedder "github.com/groundpack/groundpack/embedder/openai"
	"github.com/groundpack/groundpack/log"
	"github.com/groundpack/groundpack/reranker"
	"github.com/groundpack/groundpack/reranker/crossencoder"
	"github.com/groundpack/groundpack/searchbackend"
	"github.com/groundpack/groundpack/searchbackend/elasticsearch"
	"github.com/groundpack/groundpack/searchbackend/inmemory"
	"github.com/groundpack/groundpack/tokencount"
)

func main() {
	app := &cli.App{
		Name:  "groundquery",
		Usage: "Retrieve a cited grounding pack for a query",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "groundpack.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "query",
				Usage:     "Run one retrieval and print the selected chunks",
				ArgsUsage: "<query text>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "group",
						Aliases:  []string{"g"},
						Usage:    "Caller group membership (repeatable)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "chunks",
						Usage: "Override the pack chunk bound",
					},
					&cli.IntFlag{
						Name:  "token-budget",
						Usage: "Override the pack token budget",
					},
					&cli.BoolFlag{
						Name:  "no-rerank",
						Usage: "Skip reranking for this call",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Print per-stage trace entries",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("groundquery: %v", err)
	}
}

func queryCommand(c *cli.Context) error {
	queryText := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if queryText == "" {
		return fmt.Errorf("query text is required")
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if c.String("log-level") != "" {
		level = c.String("log-level")
	}
	log.SetLevel(level)

	pipeline, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	var callOpts []groundpack.RetrieveOption
	if n := c.Int("chunks"); n > 0 {
		callOpts = append(callOpts, groundpack.WithFinalContextChunks(n))
	}
	if n := c.Int("token-budget"); n > 0 {
		callOpts = append(callOpts, groundpack.WithTokenBudget(n))
	}
	if c.Bool("no-rerank") {
		callOpts = append(callOpts, groundpack.WithRerankEnabled(false))
	}

	pack, err := pipeline.Retrieve(c.Context, queryText, c.StringSlice("group"), callOpts...)
	if err != nil {
		return err
	}
	printPack(pack, c.Bool("trace"))
	return nil
}

// buildPipeline wires the configured backend, embedder, scorer, and
// estimator into a retrieval pipeline.
func buildPipeline(cfg *config.Config) (*groundpack.Pipeline, error) {
	var backend searchbackend.Backend
	switch cfg.Backend.Kind {
	case config.BackendMemory:
		backend = inmemory.New()
	case config.BackendElasticsearch:
		es := cfg.Backend.Elasticsearch
		esOpts := []elasticsearch.Option{
			elasticsearch.WithAddresses(es.Addresses),
			elasticsearch.WithIndexName(es.IndexName),
			elasticsearch.WithVectorDimension(es.VectorDimension),
			elasticsearch.WithMaxRetries(es.MaxRetries),
		}
		if es.Username != "" {
			esOpts = append(esOpts, elasticsearch.WithBasicAuth(es.Username, es.Password))
		}
		if es.APIKey != "" {
			esOpts = append(esOpts, elasticsearch.WithAPIKey(es.APIKey))
		}
		esBackend, err := elasticsearch.New(esOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create elasticsearch backend: %w", err)
		}
		backend = esBackend
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}

	embOpts := []openaiembedder.Option{
		openaiembedder.WithModel(cfg.Embedding.Model),
	}
	if cfg.Embedding.APIKey != "" {
		embOpts = append(embOpts, openaiembedder.WithAPIKey(cfg.Embedding.APIKey))
	}
	if cfg.Embedding.BaseURL != "" {
		embOpts = append(embOpts, openaiembedder.WithBaseURL(cfg.Embedding.BaseURL))
	}
	if cfg.Embedding.Dimensions > 0 {
		embOpts = append(embOpts, openaiembedder.WithDimensions(cfg.Embedding.Dimensions))
	}

	var scorer reranker.Scorer
	if cfg.Rerank.Enabled {
		ceOpts := []crossencoder.Option{}
		if cfg.Rerank.Endpoint != "" {
			ceOpts = append(ceOpts, crossencoder.WithEndpoint(cfg.Rerank.Endpoint))
		}
		if cfg.Rerank.APIKey != "" {
			ceOpts = append(ceOpts, crossencoder.WithAPIKey(cfg.Rerank.APIKey))
		}
		if cfg.Rerank.Model != "" {
			ceOpts = append(ceOpts, crossencoder.WithModel(cfg.Rerank.Model))
		}
		scorer = crossencoder.New(ceOpts...)
	}

	var estimator tokencount.Estimator
	switch cfg.Tokens.Estimator {
	case config.EstimatorTiktoken:
		tk, err := tokencount.NewTiktoken(cfg.Tokens.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create tiktoken estimator: %w", err)
		}
		estimator = tk
	default:
		estimator = tokencount.NewHeuristic(tokencount.DefaultCharsPerToken)
	}

	return groundpack.New(
		groundpack.WithBackend(backend),
		groundpack.WithEmbedder(openaiembedder.New(embOpts...)),
		groundpack.WithScorer(scorer),
		groundpack.WithTokenEstimator(estimator),
		groundpack.WithAuditSink(audit.NewLogSink(nil)),
		groundpack.WithOptions(cfg.PipelineOptions()),
	)
}

func printPack(pack *groundpack.GroundingPack, showTrace bool) {
	for _, line := range pack.Summaries() {
		fmt.Println(line)
	}
	fmt.Printf("\n%d chunks, ~%d tokens", len(pack.Chunks), pack.TokenCount)
	if pack.Truncated {
		fmt.Print(" (truncated)")
	}
	fmt.Println()
	if pack.Degraded() {
		fmt.Printf("degraded: %s\n", strings.Join(pack.Degradations, ", "))
	}
	if showTrace {
		for _, entry := range pack.Trace {
			fmt.Printf("trace: stage=%-8s rank=%-3d score=%.5f chunk=%s\n",
				entry.Stage, entry.Rank, entry.Score, entry.ChunkID)
		}
	}
}
