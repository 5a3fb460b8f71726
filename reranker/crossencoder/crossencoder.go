//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package crossencoder scores query/document pairs against a hosted
// cross-encoder endpoint speaking the Cohere/Infinity rerank wire format.
package crossencoder

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/groundpack/groundpack/internal/httpclient"
	"github.com/groundpack/groundpack/reranker"
)

const envEndpoint = "RERANK_ENDPOINT"

// Verify that Scorer implements the reranker.Scorer interface.
var _ reranker.Scorer = (*Scorer)(nil)

// Scorer implements reranker.Scorer via an HTTP cross-encoder endpoint.
// It is stateless and safe for concurrent use.
type Scorer struct {
	endpoint   string
	apiKey     string
	modelName  string
	httpClient *httpclient.Client
}

// Option configures the Scorer.
type Option func(*Scorer)

// WithEndpoint sets the endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(s *Scorer) {
		s.endpoint = endpoint
	}
}

// WithAPIKey sets the API key (optional for self-hosted endpoints).
func WithAPIKey(key string) Option {
	return func(s *Scorer) {
		s.apiKey = key
	}
}

// WithModel sets the model name (optional, depends on server config).
func WithModel(model string) Option {
	return func(s *Scorer) {
		s.modelName = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Scorer) {
		s.httpClient = httpclient.NewClient(client)
	}
}

// New creates a cross-encoder scorer. The endpoint defaults to the
// RERANK_ENDPOINT environment variable.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		endpoint:   os.Getenv(envEndpoint),
		httpClient: httpclient.NewClient(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score implements the reranker.Scorer interface. Empty document text is
// sent as-is; the endpoint decides its relevance.
func (s *Scorer) Score(ctx context.Context, queryText, documentText string) (float64, error) {
	req := httpclient.RerankRequest{
		Model:     s.modelName,
		Query:     queryText,
		Documents: []string{documentText},
	}
	scores, err := s.httpClient.Scores(ctx, s.endpoint, s.apiKey, req)
	if err != nil {
		return 0, fmt.Errorf("crossencoder score: %w", err)
	}
	if len(scores) == 0 {
		return 0, nil
	}
	return scores[0], nil
}
