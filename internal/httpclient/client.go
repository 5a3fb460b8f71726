//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package httpclient provides a common HTTP client for cross-encoder
// scoring endpoints compatible with the Cohere/Infinity rerank wire format.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/groundpack/groundpack/log"
)

// Client is a shared HTTP client for cross-encoder scoring endpoints.
type Client struct {
	client *http.Client
}

// NewClient creates a new Client. A nil http.Client gets a 30s timeout
// default.
func NewClient(client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{client: client}
}

// RerankRequest represents the request payload for scoring documents
// against a query.
type RerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Scores posts the request and returns relevance scores aligned with the
// request's Documents indices. Documents the endpoint omitted keep a zero
// score.
func (c *Client) Scores(ctx context.Context, endpoint, apiKey string, reqPayload RerankRequest) ([]float64, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is empty")
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	scores := make([]float64, len(reqPayload.Documents))
	for _, r := range apiResp.Results {
		if r.Index >= 0 && r.Index < len(scores) {
			scores[r.Index] = r.RelevanceScore
		} else {
			log.Warnf("invalid index from scoring endpoint: %d", r.Index)
		}
	}
	return scores, nil
}
