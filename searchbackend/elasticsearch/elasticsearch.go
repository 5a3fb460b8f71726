//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package elasticsearch provides an Elasticsearch-backed search backend for
// chunk records. Both query modalities carry a mandatory ACL filter on the
// allowed_groups field.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/groundpack/groundpack/chunk"
	"github.com/groundpack/groundpack/searchbackend"
)

const (
	// DefaultIndexName is the default index name for chunk records.
	DefaultIndexName = "groundpack_chunks"
	// DefaultVectorDimension is the default dimension for embedding vectors.
	DefaultVectorDimension = 1536
)

// IndexMapping defines the Elasticsearch index mapping structure.
type IndexMapping struct {
	Mappings IndexMappings `json:"mappings"`
	Settings IndexSettings `json:"settings"`
}

// IndexMappings defines the mappings section of the index.
type IndexMappings struct {
	Properties map[string]FieldMapping `json:"properties"`
}

// IndexSettings defines the settings section of the index.
type IndexSettings struct {
	NumberOfShards   int `json:"number_of_shards"`
	NumberOfReplicas int `json:"number_of_replicas"`
}

// FieldMapping defines a field mapping in Elasticsearch.
type FieldMapping struct {
	Type       string `json:"type,omitempty"`
	Dims       int    `json:"dims,omitempty"`
	Index      bool   `json:"index,omitempty"`
	Similarity string `json:"similarity,omitempty"`
}

// Backend implements searchbackend.Backend using Elasticsearch.
type Backend struct {
	client *elasticsearch.Client
	option options
}

// New creates a new Elasticsearch backend and ensures the chunk index exists.
func New(opts ...Option) (*Backend, error) {
	option := defaultOptions()
	for _, opt := range opts {
		opt(&option)
	}

	esConfig := elasticsearch.Config{
		Addresses:              option.addresses,
		Username:               option.username,
		Password:               option.password,
		APIKey:                 option.apiKey,
		CertificateFingerprint: option.certificateFingerprint,
		CompressRequestBody:    option.compressRequestBody,
		EnableDebugLogger:      option.enableDebugLogger,
		RetryOnStatus:          option.retryOnStatus,
		MaxRetries:             option.maxRetries,
	}

	esClient, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch create client: %w", err)
	}

	b := &Backend{client: esClient, option: option}
	if err := b.ensureIndex(); err != nil {
		return nil, fmt.Errorf("elasticsearch ensure index: %w", err)
	}
	return b, nil
}

// ensureIndex ensures the chunk index exists with the expected mapping.
func (b *Backend) ensureIndex() error {
	ctx := context.Background()

	exists, err := b.indexExists(ctx, b.option.indexName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	mapping := &IndexMapping{
		Mappings: IndexMappings{
			Properties: map[string]FieldMapping{
				"chunk_id":       {Type: "keyword"},
				"doc_id":         {Type: "keyword"},
				"rev":            {Type: "keyword"},
				"page":           {Type: "integer"},
				"section_path":   {Type: "keyword"},
				"text":           {Type: "text"},
				"headings":       {Type: "text"},
				"table_markdown": {Type: "text"},
				"effective_date": {Type: "date"},
				"owner":          {Type: "keyword"},
				"source_url":     {Type: "keyword"},
				"hash":           {Type: "keyword"},
				"allowed_groups": {Type: "keyword"},
				"tags":           {Type: "keyword"},
				"created_at":     {Type: "date"},
				"updated_at":     {Type: "date"},
				"embedding": {
					Type:       "dense_vector",
					Dims:       b.option.vectorDimension,
					Index:      true,
					Similarity: "cosine",
				},
			},
		},
		Settings: IndexSettings{
			NumberOfShards:   1,
			NumberOfReplicas: 0,
		},
	}
	return b.createIndex(ctx, b.option.indexName, mapping)
}

// indexExists checks if an index exists.
func (b *Backend) indexExists(ctx context.Context, indexName string) (bool, error) {
	res, err := b.client.Indices.Exists(
		[]string{indexName},
		b.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == 200, nil
}

// createIndex creates an index with mapping.
func (b *Backend) createIndex(ctx context.Context, indexName string, mapping *IndexMapping) error {
	mappingBytes, err := json.Marshal(mapping)
	if err != nil {
		return err
	}

	res, err := b.client.Indices.Create(
		indexName,
		b.client.Indices.Create.WithContext(ctx),
		b.client.Indices.Create.WithBody(bytes.NewReader(mappingBytes)),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch failed to create index: %s", res.Status())
	}
	return nil
}

// Index stores a chunk record. Used by the ingestion side; the retrieval
// core itself never writes.
func (b *Backend) Index(ctx context.Context, rec *chunk.Record) error {
	if rec == nil {
		return fmt.Errorf("elasticsearch record cannot be nil")
	}
	if rec.ChunkID == "" {
		return fmt.Errorf("elasticsearch record chunk ID cannot be empty")
	}
	if len(rec.AllowedGroups) == 0 {
		return fmt.Errorf("elasticsearch record %s has empty ACL", rec.ChunkID)
	}
	if len(rec.Embedding) != b.option.vectorDimension {
		return fmt.Errorf("elasticsearch embedding dimension %d does not match expected dimension %d",
			len(rec.Embedding), b.option.vectorDimension)
	}

	esDoc := map[string]any{
		"chunk_id":       rec.ChunkID,
		"doc_id":         rec.DocID,
		"rev":            rec.Rev,
		"page":           rec.Page,
		"section_path":   rec.SectionPath,
		"text":           rec.Text,
		"headings":       rec.Headings,
		"table_markdown": rec.TableMarkdown,
		"effective_date": rec.EffectiveDate,
		"owner":          rec.Owner,
		"source_url":     rec.SourceURL,
		"hash":           rec.Hash,
		"allowed_groups": rec.AllowedGroups,
		"tags":           rec.Tags,
		"created_at":     rec.CreatedAt,
		"updated_at":     rec.UpdatedAt,
		"embedding":      rec.Embedding,
	}

	docBytes, err := json.Marshal(esDoc)
	if err != nil {
		return err
	}

	res, err := b.client.Index(
		b.option.indexName,
		bytes.NewReader(docBytes),
		b.client.Index.WithContext(ctx),
		b.client.Index.WithDocumentID(rec.ChunkID),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch failed to index record: %s", res.Status())
	}
	return nil
}

// Delete removes a chunk record by ID.
func (b *Backend) Delete(ctx context.Context, chunkID string) error {
	if chunkID == "" {
		return fmt.Errorf("elasticsearch chunk ID cannot be empty")
	}

	res, err := b.client.Delete(
		b.option.indexName,
		chunkID,
		b.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch failed to delete record: %s", res.Status())
	}
	return nil
}

// SearchLexical implements searchbackend.Backend.
func (b *Backend) SearchLexical(ctx context.Context, queryText string, filter *searchbackend.Filter, topK int) ([]*searchbackend.ScoredHit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	body := buildLexicalQuery(queryText, filter, topK)
	data, err := b.search(ctx, body)
	if err != nil {
		return nil, err
	}
	return parseSearchResults(data, searchbackend.SourceLexical)
}

// SearchVector implements searchbackend.Backend.
func (b *Backend) SearchVector(ctx context.Context, queryVector []float64, filter *searchbackend.Filter, topK int) ([]*searchbackend.ScoredHit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if len(queryVector) != b.option.vectorDimension {
		return nil, fmt.Errorf("elasticsearch query vector dimension %d does not match expected dimension %d",
			len(queryVector), b.option.vectorDimension)
	}
	body := buildVectorQuery(queryVector, filter, topK)
	data, err := b.search(ctx, body)
	if err != nil {
		return nil, err
	}
	return parseSearchResults(data, searchbackend.SourceVector)
}

// search executes a search request body against the chunk index.
func (b *Backend) search(ctx context.Context, query map[string]any) ([]byte, error) {
	queryBytes, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := b.client.Search(
		b.client.Search.WithContext(ctx),
		b.client.Search.WithIndex(b.option.indexName),
		b.client.Search.WithBody(bytes.NewReader(queryBytes)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s: %s", res.Status(), string(body))
	}
	return body, nil
}

// buildLexicalQuery builds a keyword relevance query with the ACL filter.
func buildLexicalQuery(queryText string, filter *searchbackend.Filter, topK int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":  queryText,
						"fields": []string{"text^2", "headings^1.5", "table_markdown"},
						"type":   "best_fields",
					},
				},
				"filter": buildFilterClauses(filter),
			},
		},
		"size": topK,
	}
}

// buildVectorQuery builds a cosine-similarity query with the ACL filter.
// The filter sits inside the script_score query so denied records never
// participate in scoring.
func buildVectorQuery(queryVector []float64, filter *searchbackend.Filter, topK int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{
					"bool": map[string]any{
						"filter": buildFilterClauses(filter),
					},
				},
				"script": map[string]any{
					"source": "if (doc['embedding'].size() > 0) { cosineSimilarity(params.query_vector, 'embedding') + 1.0 } else { 0.0 }",
					"params": map[string]any{
						"query_vector": queryVector,
					},
				},
			},
		},
		"size": topK,
	}
}

// buildFilterClauses renders the mandatory ACL predicate plus optional tag
// narrowing. A terms filter on a keyword array matches when any element of
// allowed_groups equals any caller group, i.e. non-empty intersection.
func buildFilterClauses(filter *searchbackend.Filter) []map[string]any {
	clauses := []map[string]any{
		{"terms": map[string]any{"allowed_groups": filter.AllowedGroups}},
	}
	if len(filter.Tags) > 0 {
		clauses = append(clauses, map[string]any{
			"terms": map[string]any{"tags": filter.Tags},
		})
	}
	return clauses
}

// parseSearchResults parses an Elasticsearch search response into hits.
func parseSearchResults(data []byte, src searchbackend.Source) ([]*searchbackend.ScoredHit, error) {
	var response map[string]any
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, err
	}

	hits, ok := response["hits"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("elasticsearch invalid search response format")
	}
	hitsList, ok := hits["hits"].([]any)
	if !ok {
		return nil, fmt.Errorf("elasticsearch invalid hits format")
	}

	results := make([]*searchbackend.ScoredHit, 0, len(hitsList))
	for _, hit := range hitsList {
		hitMap, ok := hit.(map[string]any)
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]any)
		if !ok {
			continue
		}
		score, ok := hitMap["_score"].(float64)
		if !ok {
			continue
		}

		rec := &chunk.Record{
			ChunkID:       getString(source, "chunk_id"),
			DocID:         getString(source, "doc_id"),
			Rev:           getString(source, "rev"),
			Page:          getInt(source, "page"),
			SectionPath:   getStringSlice(source, "section_path"),
			Text:          getString(source, "text"),
			Headings:      getStringSlice(source, "headings"),
			TableMarkdown: getString(source, "table_markdown"),
			EffectiveDate: getTime(source, "effective_date"),
			Owner:         getString(source, "owner"),
			SourceURL:     getString(source, "source_url"),
			Hash:          getString(source, "hash"),
			AllowedGroups: getStringSlice(source, "allowed_groups"),
			Tags:          getStringSlice(source, "tags"),
			CreatedAt:     getTime(source, "created_at"),
			UpdatedAt:     getTime(source, "updated_at"),
		}

		results = append(results, &searchbackend.ScoredHit{
			Record: rec,
			Score:  score,
			Source: src,
		})
	}
	return results, nil
}

// Close closes the backend. The Elasticsearch client needs no explicit close.
func (b *Backend) Close() error {
	return nil
}

func getString(source map[string]any, key string) string {
	if value, ok := source[key].(string); ok {
		return value
	}
	return ""
}

func getInt(source map[string]any, key string) int {
	if value, ok := source[key].(float64); ok {
		return int(value)
	}
	return 0
}

func getStringSlice(source map[string]any, key string) []string {
	raw, ok := source[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getTime(source map[string]any, key string) time.Time {
	if value, ok := source[key].(string); ok {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
