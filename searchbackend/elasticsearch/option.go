//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

package elasticsearch

// options holds the configuration for the Elasticsearch backend.
type options struct {
	addresses              []string
	username               string
	password               string
	apiKey                 string
	certificateFingerprint string
	indexName              string
	vectorDimension        int
	maxRetries             int
	retryOnStatus          []int
	compressRequestBody    bool
	enableDebugLogger      bool
}

func defaultOptions() options {
	return options{
		addresses:       []string{"http://localhost:9200"},
		indexName:       DefaultIndexName,
		vectorDimension: DefaultVectorDimension,
		maxRetries:      3,
		retryOnStatus:   []int{502, 503, 504},
	}
}

// Option configures the Elasticsearch backend.
type Option func(*options)

// WithAddresses sets the Elasticsearch node addresses.
func WithAddresses(addresses []string) Option {
	return func(o *options) {
		o.addresses = addresses
	}
}

// WithBasicAuth sets username/password authentication.
func WithBasicAuth(username, password string) Option {
	return func(o *options) {
		o.username = username
		o.password = password
	}
}

// WithAPIKey sets API key authentication.
func WithAPIKey(apiKey string) Option {
	return func(o *options) {
		o.apiKey = apiKey
	}
}

// WithCertificateFingerprint sets the TLS certificate fingerprint.
func WithCertificateFingerprint(fingerprint string) Option {
	return func(o *options) {
		o.certificateFingerprint = fingerprint
	}
}

// WithIndexName sets the index holding chunk records.
func WithIndexName(name string) Option {
	return func(o *options) {
		o.indexName = name
	}
}

// WithVectorDimension sets the expected embedding dimensionality.
func WithVectorDimension(dim int) Option {
	return func(o *options) {
		o.vectorDimension = dim
	}
}

// WithMaxRetries sets the transport-level retry count.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// WithCompressRequestBody enables request body compression.
func WithCompressRequestBody(compress bool) Option {
	return func(o *options) {
		o.compressRequestBody = compress
	}
}

// WithEnableDebugLogger enables the client debug logger.
func WithEnableDebugLogger(enable bool) Option {
	return func(o *options) {
		o.enableDebugLogger = enable
	}
}
