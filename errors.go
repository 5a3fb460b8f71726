//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

package groundpack

import "errors"

var (
	// ErrInvalidQuery is returned for empty query text, empty caller
	// groups, or out-of-range options. Not retryable.
	ErrInvalidQuery = errors.New("groundpack: invalid query")

	// ErrBackendUnavailable is returned when both retrieval modalities
	// failed. Callers may retry with backoff.
	ErrBackendUnavailable = errors.New("groundpack: search backend unavailable")

	// ErrTimeout is returned when the overall wall-clock budget for one
	// retrieve call was exceeded. A timed-out call yields no partial
	// grounding content.
	ErrTimeout = errors.New("groundpack: retrieval timed out")
)
