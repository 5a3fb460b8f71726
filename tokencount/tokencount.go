//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package tokencount estimates token usage for context budgeting.
package tokencount

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultCharsPerToken is the conservative chars-per-token proxy used by
// the heuristic estimator.
const DefaultCharsPerToken = 4

// Estimator estimates the token count of a piece of text.
type Estimator interface {
	EstimateTokens(text string) int
}

// Heuristic estimates tokens as character count divided by a fixed ratio.
// Cheap and model-independent; overestimates short texts slightly, which is
// the safe direction for a budget.
type Heuristic struct {
	charsPerToken int
}

// NewHeuristic creates a heuristic estimator. A ratio <= 0 uses the default.
func NewHeuristic(charsPerToken int) *Heuristic {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &Heuristic{charsPerToken: charsPerToken}
}

// EstimateTokens implements the Estimator interface.
func (h *Heuristic) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + h.charsPerToken - 1) / h.charsPerToken
}

// Tiktoken estimates tokens with a tiktoken codec for the given model.
type Tiktoken struct {
	encoding tokenizer.Codec
	fallback *Heuristic
}

// NewTiktoken creates a tiktoken-based estimator for the given model name.
// Unknown models fall back to the cl100k_base encoding.
func NewTiktoken(modelName string) (*Tiktoken, error) {
	enc, err := tokenizer.ForModel(tokenizer.Model(modelName))
	if err != nil {
		enc, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return nil, fmt.Errorf("failed to get fallback tokenizer: %w", err)
		}
	}
	return &Tiktoken{
		encoding: enc,
		fallback: NewHeuristic(DefaultCharsPerToken),
	}, nil
}

// EstimateTokens implements the Estimator interface. Encoding failures fall
// back to the heuristic so budgeting never fails mid-assembly.
func (t *Tiktoken) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	toks, _, err := t.encoding.Encode(text)
	if err != nil {
		return t.fallback.EstimateTokens(text)
	}
	return len(toks)
}
