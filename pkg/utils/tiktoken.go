// Package utils provides tiktoken-based token counting utilities.
package utils

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter provides approximate token counting for prompt budgeting.
// All supported providers are approximated with the GPT-4 encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter. The model argument is accepted
// for future per-model encodings; today everything maps to GPT-4.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text, falling back
// to a 4-characters-per-token estimate when the codec is unavailable.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TruncateToTokenLimit truncates text to approximately fit a token limit.
// Truncation is by characters, not exact token boundaries.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	currentTokens := tc.CountTokens(text)
	if currentTokens <= limit {
		return text
	}

	ratio := float64(limit) / float64(currentTokens)
	charLimit := int(float64(len(text)) * ratio * 0.9)
	if charLimit >= len(text) {
		return text
	}
	return text[:charLimit] + "..."
}
