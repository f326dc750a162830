// Package promptfilter validates prompt submissions before they reach the
// tally: structural limits are enforced locally, while word acceptance is
// delegated to a pluggable Filter so deployments can wire a real
// dictionary or moderation service.
package promptfilter

import (
	"fmt"
	"strings"

	"github.com/easelhq/easel/pkg/board"
)

// Limits on a prompt's shape.
const (
	MaxLength = 32
	MaxWords  = 5
)

// excludedWords never count toward consensus and are rejected outright so
// "the cat" and "cat" cannot split the tally.
var excludedWords = map[string]bool{
	"the": true,
	"a":   true,
	"an":  true,
}

// Filter decides whether a word is acceptable prompt vocabulary.
type Filter interface {
	Allow(word string) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(word string) bool

func (f FilterFunc) Allow(word string) bool { return f(word) }

// AllowAll accepts every word. Used where no dictionary is configured.
var AllowAll = FilterFunc(func(string) bool { return true })

// Normalize canonicalizes a prompt for comparison and tallying: trimmed,
// lower-cased, runs of whitespace collapsed to single spaces.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Validate checks a prompt against the structural rules and the word
// filter. Returns the normalized prompt on success. All failures wrap
// board.ErrInvalidInput.
func Validate(text string, maxWords int, filter Filter) (string, error) {
	if maxWords <= 0 || maxWords > MaxWords {
		maxWords = MaxWords
	}
	if filter == nil {
		filter = AllowAll
	}

	normalized := Normalize(text)
	if normalized == "" {
		return "", fmt.Errorf("empty prompt: %w", board.ErrInvalidInput)
	}
	if len(normalized) > MaxLength {
		return "", fmt.Errorf("prompt exceeds %d characters: %w", MaxLength, board.ErrInvalidInput)
	}

	words := strings.Split(normalized, " ")
	if len(words) > maxWords {
		return "", fmt.Errorf("prompt exceeds %d words: %w", maxWords, board.ErrInvalidInput)
	}

	for _, word := range words {
		for _, r := range word {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
				return "", fmt.Errorf("prompt contains non-alphanumeric characters: %w", board.ErrInvalidInput)
			}
		}
		if excludedWords[word] {
			return "", fmt.Errorf("word %q is not allowed in prompts: %w", word, board.ErrInvalidInput)
		}
		if !filter.Allow(word) {
			return "", fmt.Errorf("word %q rejected by the word filter: %w", word, board.ErrInvalidInput)
		}
	}

	return normalized, nil
}
