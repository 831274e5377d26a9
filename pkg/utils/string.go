// Package utils provides common utility functions.
package utils

import (
	"strings"
	"unicode"
)

// StringHelper provides string utility functions.
type StringHelper struct{}

// NewStringHelper creates a new string helper.
func NewStringHelper() *StringHelper {
	return &StringHelper{}
}

// NormalizeWhitespace replaces runs of whitespace (including newlines) with a single space.
func (s *StringHelper) NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// TruncateWords keeps at most maxWords whitespace-separated words.
func (s *StringHelper) TruncateWords(str string, maxWords int) string {
	words := strings.Fields(str)
	if maxWords <= 0 || len(words) <= maxWords {
		return strings.Join(words, " ")
	}

	return strings.Join(words[:maxWords], " ")
}

// TitleCase trims the input and upper-cases the first letter of every word,
// lower-casing the rest ("new york" -> "New York").
func (s *StringHelper) TitleCase(str string) string {
	words := strings.Fields(str)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}

	return strings.Join(words, " ")
}
