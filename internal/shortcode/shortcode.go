// Package shortcode generates and validates the fixed-length codes that
// identify shortened URLs.
package shortcode

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// DefaultLength is the default short code length. A 62-character
	// alphabet at length 6 gives a keyspace of about 5.7e10 codes.
	DefaultLength = 6

	// DefaultAlphabet is the default short code alphabet.
	DefaultAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Generator produces random short codes drawn from a fixed alphabet.
type Generator struct {
	length   int
	alphabet string
}

// NewGenerator creates a Generator with the given code length and alphabet.
// Non-positive lengths and empty alphabets fall back to the defaults.
func NewGenerator(length int, alphabet string) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}

	return &Generator{
		length:   length,
		alphabet: alphabet,
	}
}

// Generate returns a new random short code. Each character is drawn
// independently and uniformly from the alphabet using a cryptographically
// secure source.
func (g *Generator) Generate() (string, error) {
	const op = "shortcode.Generator.Generate"

	code, err := gonanoid.Generate(g.alphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}

// IsValid reports whether code has exactly the configured length and
// contains only characters from the alphabet. It is used to validate custom
// codes and to reject malformed codes before they ever reach storage.
func (g *Generator) IsValid(code string) bool {
	if len(code) != g.length {
		return false
	}

	for _, c := range code {
		if !strings.ContainsRune(g.alphabet, c) {
			return false
		}
	}

	return true
}
