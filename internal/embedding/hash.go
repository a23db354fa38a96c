package embedding

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// DefaultHashDimensions is the HashProvider vector length.
const DefaultHashDimensions = 256

// HashProvider is an offline embedder using feature hashing over lowercase
// word tokens and path-like segments. Texts sharing vocabulary land close
// together, which is enough for keyword-level retrieval without a model.
type HashProvider struct {
	dimensions int
}

// NewHashProvider creates a hash embedder. A non-positive dims uses
// DefaultHashDimensions.
func NewHashProvider(dims int) *HashProvider {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashProvider{dimensions: dims}
}

// Embed never fails unless ctx is done.
func (p *HashProvider) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, transportError(ctx, "hash", err)
		}
		out[i] = Vector{Values: p.vector(text), Tokens: estimateTokens(text)}
	}
	return out, nil
}

func (p *HashProvider) vector(text string) []float32 {
	v := make([]float32, p.dimensions)
	for _, tok := range tokenize(text) {
		sum := blake2b.Sum256([]byte(tok))
		h := binary.LittleEndian.Uint64(sum[:8])
		idx := int(h % uint64(p.dimensions))
		if sum[8]&1 == 0 {
			v[idx]++
		} else {
			v[idx]--
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

// Model returns "hash-<dims>".
func (p *HashProvider) Model() string { return fmt.Sprintf("hash-%d", p.dimensions) }

// Dimensions returns the vector length.
func (p *HashProvider) Dimensions() int { return p.dimensions }

// tokenize splits on anything that is not a letter or digit, lowercases, and
// also splits camelCase words so "LoginForm" matches "login".
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		for _, part := range splitCamel(f) {
			if len(part) < 2 {
				continue
			}
			tokens = append(tokens, strings.ToLower(part))
		}
	}
	return tokens
}

func splitCamel(s string) []string {
	var parts []string
	start := 0
	runes := []rune(s)
	for i := 1; i < len(runes); i++ {
		if unicode.IsUpper(runes[i]) && unicode.IsLower(runes[i-1]) {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	return append(parts, string(runes[start:]))
}
