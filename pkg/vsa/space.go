package vsa

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// DefaultDimension is the hypervector width used when none is configured.
const DefaultDimension = 10048

// Space generates deterministic hypervectors for tokens and text.
// Token vectors are cached; the cache is safe for concurrent readers.
type Space struct {
	dim  int
	seed uint64

	mu     sync.RWMutex
	tokens map[string]Vector
}

// NewSpace creates a vector space. dim is rounded up to a multiple of 64.
func NewSpace(dim int, seed uint64) *Space {
	if dim <= 0 {
		dim = DefaultDimension
	}
	if rem := dim % 64; rem != 0 {
		dim += 64 - rem
	}
	return &Space{
		dim:    dim,
		seed:   seed,
		tokens: make(map[string]Vector),
	}
}

// Dimension returns the vector width in bits.
func (s *Space) Dimension() int {
	return s.dim
}

// Random returns the pseudo-random vector assigned to key. The same key and
// seed always produce the same vector.
func (s *Space) Random(key string) Vector {
	state := xxhash.Sum64String(fmt.Sprintf("%d|%s", s.seed, key))
	v := Vector{Dim: s.dim, Bits: make([]uint64, s.dim/64)}
	for i := range v.Bits {
		v.Bits[i] = splitmix64(&state)
	}
	return v
}

// Token returns the cached vector for a single normalized token.
func (s *Space) Token(token string) Vector {
	s.mu.RLock()
	v, ok := s.tokens[token]
	s.mu.RUnlock()
	if ok {
		return v
	}

	v = s.Random("tok:" + token)
	s.mu.Lock()
	s.tokens[token] = v
	s.mu.Unlock()
	return v
}

// Encode turns a short text into a semantic vector by bundling its token vectors.
// Texts that share words land closer together than unrelated texts.
func (s *Space) Encode(text string) (Vector, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return Vector{}, ErrEmptyText
	}
	vs := make([]Vector, 0, len(tokens))
	for _, t := range tokens {
		vs = append(vs, s.Token(t))
	}
	return s.Bundle(vs...)
}

// Bundle superposes vectors into one by bitwise majority.
func (s *Space) Bundle(vs ...Vector) (Vector, error) {
	return majority(s.dim, vs, s.Random(fmt.Sprintf("tie:%d", len(vs))))
}

// Similarity is the Space-bound form of the package-level Similarity.
func (s *Space) Similarity(a, b Vector) float64 {
	return Similarity(a, b)
}

// Tokenize lowercases text, splits on anything that is not a letter or digit,
// drops stop words and single characters, and folds a trailing plural "s".
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

func stem(token string) string {
	if len(token) > 3 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") {
		return token[:len(token)-1]
	}
	return token
}

func splitmix64(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	z := *state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

var stopWords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "will", "would", "could",
		"should", "may", "might", "can", "to", "of", "in", "for", "on", "with",
		"at", "by", "from", "as", "into", "and", "but", "or", "not", "so",
		"all", "any", "each", "some", "such", "no", "than", "too", "very",
		"if", "when", "where", "how", "what", "which", "who", "this", "that",
		"these", "those", "it", "its", "we", "our", "you", "your", "they", "them",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
