// Package vsa provides binary hypervectors for the agent's vector-symbolic layer:
// deterministic token and symbol vectors, majority bundling and Hamming similarity.
package vsa

import (
	"errors"
	"fmt"
	"math/bits"
)

// Sentinel errors for the vector space.
var (
	ErrEmptyText         = errors.New("vsa: text has no encodable tokens")
	ErrNoVectors         = errors.New("vsa: nothing to bundle")
	ErrDimensionMismatch = errors.New("vsa: vector dimension mismatch")
)

// Vector is a dense binary hypervector. Dim is always a multiple of 64.
type Vector struct {
	Dim  int      `json:"dim"`
	Bits []uint64 `json:"bits"`
}

// IsZero reports whether the vector was never initialised.
func (v Vector) IsZero() bool {
	return v.Dim == 0
}

// Clone returns a deep copy of v.
func (v Vector) Clone() Vector {
	out := Vector{Dim: v.Dim, Bits: make([]uint64, len(v.Bits))}
	copy(out.Bits, v.Bits)
	return out
}

// Similarity returns 1 - normalized Hamming distance, in [0,1].
// Two unrelated random vectors score close to 0.5.
// Vectors of different dimension score 0.
func Similarity(a, b Vector) float64 {
	if a.Dim == 0 || a.Dim != b.Dim || len(a.Bits) != len(b.Bits) {
		return 0
	}
	diff := 0
	for i := range a.Bits {
		diff += bits.OnesCount64(a.Bits[i] ^ b.Bits[i])
	}
	return 1 - float64(diff)/float64(a.Dim)
}

// majority bundles vs bitwise. Ties (even counts) take the bit from tie.
func majority(dim int, vs []Vector, tie Vector) (Vector, error) {
	if len(vs) == 0 {
		return Vector{}, ErrNoVectors
	}
	for _, v := range vs {
		if v.Dim != dim {
			return Vector{}, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dim, v.Dim)
		}
	}
	if len(vs) == 1 {
		return vs[0].Clone(), nil
	}

	words := dim / 64
	out := Vector{Dim: dim, Bits: make([]uint64, words)}
	n := len(vs)
	counts := make([]int, 64)
	for w := 0; w < words; w++ {
		for i := range counts {
			counts[i] = 0
		}
		for _, v := range vs {
			word := v.Bits[w]
			for word != 0 {
				b := bits.TrailingZeros64(word)
				counts[b]++
				word &= word - 1
			}
		}
		var result uint64
		for b := 0; b < 64; b++ {
			switch {
			case counts[b]*2 > n:
				result |= 1 << uint(b)
			case counts[b]*2 == n:
				result |= tie.Bits[w] & (1 << uint(b))
			}
		}
		out.Bits[w] = result
	}
	return out, nil
}
