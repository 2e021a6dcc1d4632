package domain

import (
	"encoding/binary"
	"math"
)

// DefaultDimension is the embedding dimension used when none is configured.
// It matches the 1536-component output of common embedding models.
const DefaultDimension = 1536

// Vector is a fixed-dimension embedding. Vectors are opaque value types:
// they carry no identity and are always compared and stored by value.
type Vector []float32

// Validate returns a *DimensionError when the vector does not have exactly
// dim components.
func (v Vector) Validate(dim int) error {
	if len(v) != dim {
		return &DimensionError{Got: len(v), Want: dim}
	}
	return nil
}

// Norm returns the Euclidean (L2) norm of the vector.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Dot returns the dot product of two vectors of equal length.
func (v Vector) Dot(other Vector) float64 {
	var sum float64
	for i := range v {
		sum += float64(v[i]) * float64(other[i])
	}
	return sum
}

// Normalized returns a unit-length copy of the vector. A zero-norm vector
// is returned unchanged; its similarity to anything is defined as 0.
func (v Vector) Normalized() Vector {
	norm := v.Norm()
	if norm == 0 {
		out := make(Vector, len(v))
		copy(out, v)
		return out
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// CosineSimilarity returns the cosine similarity of a and b, clamped to
// [0, 1] to absorb floating-point overshoot. A zero-norm vector has
// similarity 0 against any vector, including itself: the cosine formula
// is undefined there and treating it as "dissimilar to everything" keeps
// the zero vector legal input without a division by zero.
//
// Vectors must have equal length; validate dimensions before calling.
func CosineSimilarity(a, b Vector) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return ClampScore(a.Dot(b) / (na * nb))
}

// CosineDistance returns 1 - CosineSimilarity(a, b).
func CosineDistance(a, b Vector) float64 {
	return 1 - CosineSimilarity(a, b)
}

// ClampScore bounds a similarity score to [0, 1].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// EncodeVector serialises a vector to a flat little-endian float32 blob,
// 4 bytes per component. A nil or empty vector encodes to nil.
func EncodeVector(v Vector) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector deserialises a blob produced by EncodeVector.
// A nil or empty blob decodes to nil.
func DecodeVector(data []byte) Vector {
	if len(data) == 0 {
		return nil
	}
	v := make(Vector, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}

// EncodedLen returns the blob length of an embedding with dim components.
// Used by maintenance to detect structurally invalid stored vectors.
func EncodedLen(dim int) int {
	return dim * 4
}
