package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Position is the optional structured location of a segment within its
// parent document. It is purely descriptive and never part of identity.
type Position struct {
	// Page is the 1-based page number, if known.
	Page *int

	// Slide is the 1-based slide number for presentation sources.
	Slide *int

	// CharStart is the character offset where the segment begins.
	CharStart *int

	// CharEnd is the character offset where the segment ends.
	CharEnd *int

	// BBox is an optional bounding box, serialised as the producer emitted
	// it (e.g. "x,y,w,h"). The engine never interprets it.
	BBox string
}

// Segment is the atomic retrievable unit: a contiguous piece of extracted
// document text with positional metadata and an optional embedding.
//
// Segments are immutable after creation except for the embedding, which is
// attached (or replaced) later by the batch embedding updater. Content
// changes are modelled as delete-and-recreate, never edits.
type Segment struct {
	// ID is the opaque unique identifier, assigned at creation.
	ID string

	// ParentID identifies the owning document. Segments sharing a ParentID
	// share a dedup namespace.
	ParentID string

	// CollectionID optionally scopes the parent document to a collection
	// (e.g. a course of lectures). Used only for search filtering.
	CollectionID string

	// Text is the literal segment content.
	Text string

	// TokenCount is the token count derived from Text at creation. Never
	// negative.
	TokenCount int

	// Position is the optional location within the parent document.
	Position Position

	// ContentHash is the fingerprint of the normalised Text, unique within
	// ParentID. Two inserts with the same (ParentID, ContentHash) collapse
	// into one stored segment.
	ContentHash string

	// Embedding is nil until populated. Once set it has exactly the
	// configured dimension; partial vectors are rejected, never stored.
	Embedding Vector

	// CreatedAt is set once at creation.
	CreatedAt time.Time
}

// NewSegment carries the caller-supplied attributes for segment creation.
// The ID, ContentHash, and CreatedAt are assigned by the store.
type NewSegment struct {
	ParentID     string
	CollectionID string
	Text         string
	TokenCount   int
	Position     Position
}

// Validate checks the creation attributes. Empty text and negative token
// counts are caller errors.
func (n NewSegment) Validate() error {
	if strings.TrimSpace(n.Text) == "" {
		return ErrInvalidInput
	}
	if n.ParentID == "" {
		return ErrInvalidInput
	}
	if n.TokenCount < 0 {
		return ErrInvalidInput
	}
	return nil
}

// ContentHash fingerprints segment text for deduplication. The text is
// normalised first (lower-cased, runs of whitespace collapsed to a single
// space, trimmed) so that incidental formatting differences do not defeat
// dedup.
func ContentHash(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// EmbeddingUpdate pairs a segment with the vector to attach to it.
type EmbeddingUpdate struct {
	// SegmentID is the target segment.
	SegmentID string

	// Embedding is the vector to store. Must match the configured
	// dimension exactly.
	Embedding Vector
}

// SimilarityResult is a scored search hit. It is ephemeral: results are
// computed per query and never persisted. Score is in [0, 1] and decreases
// monotonically with cosine distance (1 = identical direction,
// 0 = orthogonal or worse).
type SimilarityResult struct {
	// Segment is the matched segment. Its Embedding field is nil in
	// results to keep responses small.
	Segment Segment

	// Score is the cosine similarity of the query to the stored embedding.
	Score float64
}

// StoreStats summarises the health of the segment store for the
// maintenance collaborator.
type StoreStats struct {
	// TotalSegments is the number of stored segments.
	TotalSegments int

	// SegmentsMissingEmbedding counts segments whose embedding is nil.
	SegmentsMissingEmbedding int

	// AverageTextLength is the mean Text length in bytes, rounded.
	AverageTextLength int
}
