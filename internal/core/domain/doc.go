// Package domain defines the core business entities for Recall.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Segment: A retrievable unit of extracted document text
//   - Vector: A fixed-dimension embedding with cosine similarity math
//   - SimilarityResult: A scored search hit (never persisted)
//   - SearchFilters / SearchOptions: Query scoping and ranking knobs
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
