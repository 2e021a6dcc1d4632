package domain

// Search defaults and bounds. These mirror the retrieval contract: a
// conservative similarity floor, a small default page, and a hard cap so a
// single query cannot produce unbounded responses.
const (
	// DefaultMinSimilarity is the similarity floor applied when the caller
	// does not set one.
	DefaultMinSimilarity = 0.7

	// DefaultSearchLimit is the result count when the caller does not set
	// a limit.
	DefaultSearchLimit = 10

	// MaxSearchLimit is the hard cap on the result count.
	MaxSearchLimit = 50
)

// SearchFilters narrows the candidate set of a similarity query.
// Zero-valued fields are inactive.
type SearchFilters struct {
	// ParentIDs restricts results to segments of these parent documents.
	ParentIDs []string

	// CollectionID restricts results to segments whose parent belongs to
	// this collection.
	CollectionID string

	// ExcludeSegmentIDs removes specific segments from the results
	// regardless of similarity.
	ExcludeSegmentIDs []string
}

// Empty reports whether no filter is active.
func (f SearchFilters) Empty() bool {
	return len(f.ParentIDs) == 0 && f.CollectionID == "" && len(f.ExcludeSegmentIDs) == 0
}

// Allows reports whether a segment passes the scope filters. The exclusion
// list is checked separately via Excludes.
func (f SearchFilters) Allows(seg Segment) bool {
	if f.CollectionID != "" && seg.CollectionID != f.CollectionID {
		return false
	}
	if len(f.ParentIDs) > 0 {
		found := false
		for _, id := range f.ParentIDs {
			if id == seg.ParentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Excludes reports whether a segment ID is on the block-list.
func (f SearchFilters) Excludes(segmentID string) bool {
	for _, id := range f.ExcludeSegmentIDs {
		if id == segmentID {
			return true
		}
	}
	return false
}

// SearchOptions configures a similarity query.
type SearchOptions struct {
	// Limit is the maximum number of results. Values <= 0 use
	// DefaultSearchLimit; values above MaxSearchLimit are capped.
	Limit int

	// MinSimilarity drops results scoring below it. Values <= 0 use
	// DefaultMinSimilarity.
	MinSimilarity float64

	// Filters scopes the candidate set.
	Filters SearchFilters
}

// EffectiveLimit resolves Limit against the default and the hard cap.
func (o SearchOptions) EffectiveLimit() int {
	limit := o.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return limit
}

// EffectiveMinSimilarity resolves MinSimilarity against the default.
func (o SearchOptions) EffectiveMinSimilarity() float64 {
	if o.MinSimilarity <= 0 {
		return DefaultMinSimilarity
	}
	return o.MinSimilarity
}
