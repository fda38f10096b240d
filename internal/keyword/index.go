// Package keyword provides full-text search over bucket item names.
package keyword

import (
	"context"

	"github.com/recipeshelf/shelf/internal/models"
)

// SearchOptions optional parameters for item search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
	// Bucket restricts hits to a single bucket when set.
	Bucket string
}

// MemberSource is the store view the index is rebuilt from.
type MemberSource interface {
	Buckets(ctx context.Context) ([]string, error)
	ListMembers(ctx context.Context, bucket string) ([]string, error)
}

// ItemIndex defines item search operations.
type ItemIndex interface {
	// Rebuild replaces the indexed items with the current store contents and
	// returns the number of items indexed.
	Rebuild(ctx context.Context, src MemberSource) (int, error)
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*models.SearchHit, error)
	// DocCount returns the total number of items in the index.
	DocCount() (uint64, error)
	Close() error
}
