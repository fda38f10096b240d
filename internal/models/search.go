package models

import "fmt"

// SearchQuery is an item search across all buckets.
type SearchQuery struct {
	Query        string `json:"query"`
	Limit        int    `json:"limit,omitempty"`
	FuzzyEnabled bool   `json:"fuzzy_enabled,omitempty"` // typo tolerance
	// Bucket restricts the search to one bucket when set.
	Bucket string `json:"bucket,omitempty"`
}

// Validate ensures the query is non-empty and clamps the limit to [1, 100].
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// SearchHit is a single item match.
type SearchHit struct {
	Bucket string  `json:"bucket"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
}

// SearchResponse is the response for an item search.
type SearchResponse struct {
	Query     string       `json:"query"`
	Hits      []*SearchHit `json:"hits"`
	Total     int          `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
	// AutoFuzzy is set when the exact search found nothing and a fuzzy retry did.
	AutoFuzzy bool `json:"auto_fuzzy,omitempty"`
}
