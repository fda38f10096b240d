// Package cli provides output formatting for the shelf command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/recipeshelf/shelf/internal/buckets"
	"github.com/recipeshelf/shelf/internal/models"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one item per line, tab separated, for piping.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// Status is the service status reported by `shelf status` and GET /api/v1/status.
type Status struct {
	Buckets         int        `json:"buckets"`
	Driver          string     `json:"driver"`
	IndexedItems    *uint64    `json:"indexed_items,omitempty"`
	DiskUsageBytes  *int64     `json:"disk_usage_bytes,omitempty"`
	LastLoad        *time.Time `json:"last_load,omitempty"`
	LastLoadBuckets int        `json:"last_load_buckets,omitempty"`
}

// DecodeBucketResult reads a bucket lookup response body: a JSON array of
// names, or the gallery envelope when forChat is set.
func DecodeBucketResult(r io.Reader, forChat bool) (*buckets.Result, error) {
	dec := json.NewDecoder(r)
	if forChat {
		var g models.Gallery
		if err := dec.Decode(&g); err != nil {
			return nil, fmt.Errorf("decode gallery: %w", err)
		}
		return &buckets.Result{Gallery: &g}, nil
	}
	var names []string
	if err := dec.Decode(&names); err != nil {
		return nil, fmt.Errorf("decode names: %w", err)
	}
	return &buckets.Result{Names: names}, nil
}

// WriteBucketResult writes a bucket lookup result to w in the given format.
func WriteBucketResult(w io.Writer, bucket string, res *buckets.Result, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	case OutputCompact:
		if res.Gallery != nil {
			for _, e := range res.Gallery.Elements() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Title, e.ImageURL, e.ItemURL)
			}
			return nil
		}
		for _, name := range res.Names {
			fmt.Fprintln(w, name)
		}
		return nil
	default:
		writeBucketText(w, bucket, res)
		return nil
	}
}

func writeBucketText(w io.Writer, bucket string, res *buckets.Result) {
	n := res.Len()
	fmt.Fprintf(w, "%s: %d item(s)\n", bucket, n)
	if n == 0 {
		return
	}
	fmt.Fprintln(w)
	if res.Gallery != nil {
		for i, e := range res.Gallery.Elements() {
			fmt.Fprintf(w, "%d. %s\n", i+1, e.Title)
			fmt.Fprintf(w, "   image: %s\n", e.ImageURL)
			fmt.Fprintf(w, "   link:  %s\n", e.ItemURL)
		}
		return
	}
	for _, name := range res.Names {
		fmt.Fprintf(w, "  - %s\n", name)
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, h := range response.Hits {
			fmt.Fprintf(w, "%.4f\t%s\t%s\n", h.Score, h.Bucket, h.Name)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "Found %d item(s) for %q in %dms\n", response.Total, response.Query, response.QueryTime)
	if response.AutoFuzzy {
		fmt.Fprintln(w, "(no exact matches; showing fuzzy matches)")
	}
	if len(response.Hits) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i, h := range response.Hits {
		fmt.Fprintf(w, "%2d. %-30s %-16s %.4f\n", i+1, Truncate(h.Name, 30), h.Bucket, h.Score)
	}
}

// WriteStatus writes a status report to w. Compact is treated as text.
func WriteStatus(w io.Writer, status *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "driver:             %s\n", status.Driver)
	fmt.Fprintf(w, "buckets:            %d\n", status.Buckets)
	if status.IndexedItems != nil {
		fmt.Fprintf(w, "indexed_items:      %d   # items in the search index\n", *status.IndexedItems)
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # store + index on disk\n", *status.DiskUsageBytes)
	}
	if status.LastLoad != nil {
		fmt.Fprintf(w, "last_load:          %s (%d buckets)\n", status.LastLoad.Format(time.RFC3339), status.LastLoadBuckets)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate truncates s to maxLen bytes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
