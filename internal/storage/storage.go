// Package storage defines the bucket store interface and its Redis, SQLite,
// and in-memory implementations.
package storage

import (
	"context"

	"github.com/recipeshelf/shelf/internal/models"
)

// Storage is a read-mostly bucket store. Buckets are populated in one step
// by Replace and only read afterwards.
type Storage interface {
	// ListMembers returns the item names of bucket. Set buckets have no defined
	// order; sorted buckets are returned by ascending rank; hash buckets return
	// their field names. A missing bucket yields an empty slice and no error.
	ListMembers(ctx context.Context, bucket string) ([]string, error)

	// Buckets returns all bucket names, sorted.
	Buckets(ctx context.Context) ([]string, error)

	// Replace discards the current contents and loads ds. A dataset that
	// fails ds.Validate is rejected before anything is changed.
	Replace(ctx context.Context, ds *models.Dataset) error

	Close() error
}
