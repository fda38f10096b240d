package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/recipeshelf/shelf/internal/models"
)

type memoryBucket struct {
	members []models.Member
	index   map[string]int
	fields  []string
}

// MemoryStorage implements Storage in process memory. Ordering matches
// SQLiteStorage: unranked members first in insertion order, then by rank.
type MemoryStorage struct {
	mu      sync.RWMutex
	buckets map[string]*memoryBucket
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{buckets: make(map[string]*memoryBucket)}
}

// ListMembers returns a copy of the bucket's members.
func (s *MemoryStorage) ListMembers(_ context.Context, bucket string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return []string{}, nil
	}
	members := append([]models.Member(nil), b.members...)
	sort.SliceStable(members, func(i, j int) bool {
		ri, rj := members[i].Rank, members[j].Rank
		switch {
		case ri == nil && rj == nil:
			return false
		case ri == nil:
			return true
		case rj == nil:
			return false
		default:
			return *ri < *rj
		}
	})
	names := make([]string, 0, len(members)+len(b.fields))
	for _, m := range members {
		names = append(names, m.Name)
	}
	return append(names, b.fields...), nil
}

// Buckets returns the bucket names, sorted.
func (s *MemoryStorage) Buckets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Replace swaps in a fresh copy of ds.
func (s *MemoryStorage) Replace(_ context.Context, ds *models.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	next := make(map[string]*memoryBucket, len(ds.Buckets))
	for _, data := range ds.Buckets {
		if data.Kind() == models.KindEmpty {
			continue
		}
		b, ok := next[data.Name]
		if !ok {
			b = &memoryBucket{index: make(map[string]int)}
			next[data.Name] = b
		}
		for _, m := range data.Members {
			if i, dup := b.index[m.Name]; dup {
				b.members[i].Rank = m.Rank
				continue
			}
			b.index[m.Name] = len(b.members)
			b.members = append(b.members, m)
		}
		if len(data.Fields) > 0 {
			b.fields = append(b.fields, sortedKeys(data.Fields)...)
		}
	}
	s.mu.Lock()
	s.buckets = next
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}
