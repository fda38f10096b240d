// Package models defines core data structures for buckets, requests, and gallery payloads.
package models

import (
	"errors"
	"fmt"
)

// ErrMixedBucket reports a bucket whose content needs more than one store type.
var ErrMixedBucket = errors.New("bucket mixes set, sorted set, and hash content")

// BucketKind is the store type a bucket is loaded as.
type BucketKind int

const (
	KindEmpty BucketKind = iota
	KindSet
	KindSorted
	KindHash
	KindMixed
)

func (k BucketKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindSet:
		return "set"
	case KindSorted:
		return "sorted set"
	case KindHash:
		return "hash"
	default:
		return "mixed"
	}
}

// combine merges two kinds; empty is neutral.
func (k BucketKind) combine(other BucketKind) BucketKind {
	switch {
	case k == KindEmpty:
		return other
	case other == KindEmpty || other == k:
		return k
	default:
		return KindMixed
	}
}

// Member is one item in a bucket. Rank is set for sorted buckets only.
type Member struct {
	Name string   `json:"name"`
	Rank *float64 `json:"rank,omitempty"`
}

// Ranked reports whether the member carries a sort rank.
func (m Member) Ranked() bool {
	return m.Rank != nil
}

// BucketData is the seeded content of a single bucket.
// Members back set and sorted-set buckets; Fields back hash buckets.
type BucketData struct {
	Name    string            `json:"name"`
	Members []Member          `json:"members,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Kind reports the store type b needs.
func (b BucketData) Kind() BucketKind {
	kind := KindEmpty
	for _, m := range b.Members {
		if m.Ranked() {
			kind = kind.combine(KindSorted)
		} else {
			kind = kind.combine(KindSet)
		}
	}
	if len(b.Fields) > 0 {
		kind = kind.combine(KindHash)
	}
	return kind
}

// Dataset is a full snapshot of bucket contents, loaded in one step.
type Dataset struct {
	Buckets []BucketData `json:"buckets"`
}

// MemberCount returns the total number of members and fields across all buckets.
func (d *Dataset) MemberCount() int {
	n := 0
	for _, b := range d.Buckets {
		n += len(b.Members) + len(b.Fields)
	}
	return n
}

// Validate checks that each bucket name maps to a single store type.
// Entries sharing a name are judged together.
func (d *Dataset) Validate() error {
	if d == nil {
		return nil
	}
	kinds := make(map[string]BucketKind, len(d.Buckets))
	for _, b := range d.Buckets {
		kinds[b.Name] = kinds[b.Name].combine(b.Kind())
		if kinds[b.Name] == KindMixed {
			return fmt.Errorf("%w: %q", ErrMixedBucket, b.Name)
		}
	}
	return nil
}
