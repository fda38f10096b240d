// Package seed parses dataset files and bulk-loads them into a bucket store.
//
// A dataset file is a JSON object keyed by bucket name:
//
//	{
//	  "collections": ["Curries", "Lunch"],          // set
//	  "popular": [{"Biryani": 1}, {"Dal": 3}],      // sorted set, name -> rank
//	  "recipe:dosa": {"title": "Masala dosa"}       // hash
//	}
//
// An array holds either plain values or rank objects, never both.
package seed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/recipeshelf/shelf/internal/models"
)

// Parse reads a dataset from r. Buckets are returned sorted by name.
func Parse(r io.Reader) (*models.Dataset, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	ds := &models.Dataset{Buckets: make([]models.BucketData, 0, len(names))}
	for _, name := range names {
		b, err := parseBucket(name, raw[name])
		if err != nil {
			return nil, err
		}
		ds.Buckets = append(ds.Buckets, b)
	}
	return ds, nil
}

// ParseFile reads a dataset from the file at path.
func ParseFile(path string) (*models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	ds, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

func parseBucket(name string, value json.RawMessage) (models.BucketData, error) {
	b := models.BucketData{Name: name}
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return b, fmt.Errorf("bucket %q: empty value", name)
	}
	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := unmarshalNumber(trimmed, &elems); err != nil {
			return b, fmt.Errorf("bucket %q: %w", name, err)
		}
		for _, elem := range elems {
			members, err := parseMembers(name, elem)
			if err != nil {
				return b, err
			}
			b.Members = append(b.Members, members...)
		}
	case '{':
		var fields map[string]interface{}
		if err := unmarshalNumber(trimmed, &fields); err != nil {
			return b, fmt.Errorf("bucket %q: %w", name, err)
		}
		b.Fields = make(map[string]string, len(fields))
		for k, v := range fields {
			s, err := scalarString(v)
			if err != nil {
				return b, fmt.Errorf("bucket %q field %q: %w", name, k, err)
			}
			b.Fields[k] = s
		}
	default:
		return b, fmt.Errorf("bucket %q: expected array or object", name)
	}
	if b.Kind() == models.KindMixed {
		return b, fmt.Errorf("bucket %q: %w", name, models.ErrMixedBucket)
	}
	return b, nil
}

// parseMembers handles one array element: a scalar set member, or an
// object of name -> rank pairs.
func parseMembers(bucket string, elem json.RawMessage) ([]models.Member, error) {
	trimmed := bytes.TrimSpace(elem)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var ranks map[string]interface{}
		if err := unmarshalNumber(trimmed, &ranks); err != nil {
			return nil, fmt.Errorf("bucket %q: %w", bucket, err)
		}
		names := make([]string, 0, len(ranks))
		for n := range ranks {
			names = append(names, n)
		}
		sort.Strings(names)
		members := make([]models.Member, 0, len(names))
		for _, n := range names {
			num, ok := ranks[n].(json.Number)
			if !ok {
				return nil, fmt.Errorf("bucket %q: rank for %q is not a number", bucket, n)
			}
			r, err := num.Float64()
			if err != nil {
				return nil, fmt.Errorf("bucket %q: rank for %q: %w", bucket, n, err)
			}
			members = append(members, models.Member{Name: n, Rank: &r})
		}
		return members, nil
	}

	var v interface{}
	if err := unmarshalNumber(trimmed, &v); err != nil {
		return nil, fmt.Errorf("bucket %q: %w", bucket, err)
	}
	s, err := scalarString(v)
	if err != nil {
		return nil, fmt.Errorf("bucket %q: %w", bucket, err)
	}
	return []models.Member{{Name: s}}, nil
}

func scalarString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("unsupported value %v", v)
	}
}

func unmarshalNumber(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// Merge combines datasets in order. A bucket appearing in several datasets
// accumulates members and fields; later fields overwrite earlier ones.
// The result may hold mixed buckets; callers check it with Validate.
func Merge(sets ...*models.Dataset) *models.Dataset {
	out := &models.Dataset{}
	index := make(map[string]int)
	for _, ds := range sets {
		if ds == nil {
			continue
		}
		for _, b := range ds.Buckets {
			i, ok := index[b.Name]
			if !ok {
				index[b.Name] = len(out.Buckets)
				out.Buckets = append(out.Buckets, models.BucketData{Name: b.Name})
				i = len(out.Buckets) - 1
			}
			dst := &out.Buckets[i]
			dst.Members = append(dst.Members, b.Members...)
			if len(b.Fields) > 0 {
				if dst.Fields == nil {
					dst.Fields = make(map[string]string, len(b.Fields))
				}
				for k, v := range b.Fields {
					dst.Fields[k] = v
				}
			}
		}
	}
	sort.SliceStable(out.Buckets, func(i, j int) bool { return out.Buckets[i].Name < out.Buckets[j].Name })
	return out
}
