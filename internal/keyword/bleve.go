package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/recipeshelf/shelf/internal/models"
)

const (
	fieldBucket = "bucket"
	fieldName   = "name"
)

// BleveIndex implements ItemIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path keeps
// the index in memory, which is enough since it is rebuilt on every load.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	nameMapping := bleve.NewTextFieldMapping()
	// Standard analyzer lowercases and tokenizes without stemming, so
	// "curry" does not match "Curries" but "indian" matches "South Indian".
	nameMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldName, nameMapping)
	docMapping.AddFieldMappingsAt(fieldBucket, bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("item", docMapping)
	im.DefaultType = "item"
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// itemID is "<len(bucket)>:<bucket>/<name>". The length prefix keeps ids
// distinct when bucket or name contains a slash.
func itemID(bucket, name string) string {
	return strconv.Itoa(len(bucket)) + ":" + bucket + "/" + name
}

// Rebuild deletes every indexed item and indexes the store contents in one batch.
func (b *BleveIndex) Rebuild(ctx context.Context, src MemberSource) (int, error) {
	batch := b.index.NewBatch()

	existing, err := b.allIDs()
	if err != nil {
		return 0, err
	}
	for _, id := range existing {
		batch.Delete(id)
	}

	buckets, err := src.Buckets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list buckets: %w", err)
	}
	n := 0
	for _, bucket := range buckets {
		names, err := src.ListMembers(ctx, bucket)
		if err != nil {
			return 0, fmt.Errorf("failed to list bucket %q: %w", bucket, err)
		}
		for _, name := range names {
			doc := map[string]interface{}{fieldBucket: bucket, fieldName: name}
			if err := batch.Index(itemID(bucket, name), doc); err != nil {
				return 0, fmt.Errorf("failed to index %s/%s: %w", bucket, name, err)
			}
			n++
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("Bleve batch failed: %w", err)
	}
	return n, nil
}

func (b *BleveIndex) allIDs() ([]string, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve scan failed: %w", err)
	}
	ids := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Search matches query against item names and returns up to limit hits by descending score.
// When opts.FuzzyEnabled is true, each term is matched within opts.Fuzziness edits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*models.SearchHit, error) {
	fuzzyEnabled := false
	fuzziness := 2
	bucket := ""
	if opts != nil {
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
		bucket = opts.Bucket
	}

	var q blevequery.Query
	if fuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(fieldName)
		q = mq
	}
	if bucket != "" {
		tq := bleve.NewTermQuery(bucket)
		tq.SetField(fieldBucket)
		q = bleve.NewConjunctionQuery(q, tq)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{fieldBucket, fieldName}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	hits := make([]*models.SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		bucketName, _ := h.Fields[fieldBucket].(string)
		name, _ := h.Fields[fieldName].(string)
		hits = append(hits, &models.SearchHit{Bucket: bucketName, Name: name, Score: h.Score})
	}
	return hits, nil
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per query term, on the name field.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(fieldName)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(fieldName)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// DocCount returns the total number of items in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
