// Package search runs item searches against the keyword index.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/recipeshelf/shelf/internal/config"
	"github.com/recipeshelf/shelf/internal/keyword"
	"github.com/recipeshelf/shelf/internal/models"
	"go.uber.org/zap"
)

// Engine searches bucket items and keeps the index in step with the store.
type Engine struct {
	index  keyword.ItemIndex
	config *config.SearchConfig
	logger *zap.Logger
}

// NewEngine creates a search engine. A nil logger is replaced with a no-op logger.
func NewEngine(index keyword.ItemIndex, cfg *config.SearchConfig, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = &config.SearchConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{index: index, config: cfg, logger: logger}
}

// Reindex rebuilds the item index from src.
func (e *Engine) Reindex(ctx context.Context, src keyword.MemberSource) error {
	start := time.Now()
	n, err := e.index.Rebuild(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to rebuild item index: %w", err)
	}
	e.logger.Debug("item index rebuilt", zap.Int("items", n), zap.Duration("took", time.Since(start)))
	return nil
}

// IndexedItems returns the number of items in the index.
func (e *Engine) IndexedItems() (uint64, error) {
	return e.index.DocCount()
}

// Search runs query. When an exact search finds nothing and fuzzy matching was
// not requested, the search is retried with fuzzy matching and the response
// is marked AutoFuzzy.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := e.processQuery(query); err != nil {
		return nil, err
	}

	opts := &keyword.SearchOptions{
		FuzzyEnabled: query.FuzzyEnabled,
		Fuzziness:    e.config.Fuzziness,
		Bucket:       query.Bucket,
	}
	hits, err := e.index.Search(ctx, query.Query, query.Limit, opts)
	if err != nil {
		return nil, fmt.Errorf("item search failed: %w", err)
	}

	autoFuzzy := false
	if len(hits) == 0 && !query.FuzzyEnabled {
		opts.FuzzyEnabled = true
		hits, err = e.index.Search(ctx, query.Query, query.Limit, opts)
		if err != nil {
			return nil, fmt.Errorf("fuzzy item search failed: %w", err)
		}
		autoFuzzy = len(hits) > 0
	}

	NormalizeScores(hits)
	e.logger.Debug("item search",
		zap.String("query", query.Query),
		zap.Int("hits", len(hits)),
		zap.Bool("auto_fuzzy", autoFuzzy),
	)
	return &models.SearchResponse{
		Query:     query.Query,
		Hits:      hits,
		Total:     len(hits),
		QueryTime: time.Since(startTime).Milliseconds(),
		AutoFuzzy: autoFuzzy,
	}, nil
}

// processQuery applies the configured limits, then the model defaults.
func (e *Engine) processQuery(query *models.SearchQuery) error {
	if query.Limit <= 0 && e.config.DefaultLimit > 0 {
		query.Limit = e.config.DefaultLimit
	}
	if e.config.MaxLimit > 0 && query.Limit > e.config.MaxLimit {
		query.Limit = e.config.MaxLimit
	}
	return query.Validate()
}

// NormalizeScores scales hit scores to [0,1] by the best score, in place.
func NormalizeScores(hits []*models.SearchHit) {
	maxScore := 0.0
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	for _, h := range hits {
		if maxScore > 0 {
			h.Score /= maxScore
		} else {
			h.Score = 0
		}
	}
}
