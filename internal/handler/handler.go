// Package handler adapts raw JSON events to bucket requests. It is the entry
// point for both the Lambda runtime and the HTTP events endpoint.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/recipeshelf/shelf/internal/buckets"
	"github.com/recipeshelf/shelf/internal/models"
	"go.uber.org/zap"
)

// ErrMalformedEvent wraps events that are not valid request JSON.
var ErrMalformedEvent = errors.New("malformed event")

// Resolver is the core capability the handler drives.
type Resolver interface {
	Handle(ctx context.Context, req *models.Request) (*buckets.Result, error)
}

// Decode parses a raw event. An empty or null event yields a nil request so
// the resolver can reject it.
func Decode(raw json.RawMessage) (*models.Request, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var req models.Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &req, nil
}

// Handler decodes events and resolves them.
type Handler struct {
	resolver Resolver
	logger   *zap.Logger
}

// New creates a handler. A nil logger is replaced with a no-op logger.
func New(resolver Resolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{resolver: resolver, logger: logger}
}

// Handle decodes raw and resolves it. Errors are returned unchanged so the
// caller sees the resolver's message.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (*buckets.Result, error) {
	log := h.logger.With(zap.String("invocation_id", uuid.NewString()))

	req, err := Decode(raw)
	if err != nil {
		log.Warn("invalid event payload", zap.Error(err))
		return nil, err
	}
	res, err := h.resolver.Handle(ctx, req)
	if err != nil {
		log.Warn("event failed", zap.Error(err))
		return nil, err
	}
	log.Info("event handled",
		zap.String("bucket", req.Bucket),
		zap.Bool("for_chat", req.ForChat),
		zap.Int("items", res.Len()),
	)
	return res, nil
}
