package buckets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/recipeshelf/shelf/internal/models"
	"go.uber.org/zap"
)

// MemberLister is the only store capability the resolver needs.
type MemberLister interface {
	ListMembers(ctx context.Context, bucket string) ([]string, error)
}

// Result is either a flat list of names or a gallery. It encodes as a JSON
// array of strings or as the gallery envelope respectively.
type Result struct {
	Names   []string
	Gallery *models.Gallery
}

// MarshalJSON encodes whichever form the result holds.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Gallery != nil {
		return json.Marshal(r.Gallery)
	}
	names := r.Names
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// Len returns the number of names or gallery cards.
func (r *Result) Len() int {
	if r.Gallery != nil {
		return len(r.Gallery.Elements())
	}
	return len(r.Names)
}

// Service resolves bucket requests.
type Service struct {
	store  MemberLister
	urls   *URLBuilder
	logger *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithURLBuilder overrides the default gallery URL builder.
func WithURLBuilder(b *URLBuilder) ServiceOption {
	return func(s *Service) { s.urls = b }
}

// NewService creates a resolver over store.
func NewService(store MemberLister, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		urls:   NewURLBuilder("", "", nil),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle validates req, reads the bucket once, and shapes the result.
// Missing or empty buckets produce an empty result, not an error.
func (s *Service) Handle(ctx context.Context, req *models.Request) (*Result, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	names, err := s.store.ListMembers(ctx, req.Bucket)
	if err != nil {
		return nil, fmt.Errorf("list bucket %q: %w", req.Bucket, err)
	}
	s.logger.Debug("bucket resolved",
		zap.String("bucket", req.Bucket),
		zap.Bool("for_chat", req.ForChat),
		zap.Int("members", len(names)),
	)
	if req.ForChat {
		return &Result{Gallery: s.urls.Gallery(req.Bucket, names)}, nil
	}
	if names == nil {
		names = []string{}
	}
	return &Result{Names: names}, nil
}
