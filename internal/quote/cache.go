package quote

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/hafeefas/investment-simulator/internal/model"
)

// CachedSource wraps a Source with a ristretto TTL cache. A quote is a
// point-in-time observation, so serving one a few seconds old is fine for
// both order execution and streaming; the TTL bounds the staleness.
type CachedSource struct {
	source Source
	cache  *ristretto.Cache
	ttl    time.Duration
}

// NewCachedSource creates a caching wrapper around a quote source.
func NewCachedSource(source Source, ttl time.Duration) (*CachedSource, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1e3,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedSource{
		source: source,
		cache:  cache,
		ttl:    ttl,
	}, nil
}

func (s *CachedSource) GetQuote(ctx context.Context, sym string) (*model.Quote, error) {
	if v, ok := s.cache.Get(sym); ok {
		q := v.(model.Quote)
		return &q, nil
	}

	q, err := s.source.GetQuote(ctx, sym)
	if err != nil {
		return nil, err
	}

	s.cache.SetWithTTL(sym, *q, 1, s.ttl)
	return q, nil
}

// Close releases the cache's background goroutines.
func (s *CachedSource) Close() {
	s.cache.Close()
}
