package quote

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hafeefas/investment-simulator/internal/model"
)

// StaticSource serves fixed prices from memory. Used in tests and local
// development without a provider.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStaticSource creates a static source with the given symbol→price table.
func NewStaticSource(prices map[string]decimal.Decimal) *StaticSource {
	cp := make(map[string]decimal.Decimal, len(prices))
	for sym, p := range prices {
		cp[sym] = p
	}
	return &StaticSource{prices: cp}
}

func (s *StaticSource) GetQuote(_ context.Context, sym string) (*model.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[sym]
	if !ok {
		return nil, ErrNotFound
	}
	return &model.Quote{
		Symbol:    sym,
		Price:     p,
		Timestamp: time.Now().UTC(),
	}, nil
}

// SetPrice updates or adds a price.
func (s *StaticSource) SetPrice(sym string, p decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[sym] = p
}
