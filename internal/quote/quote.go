// Package quote provides market price lookup. The HTTP source talks to a
// configurable quote provider; the cached source keeps recent quotes in a
// ristretto TTL cache so the streamer and order path don't hammer the
// provider; the static source serves fixed prices for tests.
package quote

import (
	"context"
	"errors"

	"github.com/hafeefas/investment-simulator/internal/model"
)

var (
	// ErrNotFound is returned when the provider knows no such symbol.
	ErrNotFound = errors.New("quote: symbol not found")

	// ErrUnavailable is returned when the provider cannot be reached or
	// returns an unusable response.
	ErrUnavailable = errors.New("quote: provider unavailable")
)

// Source produces a point-in-time quote for a symbol.
type Source interface {
	GetQuote(ctx context.Context, symbol string) (*model.Quote, error)
}
