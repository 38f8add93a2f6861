package trading

import (
	"context"
	"log/slog"
	"time"

	"github.com/hafeefas/investment-simulator/internal/quote"
)

// Streamer periodically fetches quotes for every symbol with at least one
// WebSocket subscriber and broadcasts the prices through the hub.
type Streamer struct {
	hub      *Hub
	quotes   quote.Source
	interval time.Duration
}

// NewStreamer creates a price streamer.
func NewStreamer(hub *Hub, quotes quote.Source, interval time.Duration) *Streamer {
	return &Streamer{
		hub:      hub,
		quotes:   quotes,
		interval: interval,
	}
}

// Run ticks until the context is cancelled. Quote failures for individual
// symbols are logged and skipped; the stream keeps going.
func (s *Streamer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Streamer) tick(ctx context.Context) {
	for _, sym := range s.hub.Symbols() {
		q, err := s.quotes.GetQuote(ctx, sym)
		if err != nil {
			slog.Warn("price stream fetch failed", "symbol", sym, "err", err)
			continue
		}
		s.hub.Broadcast(Message{
			Type:      "price_update",
			Symbol:    q.Symbol,
			Price:     q.Price.String(),
			Timestamp: q.Timestamp.UTC().Format(time.RFC3339),
		})
	}
}
