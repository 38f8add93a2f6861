package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hafeefas/investment-simulator/internal/model"
)

// HTTPSource fetches quotes from a JSON provider endpoint:
//
//	GET {baseURL}/quote?symbol=AAPL
//	→ {"symbol":"AAPL","price":"189.41","timestamp":"2025-06-01T12:00:00Z"}
//
// Price is accepted as either a JSON string or number; it is parsed into
// decimal without ever passing through float64.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPSource creates a provider client. timeout bounds each request
// independently of the caller's context.
func NewHTTPSource(baseURL string, client *http.Client, timeout time.Duration) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		baseURL: baseURL,
		client:  client,
		timeout: timeout,
	}
}

type providerQuote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

func (s *HTTPSource) GetQuote(ctx context.Context, sym string) (*model.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/quote?symbol=%s", s.baseURL, url.QueryEscape(sym))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sym)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: provider returned %s", ErrUnavailable, resp.Status)
	}

	var pq providerQuote
	if err := json.NewDecoder(resp.Body).Decode(&pq); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if pq.Price.IsNegative() {
		return nil, fmt.Errorf("%w: negative price for %s", ErrUnavailable, sym)
	}

	ts := pq.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &model.Quote{
		Symbol:    sym,
		Price:     pq.Price,
		Timestamp: ts,
	}, nil
}
