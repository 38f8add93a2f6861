// Package trading provides the order execution service and the HTTP
// handlers for placing orders, reading portfolios, and account registration.
//
// Order execution is the one concurrency-sensitive path in the system:
// the accounting engine computes against a snapshot, and the store's
// revision-checked conditional write decides whether that snapshot was
// still current. Conflicts are retried up to a configured attempt budget; all
// other failures surface immediately.
package trading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hafeefas/investment-simulator/internal/auth"
	"github.com/hafeefas/investment-simulator/internal/ledger"
	"github.com/hafeefas/investment-simulator/internal/metrics"
	"github.com/hafeefas/investment-simulator/internal/model"
	"github.com/hafeefas/investment-simulator/internal/quote"
	"github.com/hafeefas/investment-simulator/internal/store"
	"github.com/hafeefas/investment-simulator/internal/symbol"
)

var (
	// ErrConcurrencyExhausted is returned when every conditional write in
	// the attempt budget lost to a concurrent update.
	ErrConcurrencyExhausted = errors.New("trading: retry budget exhausted under contention")

	// ErrQuoteUnavailable is returned when no usable price could be
	// obtained for the order's symbol.
	ErrQuoteUnavailable = errors.New("trading: quote unavailable")

	// ErrStoreTimeout is returned when the ledger store could not be
	// reached within the per-attempt timeout.
	ErrStoreTimeout = errors.New("trading: ledger store timeout")
)

// Service executes orders and serves the trading API. All coordination
// happens through the store's conditional write; the service itself holds
// no per-user locks, so it scales across process instances.
type Service struct {
	store           store.Store
	quotes          quote.Source
	tokens          *auth.TokenAuthority
	hub             *Hub // optional, for trade broadcasts
	maxAttempts     int
	storeTimeout    time.Duration
	startingBalance decimal.Decimal
}

// NewService creates a trading service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, quotes quote.Source, tokens *auth.TokenAuthority, hub *Hub, maxAttempts int, storeTimeout time.Duration, startingBalance decimal.Decimal) *Service {
	return &Service{
		store:           st,
		quotes:          quotes,
		tokens:          tokens,
		hub:             hub,
		maxAttempts:     maxAttempts,
		storeTimeout:    storeTimeout,
		startingBalance: startingBalance,
	}
}

// ExecuteOrder runs one buy/sell order end-to-end: fetch a quote, apply the
// accounting engine to the current ledger snapshot, and commit through the
// store's conditional write, retrying only on revision conflicts.
func (s *Service) ExecuteOrder(ctx context.Context, userID string, kind model.TransactionKind, rawSymbol string, quantity int64) (*model.OrderResult, error) {
	if kind != model.KindBuy && kind != model.KindSell {
		return nil, &ledger.ValidationError{Message: fmt.Sprintf("kind must be BUY or SELL, got %q", kind)}
	}
	if quantity <= 0 {
		return nil, &ledger.ValidationError{Message: fmt.Sprintf("quantity must be positive, got %d", quantity)}
	}
	sym, err := symbol.Normalize(rawSymbol)
	if err != nil {
		return nil, &ledger.ValidationError{Message: err.Error()}
	}

	// One quote per order: the executed price is a point-in-time
	// observation, not a function of retry timing.
	q, err := s.fetchQuote(ctx, sym)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.commitWithRetry(ctx, userID, kind, sym, quantity, q.Price)
	metrics.OrderLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.OrdersTotal.WithLabelValues(string(kind), "rejected").Inc()
		return nil, err
	}
	metrics.OrdersTotal.WithLabelValues(string(kind), "committed").Inc()

	slog.Info("order committed",
		"user", userID,
		"kind", kind,
		"symbol", sym,
		"qty", quantity,
		"price", q.Price.String(),
		"balance", result.NewBalance.String(),
		"revision", result.Revision,
	)

	if s.hub != nil {
		s.hub.Broadcast(Message{
			Type:      "trade_executed",
			Symbol:    sym,
			Kind:      string(kind),
			Quantity:  quantity,
			Price:     q.Price.String(),
			Timestamp: result.Transaction.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return result, nil
}

// commitWithRetry is the optimistic-concurrency loop. Engine failures
// surface immediately; only revision conflicts and store timeouts consume
// further attempts.
func (s *Service) commitWithRetry(ctx context.Context, userID string, kind model.TransactionKind, sym string, quantity int64, price decimal.Decimal) (*model.OrderResult, error) {
	var lastErr error = ErrConcurrencyExhausted

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		current, err := s.storeGet(ctx, userID)
		if errors.Is(err, ErrStoreTimeout) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		var (
			next *model.Ledger
			rec  model.TransactionRecord
		)
		if kind == model.KindBuy {
			next, rec, err = ledger.ApplyBuy(current, sym, quantity, price, now)
		} else {
			next, rec, err = ledger.ApplySell(current, sym, quantity, price, now)
		}
		if err != nil {
			// Validation and business-rule failures are not transient.
			return nil, err
		}

		err = s.storePut(ctx, next, current.Revision)
		switch {
		case err == nil:
			return &model.OrderResult{
				Transaction: rec,
				NewBalance:  next.CashBalance,
				Revision:    next.Revision,
			}, nil
		case errors.Is(err, store.ErrRevisionConflict):
			metrics.RevisionConflicts.Inc()
			lastErr = ErrConcurrencyExhausted
		case errors.Is(err, ErrStoreTimeout):
			lastErr = err
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

func (s *Service) storeGet(ctx context.Context, userID string) (*model.Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	l, err := s.store.Get(ctx, userID)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %v", ErrStoreTimeout, err)
	}
	return l, err
}

func (s *Service) storePut(ctx context.Context, l *model.Ledger, expectedRevision int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	err := s.store.ConditionalPut(ctx, l, expectedRevision)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStoreTimeout, err)
	}
	return err
}

func (s *Service) fetchQuote(ctx context.Context, sym string) (*model.Quote, error) {
	start := time.Now()
	q, err := s.quotes.GetQuote(ctx, sym)
	metrics.QuoteFetchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QuoteFetchErrors.Inc()
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	if q.Price.IsNegative() {
		return nil, fmt.Errorf("%w: negative price for %s", ErrQuoteUnavailable, sym)
	}
	return q, nil
}

// GetSnapshot returns a read-only projection of a user's ledger. The
// returned value is private to the caller.
func (s *Service) GetSnapshot(ctx context.Context, userID string) (*model.Ledger, error) {
	l, err := s.storeGet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := ledger.CheckWellFormed(l); err != nil {
		slog.Error("stored ledger failed invariant check", "user", userID, "err", err)
		return nil, err
	}
	return l, nil
}

// CreateAccount creates a fresh ledger at the configured starting balance
// and issues a bearer token for the new user.
func (s *Service) CreateAccount(ctx context.Context) (userID, token string, l *model.Ledger, err error) {
	userID = uuid.New().String()
	l = model.NewLedger(userID, s.startingBalance, time.Now().UTC())

	if err := s.store.Create(ctx, l); err != nil {
		return "", "", nil, err
	}

	slog.Info("user registered", "user", userID, "balance", s.startingBalance.String())
	return userID, s.tokens.Issue(userID), l, nil
}

// --- Request/Response types ---

// OrderRequest is the JSON body for POST /api/v1/orders.
type OrderRequest struct {
	Kind     model.TransactionKind `json:"kind"` // "BUY" or "SELL"
	Symbol   string                `json:"symbol"`
	Quantity int64                 `json:"quantity"`
}

// RegisterResponse is the JSON body returned from POST /api/v1/auth/register.
type RegisterResponse struct {
	UserID      string          `json:"user_id"`
	Token       string          `json:"token"`
	CashBalance decimal.Decimal `json:"cash_balance"`
}

// --- HTTP Handlers ---

// PlaceOrder handles POST /api/v1/orders (authenticated).
func (s *Service) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	userID := auth.UserID(r.Context())
	result, err := s.ExecuteOrder(r.Context(), userID, req.Kind, req.Symbol, req.Quantity)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetPortfolio handles GET /api/v1/portfolio (authenticated).
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	l, err := s.GetSnapshot(r.Context(), userID)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(l)
}

// GetQuote handles GET /api/v1/quotes/{symbol}.
func (s *Service) GetQuote(w http.ResponseWriter, r *http.Request) {
	sym, err := symbol.Normalize(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	q, err := s.quotes.GetQuote(r.Context(), sym)
	if err != nil {
		if errors.Is(err, quote.ErrNotFound) {
			writeError(w, "unknown symbol: "+sym, http.StatusNotFound)
			return
		}
		writeError(w, "quote provider unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(q)
}

// Register handles POST /api/v1/auth/register.
func (s *Service) Register(w http.ResponseWriter, r *http.Request) {
	userID, token, l, err := s.CreateAccount(r.Context())
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(RegisterResponse{
		UserID:      userID,
		Token:       token,
		CashBalance: l.CashBalance,
	})
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var ve *ledger.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrPositionNotFound),
		errors.Is(err, ledger.ErrZeroCostBasis):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrLedgerNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConcurrencyExhausted):
		return http.StatusConflict
	case errors.Is(err, ErrQuoteUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrStoreTimeout):
		return http.StatusGatewayTimeout
	default:
		// Includes ledger.ErrInvariantViolation: corrupted state is a
		// server-side failure, already logged where detected.
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
