package trading_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hafeefas/investment-simulator/internal/auth"
	"github.com/hafeefas/investment-simulator/internal/ledger"
	"github.com/hafeefas/investment-simulator/internal/model"
	"github.com/hafeefas/investment-simulator/internal/quote"
	"github.com/hafeefas/investment-simulator/internal/store"
	"github.com/hafeefas/investment-simulator/internal/trading"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type testEnv struct {
	svc    *trading.Service
	store  *store.MemoryStore
	quotes *quote.StaticSource
	tokens *auth.TokenAuthority
	router chi.Router
}

// newTestEnv creates a test Service with in-memory store, static quotes,
// and a chi router mirroring the production route layout.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ms := store.NewMemoryStore()
	quotes := quote.NewStaticSource(map[string]decimal.Decimal{
		"AAPL": d(100),
		"MSFT": d(50),
	})
	tokens, err := auth.NewTokenAuthority("test-secret-0123456789abcdef")
	if err != nil {
		t.Fatalf("NewTokenAuthority failed: %v", err)
	}

	svc := trading.NewService(ms, quotes, tokens, nil, 5, time.Second, d(10000))

	r := chi.NewRouter()
	r.Post("/api/v1/auth/register", svc.Register)
	r.Get("/api/v1/quotes/{symbol}", svc.GetQuote)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokens))
		r.Post("/api/v1/orders", svc.PlaceOrder)
		r.Get("/api/v1/portfolio", svc.GetPortfolio)
	})

	return &testEnv{svc: svc, store: ms, quotes: quotes, tokens: tokens, router: r}
}

// registerUser creates an account through the API and returns id and token.
func (e *testEnv) registerUser(t *testing.T) (string, string) {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/v1/auth/register", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp trading.RegisterResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.UserID == "" || resp.Token == "" {
		t.Fatal("register: missing user_id or token")
	}
	return resp.UserID, resp.Token
}

func (e *testEnv) doOrder(t *testing.T, token string, req trading.OrderRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httpReq)
	return w
}

// --- Registration ---

func TestRegister_CreatesLedger(t *testing.T) {
	env := newTestEnv(t)
	userID, _ := env.registerUser(t)

	l, err := env.store.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("ledger not created: %v", err)
	}
	if !l.CashBalance.Equal(d(10000)) {
		t.Errorf("balance = %s, want 10000", l.CashBalance)
	}
	if l.Revision != 0 {
		t.Errorf("revision = %d, want 0", l.Revision)
	}
	if len(l.Holdings) != 0 || len(l.Transactions) != 0 {
		t.Error("new ledger should be empty")
	}
}

// --- Order execution via API ---

func TestPlaceOrder_Buy(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t)

	w := env.doOrder(t, token, trading.OrderRequest{Kind: model.KindBuy, Symbol: "AAPL", Quantity: 10})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result model.OrderResult
	json.Unmarshal(w.Body.Bytes(), &result)

	if !result.NewBalance.Equal(d(9000)) {
		t.Errorf("new balance = %s, want 9000", result.NewBalance)
	}
	if result.Revision != 1 {
		t.Errorf("revision = %d, want 1", result.Revision)
	}
	if result.Transaction.Kind != model.KindBuy {
		t.Errorf("kind = %s, want BUY", result.Transaction.Kind)
	}
	if !result.Transaction.Total.Equal(d(1000)) {
		t.Errorf("total = %s, want 1000", result.Transaction.Total)
	}
}

func TestPlaceOrder_SymbolNormalized(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.registerUser(t)

	w := env.doOrder(t, token, trading.OrderRequest{Kind: model.KindBuy, Symbol: " aapl ", Quantity: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	l, _ := env.store.Get(context.Background(), userID)
	if _, ok := l.Holdings["AAPL"]; !ok {
		t.Error("holdings should be keyed by normalized symbol")
	}
}

func TestPlaceOrder_SellWithPnL(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t)

	env.doOrder(t, token, trading.OrderRequest{Kind: model.KindBuy, Symbol: "AAPL", Quantity: 10})
	env.quotes.SetPrice("AAPL", d(150))

	w := env.doOrder(t, token, trading.OrderRequest{Kind: model.KindSell, Symbol: "AAPL", Quantity: 10})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result model.OrderResult
	json.Unmarshal(w.Body.Bytes(), &result)

	// 10000 - 1000 + 1500.
	if !result.NewBalance.Equal(d(10500)) {
		t.Errorf("new balance = %s, want 10500", result.NewBalance)
	}
	if result.Transaction.RealizedPnL == nil || !result.Transaction.RealizedPnL.Equal(d(500)) {
		t.Errorf("realized P&L = %v, want 500", result.Transaction.RealizedPnL)
	}
	if result.Transaction.RealizedPnLPercent == nil || !result.Transaction.RealizedPnLPercent.Equal(d(50)) {
		t.Errorf("realized P&L percent = %v, want 50", result.Transaction.RealizedPnLPercent)
	}
}

func TestPlaceOrder_InsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.registerUser(t)

	// 200 shares at 100 = 20000 > 10000.
	w := env.doOrder(t, token, trading.OrderRequest{Kind: model.KindBuy, Symbol: "AAPL", Quantity: 200})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	// Ledger untouched, revision included.
	l, _ := env.store.Get(context.Background(), userID)
	if !l.CashBalance.Equal(d(10000)) || l.Revision != 0 || len(l.Transactions) != 0 {
		t.Error("rejected order must leave the ledger unchanged")
	}
}

func TestPlaceOrder_SellUnknownPosition(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t)

	w := env.doOrder(t, token, trading.OrderRequest{Kind: model.KindSell, Symbol: "MSFT", Quantity: 1})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPlaceOrder_Validation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t)

	cases := map[string]trading.OrderRequest{
		"bad kind":          {Kind: "HOLD", Symbol: "AAPL", Quantity: 1},
		"zero quantity":     {Kind: model.KindBuy, Symbol: "AAPL", Quantity: 0},
		"negative quantity": {Kind: model.KindBuy, Symbol: "AAPL", Quantity: -2},
		"bad symbol":        {Kind: model.KindBuy, Symbol: "not a ticker!", Quantity: 1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if w := env.doOrder(t, token, req); w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestPlaceOrder_QuoteUnavailable(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t)

	w := env.doOrder(t, token, trading.OrderRequest{Kind: model.KindBuy, Symbol: "NOPE", Quantity: 1})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPlaceOrder_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(trading.OrderRequest{Kind: model.KindBuy, Symbol: "AAPL", Quantity: 1})
	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader(body))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

// --- Portfolio ---

func TestGetPortfolio(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.registerUser(t)

	env.doOrder(t, token, trading.OrderRequest{Kind: model.KindBuy, Symbol: "AAPL", Quantity: 10})
	env.doOrder(t, token, trading.OrderRequest{Kind: model.KindBuy, Symbol: "MSFT", Quantity: 4})

	req := httptest.NewRequest("GET", "/api/v1/portfolio", nil)
	req.Header.Set("Authorization", "Bearer "+env.tokens.Issue(userID))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var l model.Ledger
	json.Unmarshal(w.Body.Bytes(), &l)

	if len(l.Holdings) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(l.Holdings))
	}
	// 10000 - 1000 - 200.
	if !l.CashBalance.Equal(d(8800)) {
		t.Errorf("balance = %s, want 8800", l.CashBalance)
	}
	if len(l.Transactions) != 2 {
		t.Errorf("expected 2 transactions, got %d", len(l.Transactions))
	}
}

func TestGetSnapshot_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.registerUser(t)
	env.doOrder(t, token, trading.OrderRequest{Kind: model.KindBuy, Symbol: "AAPL", Quantity: 3})

	ctx := context.Background()
	a, err := env.svc.GetSnapshot(ctx, userID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	b, err := env.svc.GetSnapshot(ctx, userID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("snapshots with no intervening writes should be identical")
	}

	// Mutating one snapshot must not leak into the store.
	a.CashBalance = d(-1)
	c, _ := env.svc.GetSnapshot(ctx, userID)
	if c.CashBalance.IsNegative() {
		t.Error("snapshot mutation leaked into stored state")
	}
}

func TestGetSnapshot_CorruptLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bad := model.NewLedger("corrupt", d(0), time.Now().UTC())
	bad.CashBalance = d(-42)
	if err := env.store.Create(ctx, bad); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := env.svc.GetSnapshot(ctx, "corrupt")
	if !errors.Is(err, ledger.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

// --- Quotes endpoint ---

func TestGetQuote(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/quotes/aapl", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var q model.Quote
	json.Unmarshal(w.Body.Bytes(), &q)
	if q.Symbol != "AAPL" || !q.Price.Equal(d(100)) {
		t.Errorf("quote = %+v, want AAPL @ 100", q)
	}

	req = httptest.NewRequest("GET", "/api/v1/quotes/ZZZZ", nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown symbol, got %d", w.Code)
	}
}

// --- Concurrency ---

// Concurrent orders for the same user must serialize at the store's
// compare-and-set: no lost updates, one revision per commit.
func TestExecuteOrder_ConcurrentBuysNoLostUpdate(t *testing.T) {
	env := newTestEnv(t)
	userID, _ := env.registerUser(t)

	const orders = 8
	var wg sync.WaitGroup
	errs := make(chan error, orders)

	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.ExecuteOrder(context.Background(), userID, model.KindBuy, "AAPL", 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	committed := 0
	for err := range errs {
		if err == nil {
			committed++
		} else if !errors.Is(err, trading.ErrConcurrencyExhausted) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if committed == 0 {
		t.Fatal("no order committed")
	}

	l, _ := env.store.Get(context.Background(), userID)
	expected := d(10000).Sub(d(100).Mul(decimal.NewFromInt(int64(committed))))
	if !l.CashBalance.Equal(expected) {
		t.Errorf("balance = %s after %d commits, want %s (lost update?)", l.CashBalance, committed, expected)
	}
	if l.Revision != int64(committed) {
		t.Errorf("revision = %d, want %d", l.Revision, committed)
	}
	if len(l.Transactions) != committed {
		t.Errorf("transactions = %d, want %d", len(l.Transactions), committed)
	}
	if l.Holdings["AAPL"].Quantity != int64(committed) {
		t.Errorf("quantity = %d, want %d", l.Holdings["AAPL"].Quantity, committed)
	}
}

// conflictStore wraps a Store and fails the first n conditional writes
// with a revision conflict.
type conflictStore struct {
	store.Store
	mu        sync.Mutex
	conflicts int
}

func (s *conflictStore) ConditionalPut(ctx context.Context, l *model.Ledger, expectedRevision int64) error {
	s.mu.Lock()
	inject := s.conflicts > 0
	if inject {
		s.conflicts--
	}
	s.mu.Unlock()
	if inject {
		return store.ErrRevisionConflict
	}
	return s.Store.ConditionalPut(ctx, l, expectedRevision)
}

func TestExecuteOrder_RetriesThroughConflicts(t *testing.T) {
	ms := store.NewMemoryStore()
	cs := &conflictStore{Store: ms, conflicts: 3}
	quotes := quote.NewStaticSource(map[string]decimal.Decimal{"AAPL": d(100)})
	tokens, _ := auth.NewTokenAuthority("test-secret-0123456789abcdef")
	svc := trading.NewService(cs, quotes, tokens, nil, 5, time.Second, d(10000))

	userID, _, _, err := svc.CreateAccount(context.Background())
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	result, err := svc.ExecuteOrder(context.Background(), userID, model.KindBuy, "AAPL", 1)
	if err != nil {
		t.Fatalf("order should succeed within budget: %v", err)
	}
	if !result.NewBalance.Equal(d(9900)) {
		t.Errorf("balance = %s, want 9900", result.NewBalance)
	}
}

func TestExecuteOrder_ConcurrencyExhausted(t *testing.T) {
	ms := store.NewMemoryStore()
	cs := &conflictStore{Store: ms, conflicts: 1000}
	quotes := quote.NewStaticSource(map[string]decimal.Decimal{"AAPL": d(100)})
	tokens, _ := auth.NewTokenAuthority("test-secret-0123456789abcdef")
	svc := trading.NewService(cs, quotes, tokens, nil, 3, time.Second, d(10000))

	userID, _, _, err := svc.CreateAccount(context.Background())
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	_, err = svc.ExecuteOrder(context.Background(), userID, model.KindBuy, "AAPL", 1)
	if !errors.Is(err, trading.ErrConcurrencyExhausted) {
		t.Fatalf("expected ErrConcurrencyExhausted, got %v", err)
	}

	// Nothing committed.
	l, _ := ms.Get(context.Background(), userID)
	if l.Revision != 0 || len(l.Transactions) != 0 {
		t.Error("exhausted order must not commit anything")
	}
}

func TestExecuteOrder_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ExecuteOrder(context.Background(), "ghost", model.KindBuy, "AAPL", 1)
	if !errors.Is(err, store.ErrLedgerNotFound) {
		t.Fatalf("expected ErrLedgerNotFound, got %v", err)
	}
}
