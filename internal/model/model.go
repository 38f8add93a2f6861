// Package model defines the core domain types shared across the simulator.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind distinguishes buy and sell records.
type TransactionKind string

const (
	KindBuy  TransactionKind = "BUY"
	KindSell TransactionKind = "SELL"
)

// Position is a held quantity of one symbol with its average cost basis.
// A position with quantity 0 is removed from the ledger, never stored.
type Position struct {
	Symbol      string          `json:"symbol" db:"symbol"`
	Quantity    int64           `json:"quantity" db:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost" db:"average_cost"` // quantity-weighted purchase price
	LastUpdated time.Time       `json:"last_updated" db:"last_updated"`
}

// TransactionRecord is an immutable record of one executed order.
// Once appended to a ledger, these are never modified or deleted.
type TransactionRecord struct {
	ID        string          `json:"id" db:"id"`
	Kind      TransactionKind `json:"kind" db:"kind"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Quantity  int64           `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"` // execution price per share
	Total     decimal.Decimal `json:"total" db:"total"` // quantity * price
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`

	// Set on SELL records only, computed against the average cost basis
	// at sale time.
	RealizedPnL        *decimal.Decimal `json:"realized_pnl,omitempty" db:"realized_pnl"`
	RealizedPnLPercent *decimal.Decimal `json:"realized_pnl_percent,omitempty" db:"realized_pnl_percent"`
}

// Ledger is the per-user record of cash balance, holdings, and transaction
// history. Revision increases by exactly one per committed mutation and is
// the optimistic-concurrency token checked by the store's conditional write.
type Ledger struct {
	UserID       string              `json:"user_id" db:"user_id"`
	CashBalance  decimal.Decimal     `json:"cash_balance" db:"cash_balance"`
	Holdings     map[string]Position `json:"holdings" db:"holdings"` // keyed by uppercase symbol
	Transactions []TransactionRecord `json:"transactions" db:"transactions"`
	Revision     int64               `json:"revision" db:"revision"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
}

// NewLedger creates a fresh ledger at revision 0 with the given starting
// balance, empty holdings, and no transaction history.
func NewLedger(userID string, startingBalance decimal.Decimal, now time.Time) *Ledger {
	return &Ledger{
		UserID:      userID,
		CashBalance: startingBalance,
		Holdings:    make(map[string]Position),
		Revision:    0,
		CreatedAt:   now,
	}
}

// Clone returns a deep copy sharing no mutable state with the receiver.
// The accounting engine operates on clones so a failed order can never
// leave a partially mutated snapshot behind.
func (l *Ledger) Clone() *Ledger {
	out := *l
	out.Holdings = make(map[string]Position, len(l.Holdings))
	for sym, pos := range l.Holdings {
		out.Holdings[sym] = pos
	}
	out.Transactions = make([]TransactionRecord, len(l.Transactions))
	copy(out.Transactions, l.Transactions)
	return &out
}

// Quote is a point-in-time market price observation for one symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// OrderResult is returned to the caller after an order commits.
type OrderResult struct {
	Transaction TransactionRecord `json:"transaction"`
	NewBalance  decimal.Decimal   `json:"new_balance"`
	Revision    int64             `json:"revision"`
}
