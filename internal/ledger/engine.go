// Package ledger implements the portfolio accounting engine: applying buy
// and sell orders to a balance+holdings ledger with quantity-weighted
// average cost basis and realized P&L.
//
// The engine is pure computation over in-memory snapshots. It performs no
// I/O, holds no shared state, and never mutates its inputs: every
// operation returns a fresh ledger at revision+1 or a typed failure.
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hafeefas/investment-simulator/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ApplyBuy executes a buy of quantity shares at price against a snapshot.
// On success it returns the new ledger state and the appended BUY record.
// The input ledger is never modified, including on failure.
func ApplyBuy(l *model.Ledger, sym string, quantity int64, price decimal.Decimal, now time.Time) (*model.Ledger, model.TransactionRecord, error) {
	if err := validateOrder(l, quantity, price); err != nil {
		return nil, model.TransactionRecord{}, err
	}

	totalCost := price.Mul(decimal.NewFromInt(quantity))
	if totalCost.GreaterThan(l.CashBalance) {
		return nil, model.TransactionRecord{}, fmt.Errorf("%w: cost %s exceeds balance %s",
			ErrInsufficientFunds, totalCost, l.CashBalance)
	}

	next := l.Clone()

	if pos, held := next.Holdings[sym]; held {
		// Weighted average: (oldQty*oldAvg + qty*price) / (oldQty + qty).
		oldQty := decimal.NewFromInt(pos.Quantity)
		newQty := decimal.NewFromInt(pos.Quantity + quantity)
		pos.AverageCost = oldQty.Mul(pos.AverageCost).Add(totalCost).Div(newQty)
		pos.Quantity += quantity
		pos.LastUpdated = now
		next.Holdings[sym] = pos
	} else {
		next.Holdings[sym] = model.Position{
			Symbol:      sym,
			Quantity:    quantity,
			AverageCost: price,
			LastUpdated: now,
		}
	}

	record := model.TransactionRecord{
		ID:        uuid.New().String(),
		Kind:      model.KindBuy,
		Symbol:    sym,
		Quantity:  quantity,
		Price:     price,
		Total:     totalCost,
		Timestamp: now,
	}

	next.CashBalance = next.CashBalance.Sub(totalCost)
	next.Transactions = append(next.Transactions, record)
	next.Revision++

	return next, record, nil
}

// ApplySell executes a sell of quantity shares at price against a snapshot.
// The SELL record carries realized P&L against the position's average cost;
// selling never changes the cost basis of the remaining shares. A position
// sold down to exactly zero is removed from holdings.
func ApplySell(l *model.Ledger, sym string, quantity int64, price decimal.Decimal, now time.Time) (*model.Ledger, model.TransactionRecord, error) {
	if err := validateOrder(l, quantity, price); err != nil {
		return nil, model.TransactionRecord{}, err
	}

	pos, held := l.Holdings[sym]
	if !held {
		return nil, model.TransactionRecord{}, fmt.Errorf("%w: %s", ErrPositionNotFound, sym)
	}
	if quantity > pos.Quantity {
		return nil, model.TransactionRecord{}, fmt.Errorf("%w: have %d %s, sell %d",
			ErrInsufficientShares, pos.Quantity, sym, quantity)
	}
	if pos.AverageCost.IsZero() {
		return nil, model.TransactionRecord{}, fmt.Errorf("%w: %s", ErrZeroCostBasis, sym)
	}

	qty := decimal.NewFromInt(quantity)
	proceeds := price.Mul(qty)
	perShare := price.Sub(pos.AverageCost)
	pnl := perShare.Mul(qty)
	pnlPercent := perShare.Div(pos.AverageCost).Mul(hundred)

	next := l.Clone()

	pos.Quantity -= quantity
	if pos.Quantity == 0 {
		delete(next.Holdings, sym)
	} else {
		pos.LastUpdated = now
		next.Holdings[sym] = pos
	}

	record := model.TransactionRecord{
		ID:                 uuid.New().String(),
		Kind:               model.KindSell,
		Symbol:             sym,
		Quantity:           quantity,
		Price:              price,
		Total:              proceeds,
		Timestamp:          now,
		RealizedPnL:        &pnl,
		RealizedPnLPercent: &pnlPercent,
	}

	next.CashBalance = next.CashBalance.Add(proceeds)
	next.Transactions = append(next.Transactions, record)
	next.Revision++

	return next, record, nil
}

// validateOrder rejects malformed order input, then checks the snapshot
// itself is well-formed before computing against it.
func validateOrder(l *model.Ledger, quantity int64, price decimal.Decimal) error {
	if quantity <= 0 {
		return &ValidationError{Message: fmt.Sprintf("quantity must be positive, got %d", quantity)}
	}
	if price.IsNegative() {
		return &ValidationError{Message: fmt.Sprintf("price must be non-negative, got %s", price)}
	}
	return CheckWellFormed(l)
}

// CheckWellFormed verifies the structural invariants of a ledger snapshot.
// A violation means the stored state is already corrupt; the engine fails
// fast rather than compounding the damage.
func CheckWellFormed(l *model.Ledger) error {
	if l.CashBalance.IsNegative() {
		return fmt.Errorf("%w: negative cash balance %s", ErrInvariantViolation, l.CashBalance)
	}
	for sym, pos := range l.Holdings {
		if pos.Quantity <= 0 {
			return fmt.Errorf("%w: position %s has quantity %d", ErrInvariantViolation, sym, pos.Quantity)
		}
		if pos.AverageCost.IsNegative() {
			return fmt.Errorf("%w: position %s has average cost %s", ErrInvariantViolation, sym, pos.AverageCost)
		}
	}
	return nil
}
