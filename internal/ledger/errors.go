package ledger

import "errors"

// Sentinel errors for accounting failures. The service layer maps these to
// HTTP status codes; none of them is ever retried.
var (
	// ErrInsufficientFunds is returned when a buy's total cost exceeds the
	// ledger's cash balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrPositionNotFound is returned when selling a symbol the ledger
	// does not hold.
	ErrPositionNotFound = errors.New("ledger: position not found")

	// ErrInsufficientShares is returned when selling more shares than held.
	ErrInsufficientShares = errors.New("ledger: insufficient shares")

	// ErrZeroCostBasis is returned when a sell would compute a P&L
	// percentage against an average cost of zero. The division is never
	// performed; the whole sell is rejected.
	ErrZeroCostBasis = errors.New("ledger: cost basis is zero, realized P&L percent undefined")

	// ErrInvariantViolation indicates a malformed ledger snapshot (negative
	// balance, non-positive position quantity, negative average cost).
	// It means stored state is corrupt; it is fatal to the request and is
	// never silently repaired.
	ErrInvariantViolation = errors.New("ledger: invariant violation")
)

// ValidationError reports malformed order input. It is distinguishable from
// business-rule rejections so the API layer can answer 400 rather than 422.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
