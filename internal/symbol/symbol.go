// Package symbol handles stock ticker normalization and validation.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// symbolRegex matches plain equity tickers, optionally with a class or
// exchange suffix. Examples: AAPL, MSFT, BRK.B, RDS-A.
var symbolRegex = regexp.MustCompile(`^[A-Z]{1,8}([.-][A-Z]{1,3})?$`)

// ErrInvalidSymbol is returned for tickers that fail validation after
// normalization.
var ErrInvalidSymbol = errors.New("symbol: invalid ticker")

// Normalize uppercases and trims a raw ticker and validates it.
// Ledger holdings are always keyed by the normalized form.
func Normalize(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return s, nil
}
